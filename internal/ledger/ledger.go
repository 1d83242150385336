// Package ledger implements the commitment ledger: per-user, per-bill
// escrowed stakes aggregated per side. Placing a commitment escrows exactly
// the declared amount atomically with the record insert; the ledger never
// holds funds without a matching commitment or vice versa.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/exposure"
	"github.com/openlobby/commitment-engine/internal/keylock"
	"github.com/openlobby/commitment-engine/internal/model"
	"github.com/openlobby/commitment-engine/internal/store"
	"github.com/openlobby/commitment-engine/internal/treasury"
)

var (
	// ErrBelowMinimum is returned when the stake is under the configured
	// minimum commitment.
	ErrBelowMinimum = errors.New("ledger: commitment below minimum")

	// ErrAmountMismatch is returned when the transferred value does not
	// equal the declared amount. No partial or excess retention.
	ErrAmountMismatch = errors.New("ledger: transferred value does not match declared amount")

	// ErrBillResolved is returned for commitments placed after resolution.
	ErrBillResolved = errors.New("ledger: bill already resolved")

	// ErrDuplicateCommitment is returned for a second commitment by the
	// same committer on the same bill. Amendments are not supported.
	ErrDuplicateCommitment = errors.New("ledger: committer already has a commitment on this bill")

	// ErrMissingCommitter is returned when no committer principal is given.
	ErrMissingCommitter = errors.New("ledger: committer is required")
)

// Ledger owns the commitment set and per-bill aggregates. All mutation for
// a bill is serialized through the shared per-bill lock.
type Ledger struct {
	store      store.Store
	treasury   treasury.Treasury
	limiter    *exposure.Limiter
	locks      *keylock.KeyedMutex
	committers *keylock.KeyedMutex
	min        amount.Amount
	onPlaced   func(model.Commitment)
}

// New creates a commitment ledger. min is the minimum accepted stake;
// hook may be nil.
func New(st store.Store, tr treasury.Treasury, limiter *exposure.Limiter, locks *keylock.KeyedMutex, min amount.Amount, hook func(model.Commitment)) *Ledger {
	return &Ledger{
		store:      st,
		treasury:   tr,
		limiter:    limiter,
		locks:      locks,
		committers: keylock.New(),
		min:        min,
		onPlaced:   hook,
	}
}

// PlaceRequest carries one commitment placement. Transferred is the value
// actually moved through the transfer channel and must equal Amount.
type PlaceRequest struct {
	BillID      string
	Committer   string
	Amount      amount.Amount
	InSupport   bool
	Transferred amount.Amount
}

// PlaceCommitment escrows req.Amount and records the commitment, updating
// the bill's side aggregate. The whole operation is atomic per bill: it
// either escrows and records, or fails with no side effect. Bills never
// seen before are registered Pending first.
func (l *Ledger) PlaceCommitment(ctx context.Context, req PlaceRequest) (*model.Commitment, error) {
	if req.Committer == "" {
		return nil, ErrMissingCommitter
	}
	if !req.Transferred.Equal(req.Amount) {
		return nil, fmt.Errorf("%w: declared %s, transferred %s",
			ErrAmountMismatch, req.Amount, req.Transferred)
	}
	if req.Amount.LessThan(l.min) {
		return nil, fmt.Errorf("%w: %s < %s", ErrBelowMinimum, req.Amount, l.min)
	}

	unlock := l.locks.Lock(req.BillID)
	defer unlock()

	bill, err := l.store.GetBill(ctx, req.BillID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// First reference to this bill creates it Pending.
		bill = &model.Bill{
			ID:           req.BillID,
			Outcome:      model.OutcomePending,
			RegisteredAt: time.Now().UTC(),
		}
		if err := l.store.CreateBill(ctx, bill); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if bill.Outcome.Resolved() {
		return nil, fmt.Errorf("%w: %s is %s", ErrBillResolved, req.BillID, bill.Outcome)
	}

	if _, err := l.store.GetCommitment(ctx, req.BillID, req.Committer); err == nil {
		return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateCommitment, req.Committer, req.BillID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// The open-escrow sum spans bills, so the exposure check and the insert
	// it guards are serialized per committer as well. Always acquired after
	// the bill lock, and only here, so the order cannot invert.
	unlockCommitter := l.committers.Lock(req.Committer)
	defer unlockCommitter()

	open, err := l.store.OpenEscrowByCommitter(ctx, req.Committer)
	if err != nil {
		return nil, err
	}
	if err := l.limiter.Check(open, req.Amount); err != nil {
		return nil, err
	}

	// Escrow first, then record. A failed insert refunds the escrow so
	// no funds are ever held without a commitment record.
	if err := l.treasury.Escrow(ctx, req.Committer, req.Amount); err != nil {
		return nil, err
	}

	c := &model.Commitment{
		ID:        uuid.New().String(),
		BillID:    req.BillID,
		Committer: req.Committer,
		Amount:    req.Amount,
		InSupport: req.InSupport,
		PlacedAt:  time.Now().UTC(),
	}
	if err := l.store.InsertCommitment(ctx, c); err != nil {
		if refundErr := l.treasury.Payout(ctx, req.Committer, req.Amount); refundErr != nil {
			slog.Error("escrow refund failed after insert failure",
				"bill", req.BillID, "committer", req.Committer,
				"amount", req.Amount.String(), "err", refundErr)
		}
		return nil, err
	}

	slog.Info("commitment placed",
		"bill", req.BillID,
		"committer", req.Committer,
		"amount", req.Amount.String(),
		"in_support", req.InSupport,
	)

	if l.onPlaced != nil {
		l.onPlaced(*c)
	}
	return c, nil
}

// Aggregates returns the per-side totals and counts for a bill as one
// consistent snapshot.
func (l *Ledger) Aggregates(ctx context.Context, billID string) (*model.Aggregates, error) {
	return l.store.GetAggregates(ctx, billID)
}

// Commitment returns the committer's commitment for a bill, or nil with no
// error when none exists — absence is not a failure.
func (l *Ledger) Commitment(ctx context.Context, billID, committer string) (*model.Commitment, error) {
	c, err := l.store.GetCommitment(ctx, billID, committer)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// CommitmentsFor returns all commitments for a bill in placement order.
// One pass per settlement.
func (l *Ledger) CommitmentsFor(ctx context.Context, billID string) ([]model.Commitment, error) {
	return l.store.ListCommitmentsByBill(ctx, billID)
}
