package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlobby/commitment-engine/internal/keylock"
	"github.com/openlobby/commitment-engine/internal/model"
	"github.com/openlobby/commitment-engine/internal/store"
	"github.com/openlobby/commitment-engine/internal/treasury"
)

var (
	// ErrUnknownBill is returned for bills that were never registered.
	ErrUnknownBill = errors.New("settlement: unknown bill")

	// ErrNotYetResolved is returned when settling a Pending bill.
	ErrNotYetResolved = errors.New("settlement: bill not yet resolved")

	// ErrAlreadySettled is returned on any second settlement attempt.
	ErrAlreadySettled = errors.New("settlement: bill already settled")

	// ErrNotSettled is returned when claiming before settlement.
	ErrNotSettled = errors.New("settlement: bill not settled")

	// ErrNothingToClaim is returned when no unpaid claim exists for the
	// committer, including after a successful claim.
	ErrNothingToClaim = errors.New("settlement: nothing to claim")

	// ErrTransferFailed wraps a payout transfer failure. The claim stays
	// intact; the committer retries by claiming again.
	ErrTransferFailed = errors.New("settlement: payout transfer failed")
)

// Engine distributes a bill's escrowed pool once, after resolution. It owns
// no persistent state beyond the per-bill settled flag and the recorded
// claims; value moves only through Claim.
type Engine struct {
	store     store.Store
	treasury  treasury.Treasury
	locks     *keylock.KeyedMutex
	onSettled func(billID string, claims []model.Claim)
	onClaimed func(claim model.Claim)
}

// NewEngine creates a settlement engine. Hooks may be nil.
func NewEngine(st store.Store, tr treasury.Treasury, locks *keylock.KeyedMutex,
	onSettled func(string, []model.Claim), onClaimed func(model.Claim)) *Engine {
	return &Engine{
		store:     st,
		treasury:  tr,
		locks:     locks,
		onSettled: onSettled,
		onClaimed: onClaimed,
	}
}

// Settle computes and records the distribution plan for a resolved bill,
// then marks it settled. No transfers happen here: the claims table is
// fully written before the settled flag flips, and claimants pull their
// payouts individually afterwards.
func (e *Engine) Settle(ctx context.Context, billID string) ([]model.Claim, error) {
	unlock := e.locks.Lock(billID)
	defer unlock()

	bill, err := e.store.GetBill(ctx, billID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBill, billID)
		}
		return nil, err
	}
	if !bill.Outcome.Resolved() {
		return nil, fmt.Errorf("%w: %s", ErrNotYetResolved, billID)
	}
	if bill.Settled {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySettled, billID)
	}

	commitments, err := e.store.ListCommitmentsByBill(ctx, billID)
	if err != nil {
		return nil, err
	}

	claims, err := ComputePlan(commitments, bill.Outcome)
	if err != nil {
		return nil, err
	}

	if len(claims) > 0 {
		if err := e.store.InsertClaims(ctx, claims); err != nil {
			return nil, err
		}
	}
	if err := e.store.MarkBillSettled(ctx, billID); err != nil {
		return nil, err
	}

	slog.Info("bill settled",
		"bill", billID,
		"outcome", bill.Outcome,
		"commitments", len(commitments),
		"claims", len(claims),
	)

	if e.onSettled != nil {
		e.onSettled(billID, claims)
	}
	return claims, nil
}

// Claim pays out the committer's recorded claim. Safe to retry: a transfer
// failure leaves the claim unpaid, and a second claim after success fails
// with ErrNothingToClaim — never a double payment.
func (e *Engine) Claim(ctx context.Context, billID, committer string) (*model.Claim, error) {
	unlock := e.locks.Lock(billID)
	defer unlock()

	bill, err := e.store.GetBill(ctx, billID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBill, billID)
		}
		return nil, err
	}
	if !bill.Settled {
		return nil, fmt.Errorf("%w: %s", ErrNotSettled, billID)
	}

	claim, err := e.store.GetClaim(ctx, billID, committer)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s on %s", ErrNothingToClaim, committer, billID)
		}
		return nil, err
	}
	if claim.PaidAt != nil {
		return nil, fmt.Errorf("%w: %s already claimed on %s", ErrNothingToClaim, committer, billID)
	}

	// The treasury fails fast on unreachable recipients, so the bill lock
	// is never held across a slow transfer.
	if err := e.treasury.Payout(ctx, committer, claim.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	paidAt := time.Now().UTC()
	if err := e.store.MarkClaimPaid(ctx, billID, committer, paidAt); err != nil {
		// Value has moved but the record did not update. Surface loudly:
		// this breaks the no-double-claim guard until repaired.
		slog.Error("claim paid but not recorded",
			"bill", billID, "committer", committer,
			"amount", claim.Amount.String(), "err", err)
		return nil, err
	}
	claim.PaidAt = &paidAt

	slog.Info("claim paid",
		"bill", billID,
		"committer", committer,
		"amount", claim.Amount.String(),
		"refund", claim.Refund,
	)

	if e.onClaimed != nil {
		e.onClaimed(*claim)
	}
	return claim, nil
}
