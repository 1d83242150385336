// Package registry implements the bill registry: idempotent registration
// and the single, oracle-authenticated, irreversible resolution transition
// that unlocks settlement.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlobby/commitment-engine/internal/keylock"
	"github.com/openlobby/commitment-engine/internal/legislation"
	"github.com/openlobby/commitment-engine/internal/model"
	"github.com/openlobby/commitment-engine/internal/store"
)

var (
	// ErrUnknownBill is returned when resolving a bill that was never registered.
	ErrUnknownBill = errors.New("registry: unknown bill")

	// ErrAlreadyResolved is returned when resolving a bill a second time.
	ErrAlreadyResolved = errors.New("registry: bill already resolved")

	// ErrUnauthorized is returned when anyone but the oracle calls Resolve.
	ErrUnauthorized = errors.New("registry: caller is not the oracle")

	// ErrInvalidOutcome is returned for a resolution outcome that is
	// neither became_law nor rejected.
	ErrInvalidOutcome = errors.New("registry: invalid resolution outcome")
)

// ResolveHook is invoked after a successful resolution, outside the bill
// lock. Used to fan resolution events out to listeners.
type ResolveHook func(billID string, outcome model.Outcome)

// Registry owns bill resolution state. Exactly one principal — the oracle —
// may resolve bills.
type Registry struct {
	store     store.Store
	locks     *keylock.KeyedMutex
	oracle    string
	onResolve ResolveHook
}

// New creates a bill registry. oracle is the sole principal allowed to
// resolve; hook may be nil.
func New(st store.Store, locks *keylock.KeyedMutex, oracle string, hook ResolveHook) *Registry {
	return &Registry{
		store:     st,
		locks:     locks,
		oracle:    oracle,
		onResolve: hook,
	}
}

// Register creates a Pending bill if absent. Idempotent: re-registering an
// existing id returns the stored bill unchanged, whatever its state, with
// created false. A metadata legislation number, when present, must parse.
func (r *Registry) Register(ctx context.Context, billID string, meta model.BillMetadata) (bill *model.Bill, created bool, err error) {
	if billID == "" {
		return nil, false, fmt.Errorf("%w: empty bill id", ErrUnknownBill)
	}
	if meta.LegislationNumber != "" {
		if _, err := legislation.ParseNumber(meta.LegislationNumber); err != nil {
			return nil, false, err
		}
	}

	unlock := r.locks.Lock(billID)
	defer unlock()

	if existing, err := r.store.GetBill(ctx, billID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	bill = &model.Bill{
		ID:           billID,
		Outcome:      model.OutcomePending,
		Metadata:     meta,
		RegisteredAt: time.Now().UTC(),
	}
	if err := r.store.CreateBill(ctx, bill); err != nil {
		return nil, false, err
	}

	slog.Info("bill registered", "bill", billID, "legislation_number", meta.LegislationNumber)
	return bill, true, nil
}

// Resolve sets a bill's final outcome. Callable only by the oracle
// principal; fails on unknown bills and on any second resolution. The
// transition is irreversible.
func (r *Registry) Resolve(ctx context.Context, caller, billID string, outcome model.Outcome) error {
	if caller != r.oracle {
		return ErrUnauthorized
	}
	if !outcome.Resolved() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	unlock := r.locks.Lock(billID)

	bill, err := r.store.GetBill(ctx, billID)
	if err != nil {
		unlock()
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownBill, billID)
		}
		return err
	}
	if bill.Outcome.Resolved() {
		unlock()
		return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, billID, bill.Outcome)
	}

	if err := r.store.SetBillOutcome(ctx, billID, outcome, time.Now().UTC()); err != nil {
		unlock()
		return err
	}
	unlock()

	slog.Info("bill resolved", "bill", billID, "outcome", outcome)

	// Hook runs after the lock is released so a listener can immediately
	// call back into settlement for the same bill.
	if r.onResolve != nil {
		r.onResolve(billID, outcome)
	}
	return nil
}

// OutcomeOf returns the bill's current resolution state.
func (r *Registry) OutcomeOf(ctx context.Context, billID string) (model.Outcome, error) {
	bill, err := r.store.GetBill(ctx, billID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownBill, billID)
		}
		return "", err
	}
	return bill.Outcome, nil
}

// Get returns the full bill record.
func (r *Registry) Get(ctx context.Context, billID string) (*model.Bill, error) {
	bill, err := r.store.GetBill(ctx, billID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBill, billID)
		}
		return nil, err
	}
	return bill, nil
}

// List returns all registered bills, newest first.
func (r *Registry) List(ctx context.Context) ([]model.Bill, error) {
	return r.store.ListBills(ctx)
}
