package treasury

import (
	"context"
	"sync"

	"github.com/openlobby/commitment-engine/internal/amount"
)

// MemoryTreasury implements Treasury with in-memory balances. Used for
// testing and development. Principals start with a zero balance and must be
// funded via Deposit before they can escrow.
type MemoryTreasury struct {
	mu          sync.Mutex
	balances    map[string]amount.Amount
	pool        amount.Amount
	unreachable map[string]bool
}

// NewMemoryTreasury creates an empty in-memory treasury.
func NewMemoryTreasury() *MemoryTreasury {
	return &MemoryTreasury{
		balances:    make(map[string]amount.Amount),
		unreachable: make(map[string]bool),
	}
}

// Deposit credits a principal's external balance. Test/dev funding hook.
func (t *MemoryTreasury) Deposit(principal string, amt amount.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[principal] = t.balances[principal].Add(amt)
}

// SetUnreachable marks a principal as unable to receive payouts, to
// exercise transfer-failure paths.
func (t *MemoryTreasury) SetUnreachable(principal string, unreachable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unreachable[principal] = unreachable
}

// Balance returns a principal's current external balance.
func (t *MemoryTreasury) Balance(principal string) amount.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[principal]
}

func (t *MemoryTreasury) Escrow(_ context.Context, principal string, amt amount.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining, err := t.balances[principal].Sub(amt)
	if err != nil {
		return ErrInsufficientFunds
	}
	t.balances[principal] = remaining
	t.pool = t.pool.Add(amt)
	return nil
}

func (t *MemoryTreasury) Payout(_ context.Context, principal string, amt amount.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.unreachable[principal] {
		return ErrUnreachable
	}
	remaining, err := t.pool.Sub(amt)
	if err != nil {
		// Paying out more than the pool holds means conservation broke
		// upstream; surface it rather than going negative.
		return err
	}
	t.pool = remaining
	t.balances[principal] = t.balances[principal].Add(amt)
	return nil
}

func (t *MemoryTreasury) PoolBalance(_ context.Context) (amount.Amount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pool, nil
}
