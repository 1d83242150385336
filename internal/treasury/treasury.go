// Package treasury abstracts the value-transfer channel backing the ledger.
// Escrow pulls exactly the declared amount from a principal into the pooled
// balance; Payout pushes a settled amount back out. Each call either moves
// the full amount or fails with no effect.
package treasury

import (
	"context"
	"errors"

	"github.com/openlobby/commitment-engine/internal/amount"
)

var (
	// ErrInsufficientFunds is returned by Escrow when the principal's
	// balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("treasury: insufficient funds")

	// ErrUnreachable is returned by Payout when the receiving principal
	// cannot accept the transfer. The caller retries by claiming again.
	ErrUnreachable = errors.New("treasury: recipient unreachable")
)

// Treasury moves value between external principal balances and the single
// pooled escrow balance. Implementations must be atomic per call and must
// fail fast — no internal retry loops.
type Treasury interface {
	// Escrow atomically debits the principal and credits the pool.
	Escrow(ctx context.Context, principal string, amt amount.Amount) error

	// Payout atomically debits the pool and credits the principal.
	Payout(ctx context.Context, principal string, amt amount.Amount) error

	// PoolBalance returns the total value currently held in escrow.
	PoolBalance(ctx context.Context) (amount.Amount, error)
}
