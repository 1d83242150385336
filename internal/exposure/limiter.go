// Package exposure enforces a cap on the total value any single committer
// may hold in open escrow across all bills. With funds locked until a bill
// resolves and settles — possibly forever — the cap bounds how much one
// participant can strand.
package exposure

import (
	"errors"

	"github.com/openlobby/commitment-engine/internal/amount"
)

// ErrLimitExceeded is returned when a commitment would push a committer's
// open escrow beyond the configured maximum.
var ErrLimitExceeded = errors.New("exposure: open escrow limit exceeded")

// Limiter caps per-committer open escrow.
type Limiter struct {
	// MaxOpenEscrow is the maximum total value a committer may have locked
	// in unsettled bills. Zero disables the limit.
	MaxOpenEscrow amount.Amount
}

// NewLimiter creates a limiter with the given cap; zero disables it.
func NewLimiter(maxOpenEscrow amount.Amount) *Limiter {
	return &Limiter{MaxOpenEscrow: maxOpenEscrow}
}

// Check validates whether adding stake on top of the committer's current
// open escrow stays within the limit. Exactly at the limit is allowed.
func (l *Limiter) Check(currentOpen, stake amount.Amount) error {
	if l.MaxOpenEscrow.IsZero() {
		return nil
	}
	if l.MaxOpenEscrow.LessThan(currentOpen.Add(stake)) {
		return ErrLimitExceeded
	}
	return nil
}
