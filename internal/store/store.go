// Package store defines the persistence interface for the commitment engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/model"
)

var (
	// ErrNotFound is returned when a bill, commitment, or claim does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned on unique-key violations: re-creating a
	// bill id or a second commitment for the same (bill, committer).
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Bill operations ---

	// CreateBill persists a new bill. ErrAlreadyExists if the id is taken.
	CreateBill(ctx context.Context, bill *model.Bill) error

	// GetBill retrieves a bill by its ID.
	GetBill(ctx context.Context, id string) (*model.Bill, error)

	// ListBills returns all bills, newest registration first.
	ListBills(ctx context.Context) ([]model.Bill, error)

	// SetBillOutcome records the irreversible resolution of a bill.
	SetBillOutcome(ctx context.Context, id string, outcome model.Outcome, resolvedAt time.Time) error

	// MarkBillSettled flips the bill's settled flag. Set exactly once.
	MarkBillSettled(ctx context.Context, id string) error

	// --- Commitments ---

	// InsertCommitment appends an immutable commitment record.
	// ErrAlreadyExists if (bill, committer) already committed.
	InsertCommitment(ctx context.Context, c *model.Commitment) error

	// GetCommitment returns the committer's commitment for a bill.
	GetCommitment(ctx context.Context, billID, committer string) (*model.Commitment, error)

	// ListCommitmentsByBill returns all commitments for a bill in placement
	// order. Used once per settlement.
	ListCommitmentsByBill(ctx context.Context, billID string) ([]model.Commitment, error)

	// GetAggregates computes the per-side totals and counts for a bill as
	// one consistent snapshot.
	GetAggregates(ctx context.Context, billID string) (*model.Aggregates, error)

	// OpenEscrowByCommitter sums a committer's stakes on bills that have
	// not yet been settled. Feeds the exposure limiter.
	OpenEscrowByCommitter(ctx context.Context, committer string) (amount.Amount, error)

	// --- Claims ---

	// InsertClaims records a settlement's full distribution plan.
	InsertClaims(ctx context.Context, claims []model.Claim) error

	// GetClaim returns the claim owed to a committer for a bill.
	GetClaim(ctx context.Context, billID, committer string) (*model.Claim, error)

	// MarkClaimPaid records a successful payout. Set exactly once.
	MarkClaimPaid(ctx context.Context, billID, committer string, paidAt time.Time) error
}
