package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/model"
)

// Cache is the subset of redis.Client commands the cached store uses.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore wraps a primary Store (PostgreSQL) with a Redis cache for
// bills and per-bill aggregates. The bill cache is written only by the
// mutation path, which the callers serialize through the per-bill lock; a
// read that misses falls through to the primary without repopulating, so a
// slow reader can never reinstall a pre-resolution record over a fresher
// invalidation.
type CachedStore struct {
	primary Store
	rdb     Cache
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateBill(ctx context.Context, b *model.Bill) error {
	if err := s.primary.CreateBill(ctx, b); err != nil {
		return err
	}
	s.cacheBill(ctx, b)
	return nil
}

func (s *CachedStore) SetBillOutcome(ctx context.Context, id string, outcome model.Outcome, resolvedAt time.Time) error {
	if err := s.primary.SetBillOutcome(ctx, id, outcome, resolvedAt); err != nil {
		return err
	}
	s.refreshBill(ctx, id)
	return nil
}

func (s *CachedStore) MarkBillSettled(ctx context.Context, id string) error {
	if err := s.primary.MarkBillSettled(ctx, id); err != nil {
		return err
	}
	s.refreshBill(ctx, id)
	return nil
}

func (s *CachedStore) InsertCommitment(ctx context.Context, c *model.Commitment) error {
	if err := s.primary.InsertCommitment(ctx, c); err != nil {
		return err
	}
	// Aggregates for this bill changed.
	s.rdb.Del(ctx, aggregatesKey(c.BillID))
	return nil
}

func (s *CachedStore) InsertClaims(ctx context.Context, claims []model.Claim) error {
	return s.primary.InsertClaims(ctx, claims)
}

func (s *CachedStore) MarkClaimPaid(ctx context.Context, billID, committer string, paidAt time.Time) error {
	return s.primary.MarkClaimPaid(ctx, billID, committer, paidAt)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetBill(ctx context.Context, id string) (*model.Bill, error) {
	data, err := s.rdb.Get(ctx, billKey(id)).Bytes()
	if err == nil {
		var b model.Bill
		if json.Unmarshal(data, &b) == nil {
			return &b, nil
		}
	}

	// Read misses fall through without writing the cache: only the
	// mutation path, serialized per bill, may install a bill record.
	return s.primary.GetBill(ctx, id)
}

func (s *CachedStore) GetAggregates(ctx context.Context, billID string) (*model.Aggregates, error) {
	data, err := s.rdb.Get(ctx, aggregatesKey(billID)).Bytes()
	if err == nil {
		var agg model.Aggregates
		if json.Unmarshal(data, &agg) == nil {
			return &agg, nil
		}
	}

	agg, err := s.primary.GetAggregates(ctx, billID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(agg); err == nil {
		s.rdb.Set(ctx, aggregatesKey(billID), data, s.ttl)
	}
	return agg, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListBills(ctx context.Context) ([]model.Bill, error) {
	return s.primary.ListBills(ctx)
}

func (s *CachedStore) GetCommitment(ctx context.Context, billID, committer string) (*model.Commitment, error) {
	return s.primary.GetCommitment(ctx, billID, committer)
}

func (s *CachedStore) ListCommitmentsByBill(ctx context.Context, billID string) ([]model.Commitment, error) {
	return s.primary.ListCommitmentsByBill(ctx, billID)
}

func (s *CachedStore) OpenEscrowByCommitter(ctx context.Context, committer string) (amount.Amount, error) {
	return s.primary.OpenEscrowByCommitter(ctx, committer)
}

func (s *CachedStore) GetClaim(ctx context.Context, billID, committer string) (*model.Claim, error) {
	return s.primary.GetClaim(ctx, billID, committer)
}

// --- Cache helpers ---

func (s *CachedStore) cacheBill(ctx context.Context, b *model.Bill) {
	if data, err := json.Marshal(b); err == nil {
		s.rdb.Set(ctx, billKey(b.ID), data, s.ttl)
	}
}

// refreshBill replaces the cached record with the bill's current primary
// state, falling back to plain invalidation when the re-read fails.
func (s *CachedStore) refreshBill(ctx context.Context, id string) {
	b, err := s.primary.GetBill(ctx, id)
	if err != nil {
		s.rdb.Del(ctx, billKey(id))
		return
	}
	s.cacheBill(ctx, b)
}

func billKey(id string) string           { return fmt.Sprintf("bill:%s", id) }
func aggregatesKey(billID string) string { return fmt.Sprintf("aggregates:%s", billID) }
