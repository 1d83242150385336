package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	bills       map[string]*model.Bill
	commitments []model.Commitment
	claims      map[string]*model.Claim // key: billID + "\x00" + committer
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bills:  make(map[string]*model.Bill),
		claims: make(map[string]*model.Claim),
	}
}

func claimKey(billID, committer string) string {
	return billID + "\x00" + committer
}

func (s *MemoryStore) CreateBill(_ context.Context, b *model.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bills[b.ID]; ok {
		return fmt.Errorf("%w: bill %s", ErrAlreadyExists, b.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *b
	s.bills[b.ID] = &copy
	return nil
}

func (s *MemoryStore) GetBill(_ context.Context, id string) (*model.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bills[id]
	if !ok {
		return nil, fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	copy := *b
	return &copy, nil
}

func (s *MemoryStore) ListBills(_ context.Context) ([]model.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]model.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		bills = append(bills, *b)
	}
	sort.Slice(bills, func(i, j int) bool {
		return bills[i].RegisteredAt.After(bills[j].RegisteredAt)
	})
	return bills, nil
}

func (s *MemoryStore) SetBillOutcome(_ context.Context, id string, outcome model.Outcome, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bills[id]
	if !ok {
		return fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	b.Outcome = outcome
	t := resolvedAt
	b.ResolvedAt = &t
	return nil
}

func (s *MemoryStore) MarkBillSettled(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bills[id]
	if !ok {
		return fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	b.Settled = true
	return nil
}

func (s *MemoryStore) InsertCommitment(_ context.Context, c *model.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.commitments {
		if existing.BillID == c.BillID && existing.Committer == c.Committer {
			return fmt.Errorf("%w: commitment %s/%s", ErrAlreadyExists, c.BillID, c.Committer)
		}
	}
	s.commitments = append(s.commitments, *c)
	return nil
}

func (s *MemoryStore) GetCommitment(_ context.Context, billID, committer string) (*model.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.commitments {
		if c.BillID == billID && c.Committer == committer {
			copy := c
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("%w: commitment %s/%s", ErrNotFound, billID, committer)
}

func (s *MemoryStore) ListCommitmentsByBill(_ context.Context, billID string) ([]model.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Commitment
	for _, c := range s.commitments {
		if c.BillID == billID {
			result = append(result, c)
		}
	}
	return result, nil
}

// GetAggregates scans commitments under a single RLock, so the four fields
// form one consistent snapshot.
func (s *MemoryStore) GetAggregates(_ context.Context, billID string) (*model.Aggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := &model.Aggregates{BillID: billID}
	for _, c := range s.commitments {
		if c.BillID != billID {
			continue
		}
		if c.InSupport {
			agg.TotalSupporting = agg.TotalSupporting.Add(c.Amount)
			agg.CountSupporting++
		} else {
			agg.TotalAgainst = agg.TotalAgainst.Add(c.Amount)
			agg.CountAgainst++
		}
	}
	return agg, nil
}

func (s *MemoryStore) OpenEscrowByCommitter(_ context.Context, committer string) (amount.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := amount.Zero
	for _, c := range s.commitments {
		if c.Committer != committer {
			continue
		}
		if b, ok := s.bills[c.BillID]; ok && b.Settled {
			continue
		}
		total = total.Add(c.Amount)
	}
	return total, nil
}

func (s *MemoryStore) InsertClaims(_ context.Context, claims []model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range claims {
		key := claimKey(c.BillID, c.Committer)
		if _, ok := s.claims[key]; ok {
			return fmt.Errorf("%w: claim %s/%s", ErrAlreadyExists, c.BillID, c.Committer)
		}
	}
	for _, c := range claims {
		copy := c
		s.claims[claimKey(c.BillID, c.Committer)] = &copy
	}
	return nil
}

func (s *MemoryStore) GetClaim(_ context.Context, billID, committer string) (*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[claimKey(billID, committer)]
	if !ok {
		return nil, fmt.Errorf("%w: claim %s/%s", ErrNotFound, billID, committer)
	}
	copy := *c
	return &copy, nil
}

func (s *MemoryStore) MarkClaimPaid(_ context.Context, billID, committer string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[claimKey(billID, committer)]
	if !ok {
		return fmt.Errorf("%w: claim %s/%s", ErrNotFound, billID, committer)
	}
	t := paidAt
	c.PaidAt = &t
	return nil
}
