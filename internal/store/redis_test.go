package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openlobby/commitment-engine/internal/model"
)

// fakeCache implements Cache over a plain map so the write discipline of
// CachedStore can be observed without a Redis server.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCache) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCache) billFromCache(t *testing.T, id string) (*model.Bill, bool) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[billKey(id)]
	if !ok {
		return nil, false
	}
	var b model.Bill
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("cached bill is not JSON: %v", err)
	}
	return &b, true
}

func seedPendingBill(t *testing.T, cs *CachedStore, id string) {
	t.Helper()
	bill := &model.Bill{ID: id, Outcome: model.OutcomePending, RegisteredAt: time.Now().UTC()}
	if err := cs.CreateBill(context.Background(), bill); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
}

func TestCachedStore_MutationRefreshesBillCache(t *testing.T) {
	cache := newFakeCache()
	cs := NewCachedStore(NewMemoryStore(), cache, time.Minute)
	ctx := context.Background()
	seedPendingBill(t, cs, "b1")

	if b, ok := cache.billFromCache(t, "b1"); !ok || b.Outcome != model.OutcomePending {
		t.Fatalf("expected pending bill cached after create, got %+v (%v)", b, ok)
	}

	if err := cs.SetBillOutcome(ctx, "b1", model.OutcomeBecameLaw, time.Now().UTC()); err != nil {
		t.Fatalf("SetBillOutcome: %v", err)
	}

	// The cache must carry the resolved state immediately; a cached Pending
	// record here would let a locked placement slip past the resolution gate.
	b, ok := cache.billFromCache(t, "b1")
	if !ok {
		t.Fatal("bill evicted instead of refreshed")
	}
	if b.Outcome != model.OutcomeBecameLaw {
		t.Errorf("cached outcome = %s, want became_law", b.Outcome)
	}

	if err := cs.MarkBillSettled(ctx, "b1"); err != nil {
		t.Fatalf("MarkBillSettled: %v", err)
	}
	if b, _ := cache.billFromCache(t, "b1"); !b.Settled {
		t.Error("cached bill not marked settled")
	}

	got, err := cs.GetBill(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if got.Outcome != model.OutcomeBecameLaw || !got.Settled {
		t.Errorf("GetBill = %+v", got)
	}
}

func TestCachedStore_ReadMissDoesNotPopulateBillCache(t *testing.T) {
	cache := newFakeCache()
	cs := NewCachedStore(NewMemoryStore(), cache, time.Minute)
	ctx := context.Background()
	seedPendingBill(t, cs, "b1")

	// Simulate TTL expiry.
	cache.Del(ctx, billKey("b1"))

	got, err := cs.GetBill(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if got.ID != "b1" {
		t.Fatalf("unexpected bill: %+v", got)
	}

	// A reader that missed must not install what it read: it may hold a
	// record from before a concurrent resolution's refresh, and writing it
	// back would mask the resolution until expiry.
	if _, ok := cache.billFromCache(t, "b1"); ok {
		t.Error("read miss repopulated the bill cache")
	}
}
