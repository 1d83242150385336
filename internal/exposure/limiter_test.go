package exposure_test

import (
	"errors"
	"testing"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/exposure"
)

func a(t *testing.T, v int64) amount.Amount {
	t.Helper()
	amt, err := amount.FromInt64(v)
	if err != nil {
		t.Fatalf("FromInt64(%d): %v", v, err)
	}
	return amt
}

func TestCheck_WithinLimit(t *testing.T) {
	l := exposure.NewLimiter(a(t, 10000))

	if err := l.Check(a(t, 4000), a(t, 5000)); err != nil {
		t.Errorf("expected within limit, got %v", err)
	}
	// Exactly at the limit is allowed.
	if err := l.Check(a(t, 4000), a(t, 6000)); err != nil {
		t.Errorf("expected at-limit to pass, got %v", err)
	}
}

func TestCheck_ExceedsLimit(t *testing.T) {
	l := exposure.NewLimiter(a(t, 10000))

	if err := l.Check(a(t, 4000), a(t, 6001)); !errors.Is(err, exposure.ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestCheck_ZeroDisables(t *testing.T) {
	l := exposure.NewLimiter(amount.Zero)

	if err := l.Check(a(t, 1<<40), a(t, 1<<40)); err != nil {
		t.Errorf("zero cap should disable the limit, got %v", err)
	}
}
