package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/openlobby/commitment-engine/internal/keylock"
	"github.com/openlobby/commitment-engine/internal/legislation"
	"github.com/openlobby/commitment-engine/internal/model"
	"github.com/openlobby/commitment-engine/internal/registry"
	"github.com/openlobby/commitment-engine/internal/store"
)

const oracle = "oracle-token"

func newRegistry(t *testing.T, hook registry.ResolveHook) (*registry.Registry, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return registry.New(ms, keylock.New(), oracle, hook), ms
}

func TestRegister_CreatesPendingBill(t *testing.T) {
	reg, _ := newRegistry(t, nil)

	bill, created, err := reg.Register(context.Background(), "hr5376-117", model.BillMetadata{
		Title:             "Build Back Better Act",
		LegislationNumber: "H.R. 5376",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !created {
		t.Error("expected created for a fresh bill")
	}
	if bill.Outcome != model.OutcomePending {
		t.Errorf("expected pending, got %s", bill.Outcome)
	}
	if bill.RegisteredAt.IsZero() {
		t.Error("expected registered_at to be set")
	}
}

func TestRegister_Idempotent(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	ctx := context.Background()

	first, _, err := reg.Register(ctx, "b1", model.BillMetadata{Title: "original"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Re-registration returns the stored bill; metadata is not overwritten.
	second, created, err := reg.Register(ctx, "b1", model.BillMetadata{Title: "changed"})
	if err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	if created {
		t.Error("re-registration reported as created")
	}
	if second.Metadata.Title != first.Metadata.Title {
		t.Errorf("metadata overwritten: %s", second.Metadata.Title)
	}
}

func TestRegister_InvalidLegislationNumber(t *testing.T) {
	reg, _ := newRegistry(t, nil)

	_, _, err := reg.Register(context.Background(), "b1", model.BillMetadata{
		LegislationNumber: "HR 5376",
	})
	if !errors.Is(err, legislation.ErrInvalidNumber) {
		t.Errorf("expected ErrInvalidNumber, got %v", err)
	}
}

func TestResolve_OnlyOracle(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	ctx := context.Background()
	reg.Register(ctx, "b1", model.BillMetadata{})

	err := reg.Resolve(ctx, "someone-else", "b1", model.OutcomeBecameLaw)
	if !errors.Is(err, registry.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	if err := reg.Resolve(ctx, oracle, "b1", model.OutcomeBecameLaw); err != nil {
		t.Errorf("oracle resolve failed: %v", err)
	}
}

func TestResolve_UnknownBill(t *testing.T) {
	reg, _ := newRegistry(t, nil)

	err := reg.Resolve(context.Background(), oracle, "nope", model.OutcomeRejected)
	if !errors.Is(err, registry.ErrUnknownBill) {
		t.Errorf("expected ErrUnknownBill, got %v", err)
	}
}

func TestResolve_InvalidOutcome(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	ctx := context.Background()
	reg.Register(ctx, "b1", model.BillMetadata{})

	err := reg.Resolve(ctx, oracle, "b1", model.OutcomePending)
	if !errors.Is(err, registry.ErrInvalidOutcome) {
		t.Errorf("expected ErrInvalidOutcome, got %v", err)
	}
}

func TestResolve_Monotonic(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	ctx := context.Background()
	reg.Register(ctx, "b1", model.BillMetadata{})

	if err := reg.Resolve(ctx, oracle, "b1", model.OutcomeBecameLaw); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	// A second resolution always fails, regardless of the outcome argument.
	for _, outcome := range []model.Outcome{model.OutcomeBecameLaw, model.OutcomeRejected} {
		if err := reg.Resolve(ctx, oracle, "b1", outcome); !errors.Is(err, registry.ErrAlreadyResolved) {
			t.Errorf("resolve(%s): expected ErrAlreadyResolved, got %v", outcome, err)
		}
	}

	got, err := reg.OutcomeOf(ctx, "b1")
	if err != nil {
		t.Fatalf("OutcomeOf: %v", err)
	}
	if got != model.OutcomeBecameLaw {
		t.Errorf("outcome changed to %s", got)
	}
}

func TestResolve_FiresHook(t *testing.T) {
	var gotBill string
	var gotOutcome model.Outcome

	reg, _ := newRegistry(t, func(billID string, outcome model.Outcome) {
		gotBill = billID
		gotOutcome = outcome
	})
	ctx := context.Background()
	reg.Register(ctx, "b1", model.BillMetadata{})

	if err := reg.Resolve(ctx, oracle, "b1", model.OutcomeRejected); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if gotBill != "b1" || gotOutcome != model.OutcomeRejected {
		t.Errorf("hook got (%s, %s)", gotBill, gotOutcome)
	}
}

func TestOutcomeOf_UnknownBill(t *testing.T) {
	reg, _ := newRegistry(t, nil)

	if _, err := reg.OutcomeOf(context.Background(), "nope"); !errors.Is(err, registry.ErrUnknownBill) {
		t.Errorf("expected ErrUnknownBill, got %v", err)
	}
}
