package settlement_test

import (
	"testing"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/model"
	"github.com/openlobby/commitment-engine/internal/settlement"
)

func amt(t *testing.T, v int64) amount.Amount {
	t.Helper()
	a, err := amount.FromInt64(v)
	if err != nil {
		t.Fatalf("FromInt64(%d): %v", v, err)
	}
	return a
}

func commitment(t *testing.T, committer string, v int64, inSupport bool) model.Commitment {
	t.Helper()
	return model.Commitment{
		BillID:    "b1",
		Committer: committer,
		Amount:    amt(t, v),
		InSupport: inSupport,
	}
}

func claimFor(t *testing.T, claims []model.Claim, committer string) model.Claim {
	t.Helper()
	for _, c := range claims {
		if c.Committer == committer {
			return c
		}
	}
	t.Fatalf("no claim for %s", committer)
	return model.Claim{}
}

func TestComputePlan_ProportionalExact(t *testing.T) {
	// Winners [100, 300] against a losing pool of 400: shares divide evenly.
	claims, err := settlement.ComputePlan([]model.Commitment{
		commitment(t, "alice", 100, true),
		commitment(t, "bob", 300, true),
		commitment(t, "carol", 400, false),
	}, model.OutcomeBecameLaw)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}

	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}
	if got := claimFor(t, claims, "alice").Amount; !got.Equal(amt(t, 200)) {
		t.Errorf("alice payout = %s, want 200", got)
	}
	if got := claimFor(t, claims, "bob").Amount; !got.Equal(amt(t, 600)) {
		t.Errorf("bob payout = %s, want 600", got)
	}
}

func TestComputePlan_RemainderToLargestStake(t *testing.T) {
	// Winners [1, 2] against a losing pool of 10: floor shares are 3 and 6,
	// the leftover unit goes to the larger stake.
	claims, err := settlement.ComputePlan([]model.Commitment{
		commitment(t, "alice", 1, false),
		commitment(t, "bob", 2, false),
		commitment(t, "carol", 10, true),
	}, model.OutcomeRejected)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}

	if got := claimFor(t, claims, "alice").Amount; !got.Equal(amt(t, 4)) {
		t.Errorf("alice payout = %s, want 4", got)
	}
	if got := claimFor(t, claims, "bob").Amount; !got.Equal(amt(t, 9)) {
		t.Errorf("bob payout = %s, want 9", got)
	}

	total := amount.Zero
	for _, c := range claims {
		total = total.Add(c.Amount)
	}
	if !total.Equal(amt(t, 13)) {
		t.Errorf("distributed %s, want 13", total)
	}
}

func TestComputePlan_RemainderTieBreakLowestCommitter(t *testing.T) {
	// Equal winning stakes: the remainder goes to the lowest committer id.
	claims, err := settlement.ComputePlan([]model.Commitment{
		commitment(t, "zed", 5, true),
		commitment(t, "amy", 5, true),
		commitment(t, "lou", 7, false),
	}, model.OutcomeBecameLaw)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}

	// floor(7*5/10) = 3 each, remainder 1 to "amy".
	if got := claimFor(t, claims, "amy").Amount; !got.Equal(amt(t, 9)) {
		t.Errorf("amy payout = %s, want 9", got)
	}
	if got := claimFor(t, claims, "zed").Amount; !got.Equal(amt(t, 8)) {
		t.Errorf("zed payout = %s, want 8", got)
	}
}

func TestComputePlan_NoWinnersRefundsEveryone(t *testing.T) {
	// Resolved for, but nobody supported: every opponent gets their exact
	// stake back.
	claims, err := settlement.ComputePlan([]model.Commitment{
		commitment(t, "alice", 1500, false),
		commitment(t, "bob", 2500, false),
	}, model.OutcomeBecameLaw)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}

	if len(claims) != 2 {
		t.Fatalf("expected 2 refunds, got %d", len(claims))
	}
	for _, c := range claims {
		if !c.Refund {
			t.Errorf("expected refund flag on %s", c.Committer)
		}
	}
	if got := claimFor(t, claims, "alice").Amount; !got.Equal(amt(t, 1500)) {
		t.Errorf("alice refund = %s, want 1500", got)
	}
	if got := claimFor(t, claims, "bob").Amount; !got.Equal(amt(t, 2500)) {
		t.Errorf("bob refund = %s, want 2500", got)
	}
}

func TestComputePlan_EmptyBill(t *testing.T) {
	claims, err := settlement.ComputePlan(nil, model.OutcomeRejected)
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("expected no claims, got %d", len(claims))
	}
}

func TestComputePlan_PendingOutcomeRejected(t *testing.T) {
	if _, err := settlement.ComputePlan(nil, model.OutcomePending); err == nil {
		t.Error("expected error for pending outcome")
	}
}

func TestComputePlan_FullPoolAlwaysDistributed(t *testing.T) {
	// Awkward ratios: verify the plan always sums to the whole pool.
	cases := [][]model.Commitment{
		{
			commitment(t, "a", 17, true),
			commitment(t, "b", 23, true),
			commitment(t, "c", 101, false),
		},
		{
			commitment(t, "a", 3, true),
			commitment(t, "b", 3, true),
			commitment(t, "c", 3, true),
			commitment(t, "d", 7, false),
		},
		{
			commitment(t, "a", 999983, true),
			commitment(t, "b", 2, true),
			commitment(t, "c", 31, false),
		},
	}

	for i, commitments := range cases {
		pool := amount.Zero
		for _, c := range commitments {
			pool = pool.Add(c.Amount)
		}

		claims, err := settlement.ComputePlan(commitments, model.OutcomeBecameLaw)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}

		total := amount.Zero
		for _, c := range claims {
			total = total.Add(c.Amount)
		}
		if !total.Equal(pool) {
			t.Errorf("case %d: distributed %s of pool %s", i, total, pool)
		}
	}
}
