// Package settlement computes and executes the one-time distribution of a
// bill's pooled stakes. Settle only computes and records the plan; payouts
// happen through individual pull-based claims, so one unreachable recipient
// never blocks the rest.
package settlement

import (
	"fmt"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/model"
)

// ComputePlan partitions a bill's commitments by the winning side and
// produces the full distribution plan:
//
//	payout_i = stake_i + floor(losingPool * stake_i / totalWinningStake)
//
// The integer-division remainder goes to the winner with the largest stake
// (ties broken by lowest committer id), so the payouts sum exactly to
// totalWinningStake + losingPool. With no winners the plan refunds every
// committer their exact stake. The computation is pure and deterministic.
func ComputePlan(commitments []model.Commitment, outcome model.Outcome) ([]model.Claim, error) {
	if !outcome.Resolved() {
		return nil, fmt.Errorf("settlement: cannot plan for outcome %q", outcome)
	}

	winningSide := outcome.WinningSide()

	var winners []model.Commitment
	totalWinning := amount.Zero
	losingPool := amount.Zero

	for _, c := range commitments {
		if c.InSupport == winningSide {
			winners = append(winners, c)
			totalWinning = totalWinning.Add(c.Amount)
		} else {
			losingPool = losingPool.Add(c.Amount)
		}
	}

	// One-sided or empty bill: everyone gets their stake back.
	if len(winners) == 0 {
		claims := make([]model.Claim, 0, len(commitments))
		for _, c := range commitments {
			claims = append(claims, model.Claim{
				BillID:    c.BillID,
				Committer: c.Committer,
				Amount:    c.Amount,
				Refund:    true,
			})
		}
		return claims, nil
	}

	claims := make([]model.Claim, 0, len(winners))
	distributed := amount.Zero
	largest := 0 // index into claims of the remainder recipient

	for i, w := range winners {
		share, err := w.Amount.MulDivFloor(losingPool, totalWinning)
		if err != nil {
			return nil, fmt.Errorf("settlement: share for %s: %w", w.Committer, err)
		}
		distributed = distributed.Add(share)
		claims = append(claims, model.Claim{
			BillID:    w.BillID,
			Committer: w.Committer,
			Amount:    w.Amount.Add(share),
		})

		if i > 0 {
			cmp := w.Amount.Cmp(winners[largest].Amount)
			if cmp > 0 || (cmp == 0 && w.Committer < winners[largest].Committer) {
				largest = i
			}
		}
	}

	// Remainder absorption keeps the pool fully distributed.
	remainder, err := losingPool.Sub(distributed)
	if err != nil {
		return nil, fmt.Errorf("settlement: distributed more than the losing pool: %w", err)
	}
	claims[largest].Amount = claims[largest].Amount.Add(remainder)

	// Conservation check: payouts must equal the whole pool.
	total := amount.Zero
	for _, c := range claims {
		total = total.Add(c.Amount)
	}
	if !total.Equal(totalWinning.Add(losingPool)) {
		return nil, fmt.Errorf("settlement: plan distributes %s, pool holds %s",
			total, totalWinning.Add(losingPool))
	}

	return claims, nil
}
