// Package model defines the core domain types shared across the commitment
// engine. All monetary values use the amount package (shopspring/decimal
// underneath) — never float64 for money.
package model

import (
	"time"

	"github.com/openlobby/commitment-engine/internal/amount"
)

// Outcome is the resolution state of a bill. Transitions only
// Pending → {BecameLaw, Rejected}, set at most once, never reversed.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeBecameLaw Outcome = "became_law"
	OutcomeRejected  Outcome = "rejected"
)

// Resolved reports whether the outcome is final.
func (o Outcome) Resolved() bool {
	return o == OutcomeBecameLaw || o == OutcomeRejected
}

// WinningSide returns the commitment side that wins under this outcome.
// Only meaningful for resolved outcomes: BecameLaw pays supporters,
// Rejected pays opponents.
func (o Outcome) WinningSide() bool {
	return o == OutcomeBecameLaw
}

// BillMetadata is the display metadata the oracle publishes alongside a
// bill. All fields are optional and immutable once set at registration.
type BillMetadata struct {
	Title              string     `json:"title,omitempty" db:"title"`
	Sponsor            string     `json:"sponsor,omitempty" db:"sponsor"`
	LegislationNumber  string     `json:"legislation_number,omitempty" db:"legislation_number"`
	Committees         string     `json:"committees,omitempty" db:"committees"`
	AmendsBill         string     `json:"amends_bill,omitempty" db:"amends_bill"`
	LatestAction       string     `json:"latest_action,omitempty" db:"latest_action"`
	LatestActionDate   *time.Time `json:"latest_action_date,omitempty" db:"latest_action_date"`
	DateOfIntroduction *time.Time `json:"date_of_introduction,omitempty" db:"date_of_introduction"`
}

// Bill is the resolvable subject of commitments. Bills are never deleted;
// history remains queryable after resolution and settlement.
type Bill struct {
	ID           string       `json:"id" db:"id"`
	Outcome      Outcome      `json:"outcome" db:"outcome"`
	Settled      bool         `json:"settled" db:"settled"`
	Metadata     BillMetadata `json:"metadata"`
	RegisteredAt time.Time    `json:"registered_at" db:"registered_at"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Commitment is an escrowed stake for or against a bill's outcome. At most
// one exists per (bill, committer); once the bill resolves it is immutable.
type Commitment struct {
	ID        string        `json:"id" db:"id"`
	BillID    string        `json:"bill_id" db:"bill_id"`
	Committer string        `json:"committer" db:"committer"`
	Amount    amount.Amount `json:"amount" db:"amount"`
	InSupport bool          `json:"in_support" db:"in_support"`
	PlacedAt  time.Time     `json:"placed_at" db:"placed_at"`
}

// Claim is a computed, not-yet-necessarily-paid payout owed to a committer
// after settlement. PaidAt is set exactly once, by a successful claim.
type Claim struct {
	BillID    string        `json:"bill_id" db:"bill_id"`
	Committer string        `json:"committer" db:"committer"`
	Amount    amount.Amount `json:"amount" db:"amount"`
	Refund    bool          `json:"refund" db:"refund"` // stake returned, no winnings
	PaidAt    *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
}

// Aggregates is the per-bill roll-up the client view renders. The four
// fields are read as one consistent snapshot.
type Aggregates struct {
	BillID          string        `json:"bill_id"`
	TotalSupporting amount.Amount `json:"total_supporting"`
	CountSupporting int           `json:"count_supporting"`
	TotalAgainst    amount.Amount `json:"total_against"`
	CountAgainst    int           `json:"count_against"`
}
