package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.ConstraintName)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) CreateBill(ctx context.Context, b *model.Bill) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bills (id, outcome, settled,
		                    title, sponsor, legislation_number, committees, amends_bill,
		                    latest_action, latest_action_date, date_of_introduction,
		                    registered_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, string(b.Outcome), b.Settled,
		b.Metadata.Title, b.Metadata.Sponsor, b.Metadata.LegislationNumber,
		b.Metadata.Committees, b.Metadata.AmendsBill,
		b.Metadata.LatestAction, b.Metadata.LatestActionDate, b.Metadata.DateOfIntroduction,
		b.RegisteredAt, b.ResolvedAt,
	)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

const billColumns = `id, outcome, settled,
       title, sponsor, legislation_number, committees, amends_bill,
       latest_action, latest_action_date, date_of_introduction,
       registered_at, resolved_at`

func scanBill(row pgx.Row) (*model.Bill, error) {
	var b model.Bill
	var outcome string
	if err := row.Scan(&b.ID, &outcome, &b.Settled,
		&b.Metadata.Title, &b.Metadata.Sponsor, &b.Metadata.LegislationNumber,
		&b.Metadata.Committees, &b.Metadata.AmendsBill,
		&b.Metadata.LatestAction, &b.Metadata.LatestActionDate, &b.Metadata.DateOfIntroduction,
		&b.RegisteredAt, &b.ResolvedAt); err != nil {
		return nil, err
	}
	b.Outcome = model.Outcome(outcome)
	return &b, nil
}

func (s *PostgresStore) GetBill(ctx context.Context, id string) (*model.Bill, error) {
	b, err := scanBill(s.pool.QueryRow(ctx,
		`SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get bill %s: %w", id, mapPgError(err))
	}
	return b, nil
}

func (s *PostgresStore) ListBills(ctx context.Context) ([]model.Bill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+billColumns+` FROM bills ORDER BY registered_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []model.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *b)
	}
	return bills, rows.Err()
}

func (s *PostgresStore) SetBillOutcome(ctx context.Context, id string, outcome model.Outcome, resolvedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bills SET outcome = $2, resolved_at = $3 WHERE id = $1`,
		id, string(outcome), resolvedAt)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) MarkBillSettled(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bills SET settled = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: bill %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) InsertCommitment(ctx context.Context, c *model.Commitment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO commitments (id, bill_id, committer, amount, in_support, placed_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)`,
		c.ID, c.BillID, c.Committer, c.Amount.String(), c.InSupport, c.PlacedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *PostgresStore) GetCommitment(ctx context.Context, billID, committer string) (*model.Commitment, error) {
	var c model.Commitment
	var amt string
	err := s.pool.QueryRow(ctx,
		`SELECT id, bill_id, committer, amount::TEXT, in_support, placed_at
		 FROM commitments WHERE bill_id = $1 AND committer = $2`,
		billID, committer).
		Scan(&c.ID, &c.BillID, &c.Committer, &amt, &c.InSupport, &c.PlacedAt)
	if err != nil {
		return nil, fmt.Errorf("get commitment %s/%s: %w", billID, committer, mapPgError(err))
	}
	if c.Amount, err = amount.FromString(amt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListCommitmentsByBill(ctx context.Context, billID string) ([]model.Commitment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, bill_id, committer, amount::TEXT, in_support, placed_at
		 FROM commitments WHERE bill_id = $1 ORDER BY placed_at, committer`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commitments []model.Commitment
	for rows.Next() {
		var c model.Commitment
		var amt string
		if err := rows.Scan(&c.ID, &c.BillID, &c.Committer, &amt, &c.InSupport, &c.PlacedAt); err != nil {
			return nil, err
		}
		if c.Amount, err = amount.FromString(amt); err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}

func (s *PostgresStore) GetAggregates(ctx context.Context, billID string) (*model.Aggregates, error) {
	agg := &model.Aggregates{BillID: billID}
	var totalSup, totalAg string

	err := s.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(amount) FILTER (WHERE in_support), 0)::TEXT,
			COUNT(*) FILTER (WHERE in_support),
			COALESCE(SUM(amount) FILTER (WHERE NOT in_support), 0)::TEXT,
			COUNT(*) FILTER (WHERE NOT in_support)
		 FROM commitments WHERE bill_id = $1`, billID).
		Scan(&totalSup, &agg.CountSupporting, &totalAg, &agg.CountAgainst)
	if err != nil {
		return nil, err
	}

	if agg.TotalSupporting, err = amount.FromString(totalSup); err != nil {
		return nil, err
	}
	if agg.TotalAgainst, err = amount.FromString(totalAg); err != nil {
		return nil, err
	}
	return agg, nil
}

func (s *PostgresStore) OpenEscrowByCommitter(ctx context.Context, committer string) (amount.Amount, error) {
	var total string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(c.amount), 0)::TEXT
		 FROM commitments c
		 JOIN bills b ON b.id = c.bill_id
		 WHERE c.committer = $1 AND NOT b.settled`, committer).
		Scan(&total)
	if err != nil {
		return amount.Zero, err
	}
	return amount.FromString(total)
}

func (s *PostgresStore) InsertClaims(ctx context.Context, claims []model.Claim) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range claims {
		if _, err := tx.Exec(ctx,
			`INSERT INTO claims (bill_id, committer, amount, refund, paid_at)
			 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
			c.BillID, c.Committer, c.Amount.String(), c.Refund, c.PaidAt); err != nil {
			return mapPgError(err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetClaim(ctx context.Context, billID, committer string) (*model.Claim, error) {
	var c model.Claim
	var amt string
	err := s.pool.QueryRow(ctx,
		`SELECT bill_id, committer, amount::TEXT, refund, paid_at
		 FROM claims WHERE bill_id = $1 AND committer = $2`,
		billID, committer).
		Scan(&c.BillID, &c.Committer, &amt, &c.Refund, &c.PaidAt)
	if err != nil {
		return nil, fmt.Errorf("get claim %s/%s: %w", billID, committer, mapPgError(err))
	}
	if c.Amount, err = amount.FromString(amt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) MarkClaimPaid(ctx context.Context, billID, committer string, paidAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE claims SET paid_at = $3 WHERE bill_id = $1 AND committer = $2 AND paid_at IS NULL`,
		billID, committer, paidAt)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: claim %s/%s", ErrNotFound, billID, committer)
	}
	return nil
}
