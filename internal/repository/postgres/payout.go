package postgres

import (
	"context"
	"database/sql"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// PayoutRepository is a PostgreSQL implementation of repository.PayoutRepository.
type PayoutRepository struct {
	q Querier
}

// NewPayoutRepository creates a new PostgreSQL payout repository.
func NewPayoutRepository(db *sql.DB) *PayoutRepository {
	return &PayoutRepository{q: db}
}

// NewPayoutRepositoryWithTx creates a payout repository using a transaction.
func NewPayoutRepositoryWithTx(tx *sql.Tx) *PayoutRepository {
	return &PayoutRepository{q: tx}
}

// Create appends a payout. Rows in payouts are never updated or deleted.
func (r *PayoutRepository) Create(ctx context.Context, payout *domain.Payout) error {
	query := `
		INSERT INTO payouts (id, driver_id, amount_cents, note, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.ExecContext(ctx, query,
		payout.ID,
		payout.DriverID,
		payout.Amount,
		nullString(payout.Note),
		payout.RecordedBy,
		payout.CreatedAt,
	)

	return err
}

// ListByDriver retrieves all payouts made to a driver, newest first.
func (r *PayoutRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Payout, error) {
	query := `
		SELECT id, driver_id, amount_cents, note, recorded_by, created_at
		FROM payouts WHERE driver_id = $1 ORDER BY created_at DESC
	`
	return r.queryPayouts(ctx, query, driverID)
}

// ListAll retrieves every payout, newest first.
func (r *PayoutRepository) ListAll(ctx context.Context) ([]*domain.Payout, error) {
	query := `
		SELECT id, driver_id, amount_cents, note, recorded_by, created_at
		FROM payouts ORDER BY created_at DESC
	`
	return r.queryPayouts(ctx, query)
}

func (r *PayoutRepository) queryPayouts(ctx context.Context, query string, args ...any) ([]*domain.Payout, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []*domain.Payout
	for rows.Next() {
		var p domain.Payout
		var note sql.NullString
		if err := rows.Scan(&p.ID, &p.DriverID, &p.Amount, &note, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Note = note.String
		payouts = append(payouts, &p)
	}

	return payouts, rows.Err()
}

// Ensure PayoutRepository implements repository.PayoutRepository.
var _ repository.PayoutRepository = (*PayoutRepository)(nil)
