package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// ReservationRepository is a PostgreSQL implementation of repository.ReservationRepository.
type ReservationRepository struct {
	q Querier
}

// NewReservationRepository creates a new PostgreSQL reservation repository.
func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{q: db}
}

// NewReservationRepositoryWithTx creates a reservation repository using a transaction.
func NewReservationRepositoryWithTx(tx *sql.Tx) *ReservationRepository {
	return &ReservationRepository{q: tx}
}

// Create persists a new reservation.
func (r *ReservationRepository) Create(ctx context.Context, res *domain.SeatReservation) error {
	query := `
		INSERT INTO seat_reservations (id, ride_id, seats, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.ExecContext(ctx, query, res.ID, res.RideID, res.Seats, res.ExpiresAt, res.CreatedAt)
	return err
}

// Delete removes a reservation and returns it.
func (r *ReservationRepository) Delete(ctx context.Context, id string) (*domain.SeatReservation, error) {
	query := `
		DELETE FROM seat_reservations WHERE id = $1
		RETURNING id, ride_id, seats, expires_at, created_at
	`

	var res domain.SeatReservation
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&res.ID,
		&res.RideID,
		&res.Seats,
		&res.ExpiresAt,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &res, nil
}

// ListExpired retrieves reservations that expired at or before now.
func (r *ReservationRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.SeatReservation, error) {
	query := `
		SELECT id, ride_id, seats, expires_at, created_at
		FROM seat_reservations
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []*domain.SeatReservation
	for rows.Next() {
		var res domain.SeatReservation
		if err := rows.Scan(&res.ID, &res.RideID, &res.Seats, &res.ExpiresAt, &res.CreatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, &res)
	}

	return reservations, rows.Err()
}

// Ensure ReservationRepository implements repository.ReservationRepository.
var _ repository.ReservationRepository = (*ReservationRepository)(nil)
