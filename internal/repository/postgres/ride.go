package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, driver_id, origin, destination, departure_at, seats_total, seats_reserved,
	price_per_seat_cents, status, created_at, completed_at, cancelled_at`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, driver_id, origin, destination, departure_at, seats_total, seats_reserved,
			price_per_seat_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.Origin,
		ride.Destination,
		ride.DepartureAt,
		ride.SeatsTotal,
		ride.SeatsReserved,
		ride.PricePerSeat,
		ride.Status,
		ride.CreatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// List retrieves upcoming rides matching the filter, soonest departure first.
func (r *RideRepository) List(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, error) {
	conds := []string{"status = $1"}
	args := []any{domain.RideStatusUpcoming}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Origin != "" {
		add("origin ILIKE $%d", "%"+filter.Origin+"%")
	}
	if filter.Destination != "" {
		add("destination ILIKE $%d", "%"+filter.Destination+"%")
	}
	if !filter.DepartureAfter.IsZero() {
		add("departure_at >= $%d", filter.DepartureAfter)
	}
	if !filter.DepartureBy.IsZero() {
		add("departure_at <= $%d", filter.DepartureBy)
	}
	if filter.MinSeats > 0 {
		add("seats_total - seats_reserved >= $%d", filter.MinSeats)
	}
	if filter.DriverID != "" {
		add("driver_id = $%d", filter.DriverID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `SELECT ` + rideColumns + ` FROM rides WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(` ORDER BY departure_at ASC LIMIT %d`, limit)

	return r.queryRides(ctx, query, args...)
}

// ListByDriver retrieves every ride owned by a driver.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 ORDER BY departure_at DESC`
	return r.queryRides(ctx, query, driverID)
}

// ListAll retrieves every ride, newest departure first.
func (r *RideRepository) ListAll(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides ORDER BY departure_at DESC`
	return r.queryRides(ctx, query)
}

// ListDeparted retrieves upcoming rides whose departure is at or before now.
func (r *RideRepository) ListDeparted(ctx context.Context, now time.Time) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = $1 AND departure_at <= $2 ORDER BY departure_at`
	return r.queryRides(ctx, query, domain.RideStatusUpcoming, now)
}

// ReserveSeats atomically adds seats to the reserved counter. The check and
// the increment are one statement, so concurrent callers cannot both pass
// the capacity guard for the last seat.
func (r *RideRepository) ReserveSeats(ctx context.Context, rideID string, seats int) (bool, error) {
	query := `
		UPDATE rides
		SET seats_reserved = seats_reserved + $2
		WHERE id = $1 AND status = $3 AND seats_reserved + $2 <= seats_total
	`

	result, err := r.q.ExecContext(ctx, query, rideID, seats, domain.RideStatusUpcoming)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

// ReleaseSeats atomically subtracts seats from the reserved counter.
func (r *RideRepository) ReleaseSeats(ctx context.Context, rideID string, seats int) error {
	query := `
		UPDATE rides
		SET seats_reserved = seats_reserved - $2
		WHERE id = $1 AND seats_reserved >= $2
	`

	result, err := r.q.ExecContext(ctx, query, rideID, seats)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("release %d seats on ride %s: %w", seats, rideID, repository.ErrConflict)
	}

	return nil
}

// UpdateSeatsTotal changes capacity, never below the seats already reserved.
func (r *RideRepository) UpdateSeatsTotal(ctx context.Context, rideID string, seatsTotal int) error {
	query := `
		UPDATE rides
		SET seats_total = $2
		WHERE id = $1 AND status = $3 AND seats_reserved <= $2
	`

	result, err := r.q.ExecContext(ctx, query, rideID, seatsTotal, domain.RideStatusUpcoming)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	return nil
}

// UpdateStatus moves a ride from one status to another.
func (r *RideRepository) UpdateStatus(ctx context.Context, rideID string, from, to domain.RideStatus, at time.Time) error {
	query := `
		UPDATE rides
		SET status = $3,
			completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND status = $2
	`

	result, err := r.q.ExecContext(ctx, query, rideID, from, to, at)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	return nil
}

// Cancel moves an upcoming ride with no reserved seats to cancelled.
func (r *RideRepository) Cancel(ctx context.Context, rideID string, at time.Time) error {
	query := `
		UPDATE rides
		SET status = $2, cancelled_at = $3
		WHERE id = $1 AND status = $4 AND seats_reserved = 0
	`

	result, err := r.q.ExecContext(ctx, query, rideID, domain.RideStatusCancelled, at, domain.RideStatusUpcoming)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	return nil
}

func (r *RideRepository) queryRides(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}

	return rides, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var completedAt, cancelledAt sql.NullTime

	if err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.Origin,
		&ride.Destination,
		&ride.DepartureAt,
		&ride.SeatsTotal,
		&ride.SeatsReserved,
		&ride.PricePerSeat,
		&ride.Status,
		&ride.CreatedAt,
		&completedAt,
		&cancelledAt,
	); err != nil {
		return nil, err
	}

	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}

	return &ride, nil
}

// Ensure RideRepository implements repository.RideRepository.
var _ repository.RideRepository = (*RideRepository)(nil)
