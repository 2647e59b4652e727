package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

const bookingColumns = `b.id, b.ride_id, b.passenger_id, b.seats_booked, b.total_paid_cents,
	b.commission_cents, b.driver_payout_cents, b.authorization_ref, b.capture_ref, b.refund_ref,
	b.status, b.status_version, b.driver_action, b.driver_action_at, b.cancellation_refund_cents,
	b.created_at, b.updated_at, b.cancelled_at, b.completed_at, b.refunded_at`

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (id, ride_id, passenger_id, seats_booked, total_paid_cents, commission_cents,
			driver_payout_cents, authorization_ref, status, status_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`

	_, err := r.q.ExecContext(ctx, query,
		booking.ID,
		booking.RideID,
		booking.PassengerID,
		booking.SeatsBooked,
		booking.TotalPaid,
		booking.CommissionAmount,
		booking.DriverPayoutAmount,
		booking.AuthorizationRef,
		booking.Status,
		booking.StatusVersion,
		booking.CreatedAt,
	)

	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	booking, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return booking, nil
}

// Transition writes the booking's mutable fields guarded by status and version.
func (r *BookingRepository) Transition(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $1,
			status_version = status_version + 1,
			commission_cents = $2,
			driver_payout_cents = $3,
			capture_ref = $4,
			refund_ref = $5,
			driver_action = $6,
			driver_action_at = $7,
			cancellation_refund_cents = $8,
			cancelled_at = $9,
			completed_at = $10,
			refunded_at = $11,
			updated_at = $12
		WHERE id = $13 AND status = $14 AND status_version = $15
	`

	var refundCents sql.NullInt64
	if booking.CancellationRefundAmount != nil {
		refundCents = sql.NullInt64{Int64: booking.CancellationRefundAmount.Cents(), Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		booking.Status,
		booking.CommissionAmount,
		booking.DriverPayoutAmount,
		nullString(booking.CaptureRef),
		nullString(booking.RefundRef),
		nullString(string(booking.DriverAction)),
		nullTime(booking.DriverActionAt),
		refundCents,
		nullTime(booking.CancelledAt),
		nullTime(booking.CompletedAt),
		nullTime(booking.RefundedAt),
		booking.UpdatedAt,
		booking.ID,
		from,
		booking.StatusVersion,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected != 1 {
		return repository.ErrConflict
	}

	booking.StatusVersion++
	return nil
}

// ListByRide retrieves all bookings of a ride.
func (r *BookingRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.ride_id = $1 ORDER BY b.created_at`
	return r.queryBookings(ctx, query, rideID)
}

// ListByPassenger retrieves all bookings made by a passenger.
func (r *BookingRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.passenger_id = $1 ORDER BY b.created_at DESC`
	return r.queryBookings(ctx, query, passengerID)
}

// ListByDriver retrieves all bookings on rides owned by a driver.
func (r *BookingRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN rides r ON r.id = b.ride_id
		WHERE r.driver_id = $1
		ORDER BY b.created_at
	`
	return r.queryBookings(ctx, query, driverID)
}

// ListExpiredPending retrieves pending bookings whose hold ran out or whose ride left.
func (r *BookingRepository) ListExpiredPending(ctx context.Context, createdBefore, departedBy time.Time) ([]*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN rides r ON r.id = b.ride_id
		WHERE b.status = $1 AND (b.created_at <= $2 OR r.departure_at <= $3)
		ORDER BY b.created_at
	`
	return r.queryBookings(ctx, query, domain.BookingStatusPendingDriver, createdBefore, departedBy)
}

// ListAwaitingRefund retrieves cancelled bookings with an issued refund.
func (r *BookingRepository) ListAwaitingRefund(ctx context.Context) ([]*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.status = $1 AND b.refund_ref IS NOT NULL
		ORDER BY b.cancelled_at
	`
	return r.queryBookings(ctx, query, domain.BookingStatusCancelled)
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var captureRef, refundRef, driverAction sql.NullString
	var driverActionAt, cancelledAt, completedAt, refundedAt sql.NullTime
	var refundCents sql.NullInt64

	if err := row.Scan(
		&b.ID,
		&b.RideID,
		&b.PassengerID,
		&b.SeatsBooked,
		&b.TotalPaid,
		&b.CommissionAmount,
		&b.DriverPayoutAmount,
		&b.AuthorizationRef,
		&captureRef,
		&refundRef,
		&b.Status,
		&b.StatusVersion,
		&driverAction,
		&driverActionAt,
		&refundCents,
		&b.CreatedAt,
		&b.UpdatedAt,
		&cancelledAt,
		&completedAt,
		&refundedAt,
	); err != nil {
		return nil, err
	}

	b.CaptureRef = captureRef.String
	b.RefundRef = refundRef.String
	b.DriverAction = domain.DriverAction(driverAction.String)
	if driverActionAt.Valid {
		b.DriverActionAt = driverActionAt.Time
	}
	if refundCents.Valid {
		amount := domain.Money(refundCents.Int64)
		b.CancellationRefundAmount = &amount
	}
	if cancelledAt.Valid {
		b.CancelledAt = cancelledAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = completedAt.Time
	}
	if refundedAt.Valid {
		b.RefundedAt = refundedAt.Time
	}

	return &b, nil
}

// Ensure BookingRepository implements repository.BookingRepository.
var _ repository.BookingRepository = (*BookingRepository)(nil)
