package repository

import (
	"context"
	"time"

	"carpool/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// Transition writes the booking's mutable fields if it is still in the from
	// status at booking.StatusVersion. On success StatusVersion is incremented.
	// Returns ErrConflict when another writer got there first.
	Transition(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error

	// ListByRide retrieves all bookings of a ride.
	ListByRide(ctx context.Context, rideID string) ([]*domain.Booking, error)

	// ListByPassenger retrieves all bookings made by a passenger.
	ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error)

	// ListByDriver retrieves all bookings on rides owned by a driver.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error)

	// ListExpiredPending retrieves pending_driver bookings created before
	// createdBefore or whose ride departs at or before departedBy.
	ListExpiredPending(ctx context.Context, createdBefore, departedBy time.Time) ([]*domain.Booking, error)

	// ListAwaitingRefund retrieves cancelled bookings with an issued refund.
	ListAwaitingRefund(ctx context.Context) ([]*domain.Booking, error)
}
