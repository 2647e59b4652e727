package repository

import (
	"context"
	"time"

	"carpool/internal/domain"
)

// RideRepository defines the persistence operations for rides and their seat counters.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// List retrieves upcoming rides matching the filter, soonest departure first.
	List(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, error)

	// ListByDriver retrieves every ride owned by a driver.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error)

	// ListAll retrieves every ride, newest departure first.
	ListAll(ctx context.Context) ([]*domain.Ride, error)

	// ListDeparted retrieves upcoming rides whose departure is at or before now.
	ListDeparted(ctx context.Context, now time.Time) ([]*domain.Ride, error)

	// ReserveSeats atomically adds seats to the reserved counter if the ride is
	// upcoming and has room. Returns false when the guard did not match.
	ReserveSeats(ctx context.Context, rideID string, seats int) (bool, error)

	// ReleaseSeats atomically subtracts seats from the reserved counter.
	ReleaseSeats(ctx context.Context, rideID string, seats int) error

	// UpdateSeatsTotal changes capacity. Returns ErrConflict when the new total
	// would fall below the seats already reserved.
	UpdateSeatsTotal(ctx context.Context, rideID string, seatsTotal int) error

	// UpdateStatus moves a ride from one status to another.
	// Returns ErrConflict when the ride is no longer in the from status.
	UpdateStatus(ctx context.Context, rideID string, from, to domain.RideStatus, at time.Time) error

	// Cancel moves an upcoming ride with no reserved seats to cancelled.
	// Returns ErrConflict when the ride is not upcoming or still holds seats.
	Cancel(ctx context.Context, rideID string, at time.Time) error
}
