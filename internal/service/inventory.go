package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// DefaultReservationTTL bounds how long seats stay claimed by a checkout
// that has not turned into a booking.
const DefaultReservationTTL = 2 * time.Minute

// sweepBatchSize limits how many expired reservations one sweep releases.
const sweepBatchSize = 100

// InventoryController owns the seat counters of rides. All changes go through
// guarded single-statement updates so concurrent checkouts can never reserve
// more seats than a ride has.
type InventoryController struct {
	txManager repository.TxManager
	rideRepo  repository.RideRepository
	ttl       time.Duration
	logger    *logrus.Logger
}

// NewInventoryController creates a new InventoryController.
func NewInventoryController(txManager repository.TxManager, rideRepo repository.RideRepository, ttl time.Duration, logger *logrus.Logger) *InventoryController {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &InventoryController{
		txManager: txManager,
		rideRepo:  rideRepo,
		ttl:       ttl,
		logger:    logger,
	}
}

// Reserve claims seats on a ride. The claim is recorded as a reservation that
// either becomes a booking or is released.
func (c *InventoryController) Reserve(ctx context.Context, rideID string, seats int) (*domain.SeatReservation, error) {
	if seats <= 0 {
		return nil, validationError("seat_count must be positive")
	}

	now := time.Now().UTC()
	reservation := &domain.SeatReservation{
		ID:        uuid.New().String(),
		RideID:    rideID,
		Seats:     seats,
		ExpiresAt: now.Add(c.ttl),
		CreatedAt: now,
	}

	err := c.txManager.WithinTx(ctx, func(ctx context.Context, s repository.Stores) error {
		ok, err := s.Rides.ReserveSeats(ctx, rideID, seats)
		if err != nil {
			return err
		}

		if !ok {
			ride, err := s.Rides.GetByID(ctx, rideID)
			if err != nil {
				return err
			}
			if ride.Status != domain.RideStatusUpcoming {
				return ErrRideNotBookable
			}
			return &InventoryExhaustedError{
				RideID:    rideID,
				Requested: seats,
				Available: ride.SeatsAvailable(),
			}
		}

		return s.Reservations.Create(ctx, reservation)
	})
	if err != nil {
		return nil, err
	}

	return reservation, nil
}

// Release returns the seats of a reservation to the ride. Releasing a
// reservation that was already consumed or released is a no-op.
func (c *InventoryController) Release(ctx context.Context, reservationID string) error {
	return c.txManager.WithinTx(ctx, func(ctx context.Context, s repository.Stores) error {
		reservation, err := s.Reservations.Delete(ctx, reservationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		return s.Rides.ReleaseSeats(ctx, reservation.RideID, reservation.Seats)
	})
}

// SweepExpired releases reservations whose checkout never completed and
// returns how many were released.
func (c *InventoryController) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []*domain.SeatReservation
	err := c.txManager.WithinTx(ctx, func(ctx context.Context, s repository.Stores) error {
		var err error
		expired, err = s.Reservations.ListExpired(ctx, now, sweepBatchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	released := 0
	for _, reservation := range expired {
		if err := c.Release(ctx, reservation.ID); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"reservation_id": reservation.ID,
				"ride_id":        reservation.RideID,
			}).Warn("failed to release expired reservation")
			continue
		}
		released++
	}

	return released, nil
}

// Availability returns the number of seats that can still be reserved.
func (c *InventoryController) Availability(ctx context.Context, rideID string) (int, error) {
	ride, err := c.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return 0, err
	}
	return ride.SeatsAvailable(), nil
}
