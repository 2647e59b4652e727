package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// DefaultSweepInterval is how often the sweeper runs when not configured.
const DefaultSweepInterval = 30 * time.Second

// Sweeper performs the time-driven booking transitions nobody requests:
// releasing abandoned reservations, expiring unanswered holds, completing
// departed rides and settling refunds.
type Sweeper struct {
	inventory   *InventoryController
	bookings    *BookingService
	rideRepo    repository.RideRepository
	bookingRepo repository.BookingRepository
	interval    time.Duration
	logger      *logrus.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	inventory *InventoryController,
	bookings *BookingService,
	rideRepo repository.RideRepository,
	bookingRepo repository.BookingRepository,
	interval time.Duration,
	logger *logrus.Logger,
) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		inventory:   inventory,
		bookings:    bookings,
		rideRepo:    rideRepo,
		bookingRepo: bookingRepo,
		interval:    interval,
		logger:      logger,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now().UTC())
		}
	}
}

// SweepStats counts what one sweep did.
type SweepStats struct {
	ReservationsReleased int
	HoldsExpired         int
	BookingsCompleted    int
	RidesCompleted       int
	RefundsSettled       int
}

// SweepOnce runs every step once. Steps are independent; a failing step is
// logged and the next one still runs.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) SweepStats {
	var stats SweepStats
	var err error

	if stats.ReservationsReleased, err = s.inventory.SweepExpired(ctx, now); err != nil {
		s.logger.WithError(err).Error("sweep: releasing reservations failed")
	}

	if stats.HoldsExpired, err = s.expireHolds(ctx, now); err != nil {
		s.logger.WithError(err).Error("sweep: expiring holds failed")
	}

	if stats.BookingsCompleted, stats.RidesCompleted, err = s.completeDeparted(ctx, now); err != nil {
		s.logger.WithError(err).Error("sweep: completing departed rides failed")
	}

	if stats.RefundsSettled, err = s.settleRefunds(ctx); err != nil {
		s.logger.WithError(err).Error("sweep: settling refunds failed")
	}

	if stats != (SweepStats{}) {
		s.logger.WithFields(logrus.Fields{
			"reservations_released": stats.ReservationsReleased,
			"holds_expired":         stats.HoldsExpired,
			"bookings_completed":    stats.BookingsCompleted,
			"rides_completed":       stats.RidesCompleted,
			"refunds_settled":       stats.RefundsSettled,
		}).Info("sweep finished")
	}

	return stats
}

func (s *Sweeper) expireHolds(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.bookingRepo.ListExpiredPending(ctx, now.Add(-s.bookings.HoldTTL()), now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range pending {
		if err := s.bookings.ExpireHold(ctx, b.ID); err != nil {
			s.logFailure(err, b.ID, "expire hold")
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Sweeper) completeDeparted(ctx context.Context, now time.Time) (int, int, error) {
	rides, err := s.rideRepo.ListDeparted(ctx, now)
	if err != nil {
		return 0, 0, err
	}

	bookingsCompleted, ridesCompleted := 0, 0
	for _, ride := range rides {
		bookings, err := s.bookingRepo.ListByRide(ctx, ride.ID)
		if err != nil {
			return bookingsCompleted, ridesCompleted, err
		}

		settled := true
		for _, b := range bookings {
			switch b.Status {
			case domain.BookingStatusConfirmed:
				if err := s.bookings.CompleteBooking(ctx, b.ID); err != nil {
					s.logFailure(err, b.ID, "complete booking")
					settled = false
					continue
				}
				bookingsCompleted++
			case domain.BookingStatusPendingDriver:
				// Expired by the previous step; retried next tick if that failed.
				settled = false
			}
		}

		if !settled {
			continue
		}

		if err := s.rideRepo.UpdateStatus(ctx, ride.ID, domain.RideStatusUpcoming, domain.RideStatusCompleted, now); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				s.logger.WithError(err).WithField("ride_id", ride.ID).Warn("sweep: failed to complete ride")
			}
			continue
		}
		ridesCompleted++
	}

	return bookingsCompleted, ridesCompleted, nil
}

func (s *Sweeper) settleRefunds(ctx context.Context) (int, error) {
	awaiting, err := s.bookingRepo.ListAwaitingRefund(ctx)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, b := range awaiting {
		ok, err := s.bookings.SettleRefund(ctx, b.ID)
		if err != nil {
			s.logFailure(err, b.ID, "settle refund")
			continue
		}
		if ok {
			settled++
		}
	}
	return settled, nil
}

func (s *Sweeper) logFailure(err error, bookingID, step string) {
	entry := s.logger.WithError(err).WithField("booking_id", bookingID)
	if errors.Is(err, ErrBookingBusy) {
		entry.Debug("sweep: " + step + " skipped, booking busy")
		return
	}
	entry.Warn("sweep: " + step + " failed")
}
