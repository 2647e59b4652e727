package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/redis"
	"carpool/internal/repository"
)

// Default timings for the booking lifecycle.
const (
	DefaultHoldTTL = 24 * time.Hour
	DefaultLockTTL = 30 * time.Second
)

// Decision values accepted by DriverDecision.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// BookingConfig holds the timing knobs of the booking lifecycle.
type BookingConfig struct {
	// HoldTTL is how long a pending_driver booking waits for the driver.
	HoldTTL time.Duration
	// LockTTL bounds the per-booking lock.
	LockTTL time.Duration
}

// BookingService drives bookings through their lifecycle. Every transition
// calls the processor first and persists second with a guarded update.
type BookingService struct {
	txManager    repository.TxManager
	bookingRepo  repository.BookingRepository
	rideRepo     repository.RideRepository
	profileRepo  repository.ProfileRepository
	inventory    *InventoryController
	gateway      *PaymentGateway
	locks        redis.LockStoreInterface
	cache        redis.SettlementCacheInterface
	notification *NotificationService
	cfg          BookingConfig
	logger       *logrus.Logger
	now          func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	txManager repository.TxManager,
	bookingRepo repository.BookingRepository,
	rideRepo repository.RideRepository,
	profileRepo repository.ProfileRepository,
	inventory *InventoryController,
	gateway *PaymentGateway,
	locks redis.LockStoreInterface,
	cache redis.SettlementCacheInterface,
	notification *NotificationService,
	cfg BookingConfig,
	logger *logrus.Logger,
) *BookingService {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &BookingService{
		txManager:    txManager,
		bookingRepo:  bookingRepo,
		rideRepo:     rideRepo,
		profileRepo:  profileRepo,
		inventory:    inventory,
		gateway:      gateway,
		locks:        locks,
		cache:        cache,
		notification: notification,
		cfg:          cfg,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// HoldTTL returns how long a pending booking waits for the driver.
func (s *BookingService) HoldTTL() time.Duration {
	return s.cfg.HoldTTL
}

// CheckoutRequest contains the parameters for booking seats.
type CheckoutRequest struct {
	RideID        string
	PassengerID   string
	SeatCount     int
	PaymentSource string
}

// Checkout reserves seats, places a payment hold and creates a pending_driver
// booking. On any failure the seats are returned and the hold released.
func (s *BookingService) Checkout(ctx context.Context, req CheckoutRequest) (*domain.Booking, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	passenger, err := s.profileRepo.GetByID(ctx, req.PassengerID)
	if err != nil {
		return nil, err
	}

	ride, err := s.rideRepo.GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if ride.Status != domain.RideStatusUpcoming || !ride.DepartureAt.After(now) {
		return nil, ErrRideNotBookable
	}

	if ride.DriverID == passenger.ID {
		return nil, validationError("drivers cannot book their own ride")
	}

	driver, err := s.profileRepo.GetByID(ctx, ride.DriverID)
	if err != nil {
		return nil, err
	}

	if err := CheckEligibility(passenger, driver); err != nil {
		return nil, err
	}

	total, ok := ride.PricePerSeat.Times(req.SeatCount)
	if !ok || !total.InRange() {
		return nil, validationError("total price exceeds %s", domain.MaxMoney)
	}

	reservation, err := s.inventory.Reserve(ctx, ride.ID, req.SeatCount)
	if err != nil {
		return nil, err
	}

	auth, err := s.gateway.Authorize(ctx, total, req.PaymentSource, reservation.ID)
	if err != nil {
		s.releaseReservation(ctx, reservation.ID)
		return nil, err
	}

	booking := &domain.Booking{
		ID:               uuid.New().String(),
		RideID:           ride.ID,
		PassengerID:      passenger.ID,
		SeatsBooked:      req.SeatCount,
		TotalPaid:        total,
		AuthorizationRef: auth.Ref,
		Status:           domain.BookingStatusPendingDriver,
		StatusVersion:    1,
		DriverAction:     domain.DriverActionNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// The reservation's seats become the booking's seats: the counter is
	// left as is and the reservation row is consumed in the same tx.
	err = s.txManager.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		if _, err := st.Reservations.Delete(ctx, reservation.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: seat reservation expired", ErrInventoryExhausted)
			}
			return err
		}
		return st.Bookings.Create(ctx, booking)
	})
	if err != nil {
		s.releaseReservation(ctx, reservation.ID)
		if voidErr := s.gateway.Void(ctx, auth.Ref); voidErr != nil {
			s.logger.WithError(voidErr).WithFields(logrus.Fields{
				"authorization_ref": auth.Ref,
				"ride_id":           ride.ID,
			}).Error("booking not created and hold not released")
			return nil, fmt.Errorf("%w: hold %s not released: %v", ErrReconciliationRequired, auth.Ref, err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"ride_id":      ride.ID,
		"passenger_id": passenger.ID,
		"seats":        booking.SeatsBooked,
		"total":        booking.TotalPaid.String(),
	}).Info("booking created")

	s.notification.NotifyBookingCreated(ctx, booking, ride)
	return booking, nil
}

func validateCheckout(req CheckoutRequest) error {
	if req.RideID == "" {
		return validationError("ride_id is required")
	}
	if req.PassengerID == "" {
		return validationError("passenger_id is required")
	}
	if req.SeatCount <= 0 {
		return validationError("seat_count must be positive")
	}
	if req.PaymentSource == "" {
		return validationError("payment_source is required")
	}
	return nil
}

// DriverDecisionRequest contains the driver's answer to a pending booking.
type DriverDecisionRequest struct {
	BookingID string
	DriverID  string
	Decision  string
}

// DriverDecision accepts or rejects a pending_driver booking. Accepting
// captures the hold and fixes the commission split; rejecting voids it.
func (s *BookingService) DriverDecision(ctx context.Context, req DriverDecisionRequest) (*domain.Booking, error) {
	if req.Decision != DecisionAccept && req.Decision != DecisionReject {
		return nil, validationError("decision must be %q or %q", DecisionAccept, DecisionReject)
	}

	unlock, err := s.lock(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, ride, err := s.load(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if ride.DriverID != req.DriverID {
		return nil, ErrUnauthorizedAction
	}

	if booking.Status != domain.BookingStatusPendingDriver {
		return nil, fmt.Errorf("%w: booking is %s", ErrStateTransition, booking.Status)
	}

	if req.Decision == DecisionAccept {
		return s.accept(ctx, booking, ride)
	}
	return s.reject(ctx, booking, ride)
}

func (s *BookingService) accept(ctx context.Context, booking *domain.Booking, ride *domain.Ride) (*domain.Booking, error) {
	captureRef, err := s.gateway.Capture(ctx, booking.AuthorizationRef)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := *booking
	next.Status = domain.BookingStatusConfirmed
	next.CaptureRef = captureRef
	next.CommissionAmount, next.DriverPayoutAmount = SplitPayment(booking.TotalPaid)
	next.DriverAction = domain.DriverActionAccepted
	next.DriverActionAt = now
	next.UpdatedAt = now

	err = s.txManager.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		return st.Bookings.Transition(ctx, &next, domain.BookingStatusPendingDriver)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent accept already confirmed this booking with the same capture.
			if current, getErr := s.bookingRepo.GetByID(ctx, booking.ID); getErr == nil &&
				current.Status == domain.BookingStatusConfirmed && current.CaptureRef == captureRef {
				return nil, fmt.Errorf("%w: booking is %s", ErrStateTransition, current.Status)
			}
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"capture_ref": captureRef,
		}).Error("payment captured but booking not confirmed")
		return nil, fmt.Errorf("%w: capture %s on booking %s: %v", ErrReconciliationRequired, captureRef, booking.ID, err)
	}

	s.invalidateSettlement(ctx, ride.DriverID)

	s.logger.WithFields(logrus.Fields{
		"booking_id": next.ID,
		"commission": next.CommissionAmount.String(),
		"payout":     next.DriverPayoutAmount.String(),
	}).Info("booking confirmed")

	s.notification.NotifyBookingConfirmed(ctx, &next, ride)
	return &next, nil
}

func (s *BookingService) reject(ctx context.Context, booking *domain.Booking, ride *domain.Ride) (*domain.Booking, error) {
	if err := s.gateway.Void(ctx, booking.AuthorizationRef); err != nil {
		return nil, err
	}

	now := s.now()
	next := *booking
	next.DriverAction = domain.DriverActionRejected
	next.DriverActionAt = now
	s.markCancelled(&next, booking.TotalPaid, now)

	if err := s.persistCancel(ctx, &next, domain.BookingStatusPendingDriver); err != nil {
		return nil, fmt.Errorf("%w: hold %s voided on booking %s: %v", ErrReconciliationRequired, booking.AuthorizationRef, booking.ID, err)
	}

	s.logger.WithField("booking_id", next.ID).Info("booking rejected by driver")
	s.notification.NotifyBookingCancelled(ctx, &next, ride, ride.DriverID)
	return &next, nil
}

// CancelResult is the outcome of a passenger cancellation.
type CancelResult struct {
	Booking *domain.Booking
	Refund  RefundQuote
}

// PassengerCancel cancels a pending_driver or confirmed booking and returns
// what the passenger gets back.
func (s *BookingService) PassengerCancel(ctx context.Context, bookingID, passengerID string) (*CancelResult, error) {
	unlock, err := s.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, ride, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.PassengerID != passengerID {
		return nil, ErrUnauthorizedAction
	}

	now := s.now()
	quote := RefundFor(booking, ride.DepartureAt, now)
	next := *booking
	from := booking.Status

	switch booking.Status {
	case domain.BookingStatusPendingDriver:
		if err := s.gateway.Void(ctx, booking.AuthorizationRef); err != nil {
			return nil, err
		}
	case domain.BookingStatusConfirmed:
		if !now.Before(ride.DepartureAt) {
			return nil, fmt.Errorf("%w: ride has already departed", ErrStateTransition)
		}
		if quote.Amount > 0 {
			refundRef, err := s.gateway.Refund(ctx, booking.AuthorizationRef, quote.Amount)
			if err != nil {
				return nil, err
			}
			next.RefundRef = refundRef
		}
	default:
		return nil, fmt.Errorf("%w: booking is %s", ErrStateTransition, booking.Status)
	}

	s.markCancelled(&next, quote.Amount, now)

	if err := s.persistCancel(ctx, &next, from); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"refund_ref": next.RefundRef,
		}).Error("payment released but booking not cancelled")
		return nil, fmt.Errorf("%w: booking %s: %v", ErrReconciliationRequired, booking.ID, err)
	}

	if from == domain.BookingStatusConfirmed {
		s.invalidateSettlement(ctx, ride.DriverID)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": next.ID,
		"from":       from,
		"refund":     quote.Amount.String(),
	}).Info("booking cancelled by passenger")

	s.notification.NotifyBookingCancelled(ctx, &next, ride, passengerID)
	return &CancelResult{Booking: &next, Refund: quote}, nil
}

// GetBooking returns a booking visible to its passenger, the ride's driver
// or an admin.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, callerID string) (*domain.Booking, error) {
	booking, ride, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if callerID == booking.PassengerID || callerID == ride.DriverID {
		return booking, nil
	}
	if err := requireAdmin(ctx, s.profileRepo, callerID); err != nil {
		return nil, err
	}
	return booking, nil
}

// RefundQuote returns what cancelling the booking now would refund, without
// changing anything.
func (s *BookingService) RefundQuote(ctx context.Context, bookingID, callerID string) (RefundQuote, error) {
	booking, ride, err := s.load(ctx, bookingID)
	if err != nil {
		return RefundQuote{}, err
	}

	if callerID != booking.PassengerID {
		if err := requireAdmin(ctx, s.profileRepo, callerID); err != nil {
			return RefundQuote{}, err
		}
	}

	return RefundFor(booking, ride.DepartureAt, s.now()), nil
}

// ListPassengerBookings returns the caller's own bookings.
func (s *BookingService) ListPassengerBookings(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	return s.bookingRepo.ListByPassenger(ctx, passengerID)
}

// ListRideBookings returns the bookings on a ride to its driver or an admin.
func (s *BookingService) ListRideBookings(ctx context.Context, rideID, callerID string) ([]*domain.Booking, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if ride.DriverID != callerID {
		if err := requireAdmin(ctx, s.profileRepo, callerID); err != nil {
			return nil, err
		}
	}

	return s.bookingRepo.ListByRide(ctx, rideID)
}

// ExpireHold cancels a pending_driver booking the driver never answered and
// voids its hold. Bookings no longer pending are left alone.
func (s *BookingService) ExpireHold(ctx context.Context, bookingID string) error {
	unlock, err := s.lock(ctx, bookingID)
	if err != nil {
		return err
	}
	defer unlock()

	booking, ride, err := s.load(ctx, bookingID)
	if err != nil {
		return err
	}

	if booking.Status != domain.BookingStatusPendingDriver {
		return nil
	}

	if err := s.gateway.Void(ctx, booking.AuthorizationRef); err != nil {
		return err
	}

	next := *booking
	s.markCancelled(&next, booking.TotalPaid, s.now())

	if err := s.persistCancel(ctx, &next, domain.BookingStatusPendingDriver); err != nil {
		return fmt.Errorf("%w: hold %s voided on booking %s: %v", ErrReconciliationRequired, booking.AuthorizationRef, booking.ID, err)
	}

	s.logger.WithField("booking_id", next.ID).Info("pending booking expired")
	s.notification.NotifyBookingCancelled(ctx, &next, ride, "")
	return nil
}

// CompleteBooking marks a confirmed booking completed once its ride departed.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID string) error {
	unlock, err := s.lock(ctx, bookingID)
	if err != nil {
		return err
	}
	defer unlock()

	booking, ride, err := s.load(ctx, bookingID)
	if err != nil {
		return err
	}

	now := s.now()
	if booking.Status != domain.BookingStatusConfirmed || now.Before(ride.DepartureAt) {
		return nil
	}

	next := *booking
	next.Status = domain.BookingStatusCompleted
	next.CompletedAt = now
	next.UpdatedAt = now

	err = s.txManager.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		return st.Bookings.Transition(ctx, &next, domain.BookingStatusConfirmed)
	})
	if err != nil {
		return err
	}

	s.invalidateSettlement(ctx, ride.DriverID)
	s.notification.NotifyBookingCompleted(ctx, &next, ride)
	return nil
}

// SettleRefund moves a cancelled booking to refunded once the processor
// reports its refund settled.
func (s *BookingService) SettleRefund(ctx context.Context, bookingID string) (bool, error) {
	unlock, err := s.lock(ctx, bookingID)
	if err != nil {
		return false, err
	}
	defer unlock()

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return false, err
	}

	if !booking.AwaitingRefund() {
		return false, nil
	}

	settled, err := s.gateway.RefundSettled(ctx, booking.AuthorizationRef)
	if err != nil || !settled {
		return false, err
	}

	now := s.now()
	next := *booking
	next.Status = domain.BookingStatusRefunded
	next.RefundedAt = now
	next.UpdatedAt = now

	err = s.txManager.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		return st.Bookings.Transition(ctx, &next, domain.BookingStatusCancelled)
	})
	if err != nil {
		return false, err
	}

	s.notification.NotifyBookingRefunded(ctx, &next)
	return true, nil
}

func (s *BookingService) markCancelled(b *domain.Booking, refund domain.Money, now time.Time) {
	b.Status = domain.BookingStatusCancelled
	b.CancellationRefundAmount = &refund
	b.CancelledAt = now
	b.UpdatedAt = now
}

// persistCancel writes the cancel transition and returns the booking's seats
// to the ride in one transaction.
func (s *BookingService) persistCancel(ctx context.Context, next *domain.Booking, from domain.BookingStatus) error {
	if !domain.CanTransition(from, next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrStateTransition, from, next.Status)
	}
	return s.txManager.WithinTx(ctx, func(ctx context.Context, st repository.Stores) error {
		if err := st.Bookings.Transition(ctx, next, from); err != nil {
			return err
		}
		return st.Rides.ReleaseSeats(ctx, next.RideID, next.SeatsBooked)
	})
}

func (s *BookingService) load(ctx context.Context, bookingID string) (*domain.Booking, *domain.Ride, error) {
	if bookingID == "" {
		return nil, nil, validationError("booking id is required")
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	ride, err := s.rideRepo.GetByID(ctx, booking.RideID)
	if err != nil {
		return nil, nil, err
	}

	return booking, ride, nil
}

// lock takes the per-booking lock and returns its release func.
func (s *BookingService) lock(ctx context.Context, bookingID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	token, ok, err := s.locks.AcquireBookingLock(ctx, bookingID, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire booking lock: %w", err)
	}
	if !ok {
		return nil, ErrBookingBusy
	}

	return func() {
		if err := s.locks.ReleaseBookingLock(context.WithoutCancel(ctx), bookingID, token); err != nil {
			s.logger.WithError(err).WithField("booking_id", bookingID).Warn("failed to release booking lock")
		}
	}, nil
}

func (s *BookingService) releaseReservation(ctx context.Context, reservationID string) {
	if err := s.inventory.Release(context.WithoutCancel(ctx), reservationID); err != nil {
		s.logger.WithError(err).WithField("reservation_id", reservationID).Warn("failed to release reservation")
	}
}

func (s *BookingService) invalidateSettlement(ctx context.Context, driverID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSettlement(ctx, driverID); err != nil {
		s.logger.WithError(err).WithField("driver_id", driverID).Warn("failed to invalidate settlement cache")
	}
}
