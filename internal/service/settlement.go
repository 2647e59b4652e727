package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/redis"
	"carpool/internal/repository"
)

// Settlement is a driver's reconciliation totals.
type Settlement struct {
	DriverID        string
	TotalEarned     domain.Money
	TotalPaidOut    domain.Money
	BalanceOwed     domain.Money
	EarningBookings int
	PayoutCount     int
	ComputedAt      time.Time
}

// ComputeSettlement folds a driver's bookings and payouts into totals.
// Earned counts confirmed and completed bookings net of commission; the
// balance owed never goes below zero.
func ComputeSettlement(driverID string, bookings []*domain.Booking, payouts []*domain.Payout) Settlement {
	s := Settlement{DriverID: driverID}

	for _, b := range bookings {
		if !b.Status.Earning() {
			continue
		}
		s.TotalEarned += b.TotalPaid - b.CommissionAmount
		s.EarningBookings++
	}

	for _, p := range payouts {
		s.TotalPaidOut += p.Amount
		s.PayoutCount++
	}

	if owed := s.TotalEarned - s.TotalPaidOut; owed > 0 {
		s.BalanceOwed = owed
	}

	return s
}

// SettlementService computes driver balances and records payouts.
type SettlementService struct {
	bookingRepo  repository.BookingRepository
	rideRepo     repository.RideRepository
	payoutRepo   repository.PayoutRepository
	profileRepo  repository.ProfileRepository
	cache        redis.SettlementCacheInterface
	notification *NotificationService
	logger       *logrus.Logger
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(
	bookingRepo repository.BookingRepository,
	rideRepo repository.RideRepository,
	payoutRepo repository.PayoutRepository,
	profileRepo repository.ProfileRepository,
	cache redis.SettlementCacheInterface,
	notification *NotificationService,
	logger *logrus.Logger,
) *SettlementService {
	return &SettlementService{
		bookingRepo:  bookingRepo,
		rideRepo:     rideRepo,
		payoutRepo:   payoutRepo,
		profileRepo:  profileRepo,
		cache:        cache,
		notification: notification,
		logger:       logger,
	}
}

// DriverSettlement returns a driver's totals to the driver or an admin,
// reading through the cache.
func (s *SettlementService) DriverSettlement(ctx context.Context, callerID, driverID string) (*Settlement, error) {
	if callerID != driverID {
		if err := requireAdmin(ctx, s.profileRepo, callerID); err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		cached, err := s.cache.GetSettlement(ctx, driverID)
		if err != nil {
			s.logger.WithError(err).WithField("driver_id", driverID).Warn("settlement cache read failed")
		}
		if cached != nil {
			return fromCached(cached), nil
		}
	}

	bookings, err := s.bookingRepo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	payouts, err := s.payoutRepo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	settlement := ComputeSettlement(driverID, bookings, payouts)
	settlement.ComputedAt = time.Now().UTC()
	s.store(ctx, &settlement)

	return &settlement, nil
}

// RecordPayoutRequest contains the parameters for recording a payout.
type RecordPayoutRequest struct {
	AdminID  string
	DriverID string
	Amount   domain.Money
	Note     string
}

// RecordPayout appends a payout to the ledger. Payouts are not capped at the
// balance owed; over-payment leaves the balance at zero.
func (s *SettlementService) RecordPayout(ctx context.Context, req RecordPayoutRequest) (*domain.Payout, error) {
	if err := requireAdmin(ctx, s.profileRepo, req.AdminID); err != nil {
		return nil, err
	}

	if req.DriverID == "" {
		return nil, validationError("driver_id is required")
	}
	if req.Amount <= 0 || !req.Amount.InRange() {
		return nil, validationError("amount must be positive and at most %s", domain.MaxMoney)
	}

	if _, err := s.profileRepo.GetByID(ctx, req.DriverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationError("driver %s does not exist", req.DriverID)
		}
		return nil, err
	}

	payout := &domain.Payout{
		ID:         uuid.New().String(),
		DriverID:   req.DriverID,
		Amount:     req.Amount,
		Note:       strings.TrimSpace(req.Note),
		RecordedBy: req.AdminID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.payoutRepo.Create(ctx, payout); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSettlement(ctx, req.DriverID); err != nil {
			s.logger.WithError(err).WithField("driver_id", req.DriverID).Warn("failed to invalidate settlement cache")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"payout_id": payout.ID,
		"driver_id": payout.DriverID,
		"amount":    payout.Amount.String(),
		"admin_id":  payout.RecordedBy,
	}).Info("payout recorded")

	s.notification.NotifyPayoutRecorded(ctx, payout)
	return payout, nil
}

// ListPayouts returns the payout ledger, optionally for one driver.
func (s *SettlementService) ListPayouts(ctx context.Context, adminID, driverID string) ([]*domain.Payout, error) {
	if err := requireAdmin(ctx, s.profileRepo, adminID); err != nil {
		return nil, err
	}
	if driverID != "" {
		return s.payoutRepo.ListByDriver(ctx, driverID)
	}
	return s.payoutRepo.ListAll(ctx)
}

// RideOverview is one ride's booking and money summary.
type RideOverview struct {
	Ride           *domain.Ride
	Bookings       int
	SeatsBooked    int
	Gross          domain.Money
	Commission     domain.Money
	DriverEarnings domain.Money
}

// DriverOverview groups a driver's rides with their settlement.
type DriverOverview struct {
	DriverID   string
	DriverName string
	Settlement Settlement
	Rides      []RideOverview
}

// RidesOverview is the admin view across all drivers.
type RidesOverview struct {
	Drivers         []DriverOverview
	TotalGross      domain.Money
	TotalCommission domain.Money
	TotalOwed       domain.Money
	GeneratedAt     time.Time
}

// RidesOverview builds the admin overview. Settlements are computed fresh
// and written back to the cache.
func (s *SettlementService) RidesOverview(ctx context.Context, adminID string) (*RidesOverview, error) {
	if err := requireAdmin(ctx, s.profileRepo, adminID); err != nil {
		return nil, err
	}

	rides, err := s.rideRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	payouts, err := s.payoutRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	ridesByDriver := make(map[string][]*domain.Ride)
	for _, ride := range rides {
		ridesByDriver[ride.DriverID] = append(ridesByDriver[ride.DriverID], ride)
	}

	payoutsByDriver := make(map[string][]*domain.Payout)
	for _, p := range payouts {
		payoutsByDriver[p.DriverID] = append(payoutsByDriver[p.DriverID], p)
		if _, ok := ridesByDriver[p.DriverID]; !ok {
			ridesByDriver[p.DriverID] = nil
		}
	}

	now := time.Now().UTC()
	overview := &RidesOverview{GeneratedAt: now}

	for driverID, driverRides := range ridesByDriver {
		bookings, err := s.bookingRepo.ListByDriver(ctx, driverID)
		if err != nil {
			return nil, err
		}

		driver := DriverOverview{DriverID: driverID}
		if profile, err := s.profileRepo.GetByID(ctx, driverID); err == nil {
			driver.DriverName = profile.Name
		}

		driver.Settlement = ComputeSettlement(driverID, bookings, payoutsByDriver[driverID])
		driver.Settlement.ComputedAt = now
		s.store(ctx, &driver.Settlement)

		byRide := make(map[string][]*domain.Booking)
		for _, b := range bookings {
			byRide[b.RideID] = append(byRide[b.RideID], b)
		}

		for _, ride := range driverRides {
			row := summarizeRide(ride, byRide[ride.ID])
			overview.TotalGross += row.Gross
			overview.TotalCommission += row.Commission
			driver.Rides = append(driver.Rides, row)
		}

		overview.TotalOwed += driver.Settlement.BalanceOwed
		overview.Drivers = append(overview.Drivers, driver)
	}

	sort.Slice(overview.Drivers, func(i, j int) bool {
		return overview.Drivers[i].DriverID < overview.Drivers[j].DriverID
	})

	return overview, nil
}

func summarizeRide(ride *domain.Ride, bookings []*domain.Booking) RideOverview {
	row := RideOverview{Ride: ride}
	for _, b := range bookings {
		row.Bookings++
		if b.Status.HoldsSeats() || b.Status == domain.BookingStatusCompleted {
			row.SeatsBooked += b.SeatsBooked
		}
		if b.Status.Earning() {
			row.Gross += b.TotalPaid
			row.Commission += b.CommissionAmount
			row.DriverEarnings += b.TotalPaid - b.CommissionAmount
		}
	}
	return row
}

func (s *SettlementService) store(ctx context.Context, settlement *Settlement) {
	if s.cache == nil {
		return
	}
	err := s.cache.SetSettlement(ctx, &redis.CachedSettlement{
		DriverID:        settlement.DriverID,
		TotalEarned:     settlement.TotalEarned,
		TotalPaidOut:    settlement.TotalPaidOut,
		BalanceOwed:     settlement.BalanceOwed,
		EarningBookings: settlement.EarningBookings,
		PayoutCount:     settlement.PayoutCount,
		ComputedAt:      settlement.ComputedAt,
	})
	if err != nil {
		s.logger.WithError(err).WithField("driver_id", settlement.DriverID).Warn("settlement cache write failed")
	}
}

func fromCached(c *redis.CachedSettlement) *Settlement {
	return &Settlement{
		DriverID:        c.DriverID,
		TotalEarned:     c.TotalEarned,
		TotalPaidOut:    c.TotalPaidOut,
		BalanceOwed:     c.BalanceOwed,
		EarningBookings: c.EarningBookings,
		PayoutCount:     c.PayoutCount,
		ComputedAt:      c.ComputedAt,
	}
}
