package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// MaxSeatsPerRide caps the capacity a driver can publish.
const MaxSeatsPerRide = 8

// RideService handles ride publishing and search.
type RideService struct {
	rideRepo    repository.RideRepository
	profileRepo repository.ProfileRepository
	logger      *logrus.Logger
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	profileRepo repository.ProfileRepository,
	logger *logrus.Logger,
) *RideService {
	return &RideService{
		rideRepo:    rideRepo,
		profileRepo: profileRepo,
		logger:      logger,
	}
}

// PublishRideRequest contains the parameters for publishing a ride.
type PublishRideRequest struct {
	DriverID     string
	Origin       string
	Destination  string
	DepartureAt  time.Time
	SeatsTotal   int
	PricePerSeat domain.Money
}

// PublishRide creates an upcoming ride for an approved driver.
func (s *RideService) PublishRide(ctx context.Context, req PublishRideRequest) (*domain.Ride, error) {
	if err := s.validatePublishRequest(req); err != nil {
		return nil, err
	}

	driver, err := s.profileRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}

	if !driver.ApprovedDriver {
		return nil, fmt.Errorf("%w: profile is not an approved driver", ErrUnauthorizedAction)
	}

	ride := &domain.Ride{
		ID:           uuid.New().String(),
		DriverID:     driver.ID,
		Origin:       strings.TrimSpace(req.Origin),
		Destination:  strings.TrimSpace(req.Destination),
		DepartureAt:  req.DepartureAt.UTC(),
		SeatsTotal:   req.SeatsTotal,
		PricePerSeat: req.PricePerSeat,
		Status:       domain.RideStatusUpcoming,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"ride_id":   ride.ID,
		"driver_id": ride.DriverID,
		"seats":     ride.SeatsTotal,
		"price":     ride.PricePerSeat.String(),
	}).Info("ride published")

	return ride, nil
}

func (s *RideService) validatePublishRequest(req PublishRideRequest) error {
	if req.DriverID == "" {
		return validationError("driver_id is required")
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return validationError("origin and destination are required")
	}
	if !req.DepartureAt.After(time.Now()) {
		return validationError("departure_at must be in the future")
	}
	if req.SeatsTotal < 1 || req.SeatsTotal > MaxSeatsPerRide {
		return validationError("seats_total must be between 1 and %d", MaxSeatsPerRide)
	}
	if req.PricePerSeat <= 0 || !req.PricePerSeat.InRange() {
		return validationError("price_per_seat must be positive and at most %s", domain.MaxMoney)
	}
	return nil
}

// RideListing is a ride as seen by a searching passenger.
type RideListing struct {
	Ride       *domain.Ride
	Compatible bool
	// Reason is set when Compatible is false.
	Reason string
}

// ListRides returns upcoming rides matching the filter. When a caller is
// given, every listing carries the eligibility verdict for that caller.
// The verdict is advisory; checkout re-checks it.
func (s *RideService) ListRides(ctx context.Context, callerID string, filter domain.RideFilter) ([]RideListing, error) {
	if filter.MinSeats < 0 || filter.Limit < 0 {
		return nil, validationError("min_seats and limit must not be negative")
	}

	rides, err := s.rideRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	var passenger *domain.Profile
	if callerID != "" {
		passenger, err = s.profileRepo.GetByID(ctx, callerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	drivers := make(map[string]*domain.Profile)
	listings := make([]RideListing, 0, len(rides))

	for _, ride := range rides {
		listing := RideListing{Ride: ride, Compatible: true}

		if passenger != nil {
			driver, ok := drivers[ride.DriverID]
			if !ok {
				driver, err = s.profileRepo.GetByID(ctx, ride.DriverID)
				if err != nil {
					return nil, err
				}
				drivers[ride.DriverID] = driver
			}

			listing.Reason = IncompatibilityReason(passenger.TravelGrouping, passenger.Gender,
				driver.TravelGrouping, driver.Gender)
			listing.Compatible = listing.Reason == ""
		}

		if filter.OnlyCompatible && !listing.Compatible {
			continue
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	return s.rideRepo.GetByID(ctx, rideID)
}

// UpdateSeats changes a ride's capacity. It can never drop below the seats
// already reserved or booked.
func (s *RideService) UpdateSeats(ctx context.Context, rideID, driverID string, seatsTotal int) (*domain.Ride, error) {
	if seatsTotal < 1 || seatsTotal > MaxSeatsPerRide {
		return nil, validationError("seats_total must be between 1 and %d", MaxSeatsPerRide)
	}

	ride, err := s.ownedRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	if ride.Status != domain.RideStatusUpcoming {
		return nil, ErrRideNotBookable
	}

	if err := s.rideRepo.UpdateSeatsTotal(ctx, rideID, seatsTotal); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			current, getErr := s.rideRepo.GetByID(ctx, rideID)
			if getErr != nil {
				return nil, getErr
			}
			return nil, validationError("seats_total cannot be below the %d seats already reserved", current.SeatsReserved)
		}
		return nil, err
	}

	return s.rideRepo.GetByID(ctx, rideID)
}

// CancelRide cancels an upcoming ride that has no reserved or booked seats.
func (s *RideService) CancelRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.ownedRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	if ride.Status != domain.RideStatusUpcoming {
		return nil, ErrRideNotBookable
	}

	if err := s.rideRepo.Cancel(ctx, rideID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRideHasActiveBookings
		}
		return nil, err
	}

	s.logger.WithField("ride_id", rideID).Info("ride cancelled by driver")
	return s.rideRepo.GetByID(ctx, rideID)
}

func (s *RideService) ownedRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, ErrUnauthorizedAction
	}
	return ride, nil
}
