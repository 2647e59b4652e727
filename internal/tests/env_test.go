package tests

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/repository"
	"carpool/internal/service"
)

// testEnv wires the services over in-memory mocks.
type testEnv struct {
	store        *MockStore
	profiles     *MockProfileRepository
	rides        *MockRideRepository
	bookings     *MockBookingRepository
	reservations *MockReservationRepository
	auths        *MockAuthorizationRepository
	payouts      *MockPayoutRepository
	tx           *MockTxManager
	locks        *MockLockStore
	cache        *MockSettlementCache
	processor    *MockProcessor
	publisher    *MockPublisher

	gateway      *service.PaymentGateway
	inventory    *service.InventoryController
	bookingSvc   *service.BookingService
	rideSvc      *service.RideService
	profileSvc   *service.ProfileService
	driverSvc    *service.DriverService
	settlement   *service.SettlementService
	sweeper      *service.Sweeper
	notification *service.NotificationService

	now time.Time
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := NewMockStore()
	env := &testEnv{
		store:        store,
		profiles:     &MockProfileRepository{s: store},
		rides:        &MockRideRepository{s: store},
		bookings:     &MockBookingRepository{s: store},
		reservations: &MockReservationRepository{s: store},
		auths:        &MockAuthorizationRepository{s: store},
		payouts:      &MockPayoutRepository{s: store},
		locks:        NewMockLockStore(),
		cache:        NewMockSettlementCache(),
		processor:    NewMockProcessor(),
		publisher:    NewMockPublisher(),
		now:          time.Now().UTC().Truncate(time.Second),
	}
	env.tx = NewMockTxManager(store, repository.Stores{
		Rides:        env.rides,
		Bookings:     env.bookings,
		Reservations: env.reservations,
		Payouts:      env.payouts,
	})

	logger := newTestLogger()
	env.notification = service.NewNotificationService(env.publisher, logger)
	env.gateway = service.NewPaymentGateway(env.auths, env.processor, logger)
	env.inventory = service.NewInventoryController(env.tx, env.rides, time.Minute, logger)
	env.bookingSvc = service.NewBookingService(
		env.tx, env.bookings, env.rides, env.profiles,
		env.inventory, env.gateway, env.locks, env.cache, env.notification,
		service.BookingConfig{HoldTTL: 24 * time.Hour, LockTTL: 30 * time.Second},
		logger,
	)
	env.bookingSvc.SetClock(func() time.Time { return env.now })
	env.rideSvc = service.NewRideService(env.rides, env.profiles, logger)
	env.profileSvc = service.NewProfileService(env.profiles)
	env.driverSvc = service.NewDriverService(env.profiles, logger)
	env.settlement = service.NewSettlementService(env.bookings, env.rides, env.payouts, env.profiles, env.cache, env.notification, logger)
	env.sweeper = service.NewSweeper(env.inventory, env.bookingSvc, env.rides, env.bookings, time.Minute, logger)

	return env
}

// addProfile stores a profile and returns its ID.
func (e *testEnv) addProfile(id string, gender domain.Gender, grouping domain.TravelGrouping) string {
	e.profiles.AddProfile(&domain.Profile{
		ID:             id,
		Name:           id,
		Gender:         gender,
		TravelGrouping: grouping,
		ApprovedDriver: true,
		CreatedAt:      e.now,
	})
	return id
}

// addAdmin stores an admin profile and returns its ID.
func (e *testEnv) addAdmin(id string) string {
	e.profiles.AddProfile(&domain.Profile{
		ID:             id,
		Name:           id,
		TravelGrouping: domain.GroupingSolo,
		Admin:          true,
		CreatedAt:      e.now,
	})
	return id
}

// addRide stores an upcoming ride departing in departsIn and returns its ID.
func (e *testEnv) addRide(id, driverID string, seats int, price domain.Money, departsIn time.Duration) string {
	e.rides.AddRide(&domain.Ride{
		ID:           id,
		DriverID:     driverID,
		Origin:       "Lisbon",
		Destination:  "Porto",
		DepartureAt:  e.now.Add(departsIn),
		SeatsTotal:   seats,
		PricePerSeat: price,
		Status:       domain.RideStatusUpcoming,
		CreatedAt:    e.now,
	})
	return id
}

// setNow moves the booking clock.
func (e *testEnv) setNow(now time.Time) {
	e.now = now
}

func atomicLoad(counter *int32) int32 {
	return atomic.LoadInt32(counter)
}
