package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"carpool/internal/domain"
	"carpool/internal/events"
	"carpool/internal/service"
)

// settledDriver sets up a driver with two confirmed bookings of 40.00 and 60.00.
func settledDriver(t *testing.T, env *testEnv) (driver, admin string) {
	t.Helper()
	driver = env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	passenger := env.addProfile("passenger-1", domain.GenderFemale, domain.GroupingSolo)
	admin = env.addAdmin("admin-1")
	ride := env.addRide("ride-1", driver, 6, domain.NewMoney(20, 0), 72*time.Hour)

	first := bookSeats(t, env, ride, passenger, 2)
	second := bookSeats(t, env, ride, passenger, 3)
	acceptBooking(t, env, first.ID, driver)
	acceptBooking(t, env, second.ID, driver)
	return driver, admin
}

func TestSettlement_EarnedPaidOutOwed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver, admin := settledDriver(t, env)
	ctx := context.Background()

	_, err := env.settlement.RecordPayout(ctx, service.RecordPayoutRequest{
		AdminID:  admin,
		DriverID: driver,
		Amount:   domain.NewMoney(30, 0),
		Note:     "weekly transfer",
	})
	if err != nil {
		t.Fatalf("RecordPayout failed: %v", err)
	}

	s, err := env.settlement.DriverSettlement(ctx, admin, driver)
	if err != nil {
		t.Fatalf("DriverSettlement failed: %v", err)
	}

	if s.TotalEarned.String() != "75.00" {
		t.Errorf("expected earned 75.00, got %s", s.TotalEarned)
	}
	if s.TotalPaidOut.String() != "30.00" {
		t.Errorf("expected paid out 30.00, got %s", s.TotalPaidOut)
	}
	if s.BalanceOwed.String() != "45.00" {
		t.Errorf("expected owed 45.00, got %s", s.BalanceOwed)
	}
	if s.EarningBookings != 2 || s.PayoutCount != 1 {
		t.Errorf("expected 2 bookings and 1 payout, got %d and %d", s.EarningBookings, s.PayoutCount)
	}
}

func TestSettlement_PayoutInvalidatesCache(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver, admin := settledDriver(t, env)
	ctx := context.Background()

	before, err := env.settlement.DriverSettlement(ctx, driver, driver)
	if err != nil {
		t.Fatalf("DriverSettlement failed: %v", err)
	}
	if !env.cache.Has(driver) {
		t.Fatal("expected settlement to be cached")
	}

	if _, err := env.settlement.RecordPayout(ctx, service.RecordPayoutRequest{
		AdminID: admin, DriverID: driver, Amount: domain.NewMoney(75, 0),
	}); err != nil {
		t.Fatalf("RecordPayout failed: %v", err)
	}
	if env.cache.Has(driver) {
		t.Error("payout must invalidate the cached settlement")
	}

	after, err := env.settlement.DriverSettlement(ctx, driver, driver)
	if err != nil {
		t.Fatalf("DriverSettlement failed: %v", err)
	}
	if before.BalanceOwed != domain.NewMoney(75, 0) || after.BalanceOwed != 0 {
		t.Errorf("expected owed 75.00 then 0.00, got %s then %s", before.BalanceOwed, after.BalanceOwed)
	}

	types := env.publisher.Types()
	if types[len(types)-1] != events.TypePayoutRecorded {
		t.Errorf("expected payout.recorded event last, got %v", types)
	}
}

func TestSettlement_OverpaymentLeavesZeroOwed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver, admin := settledDriver(t, env)
	ctx := context.Background()

	if _, err := env.settlement.RecordPayout(ctx, service.RecordPayoutRequest{
		AdminID: admin, DriverID: driver, Amount: domain.NewMoney(100, 0),
	}); err != nil {
		t.Fatalf("RecordPayout failed: %v", err)
	}

	s, err := env.settlement.DriverSettlement(ctx, admin, driver)
	if err != nil {
		t.Fatalf("DriverSettlement failed: %v", err)
	}
	if s.BalanceOwed != 0 {
		t.Errorf("expected owed 0.00, got %s", s.BalanceOwed)
	}
}

func TestSettlement_CancelledBookingsDoNotEarn(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	passenger := env.addProfile("passenger-1", domain.GenderFemale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 6, domain.NewMoney(20, 0), 72*time.Hour)
	ctx := context.Background()

	kept := bookSeats(t, env, ride, passenger, 2)
	acceptBooking(t, env, kept.ID, driver)
	cancelled := bookSeats(t, env, ride, passenger, 1)
	acceptBooking(t, env, cancelled.ID, driver)
	bookSeats(t, env, ride, passenger, 1) // left pending

	if _, err := env.bookingSvc.PassengerCancel(ctx, cancelled.ID, passenger); err != nil {
		t.Fatalf("PassengerCancel failed: %v", err)
	}

	s, err := env.settlement.DriverSettlement(ctx, driver, driver)
	if err != nil {
		t.Fatalf("DriverSettlement failed: %v", err)
	}
	if s.TotalEarned != domain.NewMoney(30, 0) || s.EarningBookings != 1 {
		t.Errorf("expected 30.00 from one booking, got %s from %d", s.TotalEarned, s.EarningBookings)
	}
}

func TestSettlement_AccessAndValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver, admin := settledDriver(t, env)
	other := env.addProfile("driver-2", domain.GenderMale, domain.GroupingSolo)
	ctx := context.Background()

	if _, err := env.settlement.DriverSettlement(ctx, other, driver); !errors.Is(err, service.ErrUnauthorizedAction) {
		t.Errorf("expected ErrUnauthorizedAction for another driver, got %v", err)
	}

	testCases := []struct {
		name string
		req  service.RecordPayoutRequest
		want error
	}{
		{"non admin", service.RecordPayoutRequest{AdminID: driver, DriverID: driver, Amount: domain.NewMoney(1, 0)}, service.ErrUnauthorizedAction},
		{"zero amount", service.RecordPayoutRequest{AdminID: admin, DriverID: driver, Amount: 0}, service.ErrValidation},
		{"negative amount", service.RecordPayoutRequest{AdminID: admin, DriverID: driver, Amount: -100}, service.ErrValidation},
		{"unknown driver", service.RecordPayoutRequest{AdminID: admin, DriverID: "ghost", Amount: domain.NewMoney(1, 0)}, service.ErrValidation},
		{"missing driver", service.RecordPayoutRequest{AdminID: admin, Amount: domain.NewMoney(1, 0)}, service.ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.settlement.RecordPayout(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := env.settlement.ListPayouts(ctx, driver, ""); !errors.Is(err, service.ErrUnauthorizedAction) {
		t.Errorf("expected ErrUnauthorizedAction listing payouts, got %v", err)
	}
}

func TestRidesOverview_Totals(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver, admin := settledDriver(t, env)
	env.addProfile("driver-2", domain.GenderMale, domain.GroupingSolo)
	env.addRide("ride-2", "driver-2", 3, domain.NewMoney(10, 0), 96*time.Hour)
	ctx := context.Background()

	if _, err := env.settlement.RecordPayout(ctx, service.RecordPayoutRequest{
		AdminID: admin, DriverID: driver, Amount: domain.NewMoney(30, 0),
	}); err != nil {
		t.Fatalf("RecordPayout failed: %v", err)
	}

	overview, err := env.settlement.RidesOverview(ctx, admin)
	if err != nil {
		t.Fatalf("RidesOverview failed: %v", err)
	}

	if len(overview.Drivers) != 2 || overview.Drivers[0].DriverID != driver {
		t.Fatalf("expected two drivers sorted by ID, got %+v", overview.Drivers)
	}
	if overview.TotalGross != domain.NewMoney(100, 0) {
		t.Errorf("expected gross 100.00, got %s", overview.TotalGross)
	}
	if overview.TotalCommission != domain.NewMoney(25, 0) {
		t.Errorf("expected commission 25.00, got %s", overview.TotalCommission)
	}
	if overview.TotalOwed != domain.NewMoney(45, 0) {
		t.Errorf("expected owed 45.00, got %s", overview.TotalOwed)
	}

	row := overview.Drivers[0].Rides[0]
	if row.Bookings != 2 || row.SeatsBooked != 5 || row.DriverEarnings != domain.NewMoney(75, 0) {
		t.Errorf("unexpected ride row %+v", row)
	}

	if _, err := env.settlement.RidesOverview(ctx, driver); !errors.Is(err, service.ErrUnauthorizedAction) {
		t.Errorf("expected ErrUnauthorizedAction for non admin, got %v", err)
	}
}
