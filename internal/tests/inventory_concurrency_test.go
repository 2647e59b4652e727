package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"carpool/internal/domain"
	"carpool/internal/service"
)

func TestCheckout_LastSeatGoesToExactlyOnePassenger(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	first := env.addProfile("passenger-1", domain.GenderFemale, domain.GroupingSolo)
	second := env.addProfile("passenger-2", domain.GenderFemale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 1, domain.NewMoney(15, 50), 72*time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, passenger := range []string{first, second} {
		wg.Add(1)
		go func(i int, passenger string) {
			defer wg.Done()
			_, errs[i] = env.bookingSvc.Checkout(context.Background(), service.CheckoutRequest{
				RideID:        ride,
				PassengerID:   passenger,
				SeatCount:     1,
				PaymentSource: "tok_visa",
			})
		}(i, passenger)
	}
	wg.Wait()

	successes, exhausted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, service.ErrInventoryExhausted):
			exhausted++
			var detail *service.InventoryExhaustedError
			if errors.As(err, &detail) && detail.Available != 0 {
				t.Errorf("expected 0 available, got %d", detail.Available)
			}
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 || exhausted != 1 {
		t.Errorf("expected 1 success and 1 exhausted, got %d and %d", successes, exhausted)
	}
	if got := env.rides.GetRide(ride).SeatsReserved; got != 1 {
		t.Errorf("expected 1 seat reserved, got %d", got)
	}
	if got := atomicLoad(&env.processor.AuthorizeCallCount); got != 1 {
		t.Errorf("the losing checkout must not place a hold, got %d authorizations", got)
	}
}

func TestCheckout_ConcurrentNeverOversells(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingCouple)
	ride := env.addRide("ride-1", driver, 5, domain.NewMoney(12, 0), 72*time.Hour)

	const passengers = 20
	ids := make([]string, passengers)
	for i := range ids {
		ids[i] = env.addProfile(fmt.Sprintf("passenger-%d", i), domain.GenderMale, domain.GroupingSolo)
	}

	var wg sync.WaitGroup
	results := make(chan error, passengers)
	for _, id := range ids {
		wg.Add(1)
		go func(passenger string) {
			defer wg.Done()
			_, err := env.bookingSvc.Checkout(context.Background(), service.CheckoutRequest{
				RideID:        ride,
				PassengerID:   passenger,
				SeatCount:     2,
				PaymentSource: "tok_visa",
			})
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, service.ErrInventoryExhausted) {
			t.Errorf("unexpected error: %v", err)
		}
	}

	// Five seats fit two 2-seat bookings.
	if successes != 2 {
		t.Errorf("expected 2 successful checkouts, got %d", successes)
	}

	r := env.rides.GetRide(ride)
	if r.SeatsReserved > r.SeatsTotal {
		t.Fatalf("oversold: %d reserved of %d", r.SeatsReserved, r.SeatsTotal)
	}
	if r.SeatsReserved != 4 {
		t.Errorf("expected 4 seats reserved, got %d", r.SeatsReserved)
	}
	if got := env.bookings.CountBookings(domain.BookingStatusPendingDriver); got != successes {
		t.Errorf("expected %d bookings, got %d", successes, got)
	}
}

func TestInventory_ReserveAndRelease(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 3, domain.NewMoney(10, 0), 72*time.Hour)
	ctx := context.Background()

	reservation, err := env.inventory.Reserve(ctx, ride, 2)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	available, err := env.inventory.Availability(ctx, ride)
	if err != nil {
		t.Fatalf("Availability failed: %v", err)
	}
	if available != 1 {
		t.Errorf("expected 1 seat available, got %d", available)
	}

	_, err = env.inventory.Reserve(ctx, ride, 2)
	var exhausted *service.InventoryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected InventoryExhaustedError, got %v", err)
	}
	if exhausted.Requested != 2 || exhausted.Available != 1 {
		t.Errorf("unexpected detail %+v", exhausted)
	}

	if err := env.inventory.Release(ctx, reservation.ID); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := env.inventory.Release(ctx, reservation.ID); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}
	if got := env.rides.GetRide(ride).SeatsReserved; got != 0 {
		t.Errorf("expected 0 seats reserved, got %d", got)
	}
}

func TestInventory_CancelledRideNotBookable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 3, domain.NewMoney(10, 0), 72*time.Hour)

	if _, err := env.rideSvc.CancelRide(context.Background(), ride, driver); err != nil {
		t.Fatalf("CancelRide failed: %v", err)
	}

	_, err := env.inventory.Reserve(context.Background(), ride, 1)
	if !errors.Is(err, service.ErrRideNotBookable) {
		t.Errorf("expected ErrRideNotBookable, got %v", err)
	}
}

func TestRide_CancelWithBookingsRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	passenger := env.addProfile("passenger-1", domain.GenderFemale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 3, domain.NewMoney(10, 0), 72*time.Hour)
	bookSeats(t, env, ride, passenger, 1)

	_, err := env.rideSvc.CancelRide(context.Background(), ride, driver)
	if !errors.Is(err, service.ErrRideHasActiveBookings) {
		t.Errorf("expected ErrRideHasActiveBookings, got %v", err)
	}
}

func TestRide_UpdateSeatsBelowReservedRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	passenger := env.addProfile("passenger-1", domain.GenderFemale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 4, domain.NewMoney(10, 0), 72*time.Hour)
	bookSeats(t, env, ride, passenger, 3)

	if _, err := env.rideSvc.UpdateSeats(context.Background(), ride, driver, 2); !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	updated, err := env.rideSvc.UpdateSeats(context.Background(), ride, driver, 6)
	if err != nil {
		t.Fatalf("UpdateSeats failed: %v", err)
	}
	if updated.SeatsTotal != 6 {
		t.Errorf("expected 6 seats, got %d", updated.SeatsTotal)
	}
}
