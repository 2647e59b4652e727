package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

func TestMockTxManager_RollbackKeepsConcurrentWrites(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	rideID := env.addRide("ride-1", driver, 4, domain.NewMoney(20, 0), 72*time.Hour)
	otherRide := env.addRide("ride-2", driver, 4, domain.NewMoney(20, 0), 72*time.Hour)

	errAbort := errors.New("abort")
	err := env.tx.WithinTx(context.Background(), func(ctx context.Context, st repository.Stores) error {
		if ok, err := st.Rides.ReserveSeats(ctx, rideID, 2); err != nil || !ok {
			t.Fatalf("ReserveSeats failed: %v %v", ok, err)
		}
		if err := st.Reservations.Create(ctx, &domain.SeatReservation{ID: "res-1", RideID: rideID, Seats: 2}); err != nil {
			t.Fatalf("reservation create failed: %v", err)
		}

		// Writes by other requests while the transaction is open.
		if err := env.payouts.Create(context.Background(), &domain.Payout{ID: "payout-1", DriverID: driver, Amount: domain.NewMoney(30, 0)}); err != nil {
			t.Fatalf("payout create failed: %v", err)
		}
		if err := env.rides.UpdateSeatsTotal(context.Background(), otherRide, 6); err != nil {
			t.Fatalf("UpdateSeatsTotal failed: %v", err)
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	if got := env.rides.GetRide(rideID).SeatsReserved; got != 0 {
		t.Errorf("expected reserved seats rolled back to 0, got %d", got)
	}
	if env.reservations.Count() != 0 {
		t.Errorf("expected reservation rolled back, got %d", env.reservations.Count())
	}

	payouts, _ := env.payouts.ListByDriver(context.Background(), driver)
	if len(payouts) != 1 {
		t.Errorf("expected the concurrent payout to survive the rollback, got %d payouts", len(payouts))
	}
	if got := env.rides.GetRide(otherRide).SeatsTotal; got != 6 {
		t.Errorf("expected the concurrent seat change to survive the rollback, got %d", got)
	}
}
