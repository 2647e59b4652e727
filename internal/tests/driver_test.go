package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"carpool/internal/domain"
	"carpool/internal/service"
)

func TestDriverService_PromoteAdmins(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	ops := env.addProfile("ops-1", domain.GenderFemale, domain.GroupingSolo)

	if err := env.driverSvc.PromoteAdmins(ctx, []string{ops, "missing"}); err != nil {
		t.Fatalf("PromoteAdmins failed: %v", err)
	}

	profile, _ := env.profiles.GetByID(ctx, ops)
	if !profile.Admin {
		t.Fatal("expected ops-1 to be admin")
	}

	// A promoted admin can approve drivers.
	candidate := env.addProfile("cand-1", domain.GenderMale, domain.GroupingSolo)
	_ = env.profiles.SetApprovedDriver(ctx, candidate, false)

	got, err := env.driverSvc.DecideApproval(ctx, service.DriverApprovalRequest{
		AdminID:  ops,
		DriverID: candidate,
		Decision: domain.ApprovalApprove,
	})
	if err != nil {
		t.Fatalf("DecideApproval failed: %v", err)
	}
	if !got.ApprovedDriver {
		t.Error("expected candidate to be approved")
	}
}

func TestDriverService_DecideApprovalErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addAdmin("admin-1")
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)

	testCases := []struct {
		name    string
		req     service.DriverApprovalRequest
		wantErr error
	}{
		{"not an admin", service.DriverApprovalRequest{AdminID: driver, DriverID: driver, Decision: domain.ApprovalApprove}, service.ErrUnauthorizedAction},
		{"no caller", service.DriverApprovalRequest{DriverID: driver, Decision: domain.ApprovalApprove}, service.ErrUnauthorizedAction},
		{"missing driver id", service.DriverApprovalRequest{AdminID: admin, Decision: domain.ApprovalApprove}, service.ErrValidation},
		{"bad decision", service.DriverApprovalRequest{AdminID: admin, DriverID: driver, Decision: "later"}, service.ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.driverSvc.DecideApproval(ctx, tc.req); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRideService_PublishRejectsOutOfRangePrice(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)

	_, err := env.rideSvc.PublishRide(context.Background(), service.PublishRideRequest{
		DriverID:     driver,
		Origin:       "Lyon",
		Destination:  "Paris",
		DepartureAt:  time.Now().Add(72 * time.Hour),
		SeatsTotal:   3,
		PricePerSeat: domain.MaxMoney + 1,
	})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
