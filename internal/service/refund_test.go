package service

import (
	"testing"
	"time"

	"carpool/internal/domain"
)

func TestRefundFor(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	total := domain.NewMoney(40, 0)

	testCases := []struct {
		name      string
		status    domain.BookingStatus
		departsIn time.Duration
		want      domain.Money
		void      bool
	}{
		{"pending is a full void", domain.BookingStatusPendingDriver, 2 * time.Hour, total, true},
		{"confirmed 72h out", domain.BookingStatusConfirmed, 72 * time.Hour, domain.NewMoney(20, 0), false},
		{"confirmed exactly 48h out", domain.BookingStatusConfirmed, 48 * time.Hour, domain.NewMoney(20, 0), false},
		{"confirmed just under 48h", domain.BookingStatusConfirmed, 48*time.Hour - time.Second, 0, false},
		{"confirmed 10h out", domain.BookingStatusConfirmed, 10 * time.Hour, 0, false},
		{"already cancelled", domain.BookingStatusCancelled, 72 * time.Hour, 0, false},
		{"completed", domain.BookingStatusCompleted, -time.Hour, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := &domain.Booking{Status: tc.status, TotalPaid: total}
			quote := RefundFor(b, now.Add(tc.departsIn), now)

			if quote.Amount != tc.want {
				t.Errorf("expected %s, got %s", tc.want, quote.Amount)
			}
			if quote.Void != tc.void {
				t.Errorf("expected void=%v, got %v", tc.void, quote.Void)
			}
			if quote.Text == "" {
				t.Error("expected a refund text")
			}
			if b.Status != tc.status || b.CancellationRefundAmount != nil {
				t.Error("RefundFor must not mutate the booking")
			}
		})
	}
}

func TestRefundFor_OddCentsRoundHalfUp(t *testing.T) {
	now := time.Now()
	b := &domain.Booking{Status: domain.BookingStatusConfirmed, TotalPaid: domain.NewMoney(10, 1)}

	quote := RefundFor(b, now.Add(72*time.Hour), now)
	if quote.Amount.String() != "5.01" {
		t.Errorf("expected 5.01, got %s", quote.Amount)
	}
}

func TestSplitPayment(t *testing.T) {
	testCases := []struct {
		total      domain.Money
		commission string
		payout     string
	}{
		{domain.NewMoney(40, 0), "10.00", "30.00"},
		{domain.NewMoney(60, 0), "15.00", "45.00"},
		{domain.NewMoney(10, 1), "2.50", "7.51"},
		{domain.NewMoney(0, 3), "0.01", "0.02"},
	}

	for _, tc := range testCases {
		commission, payout := SplitPayment(tc.total)
		if commission.String() != tc.commission || payout.String() != tc.payout {
			t.Errorf("SplitPayment(%s) = %s / %s, want %s / %s", tc.total, commission, payout, tc.commission, tc.payout)
		}
		if commission+payout != tc.total {
			t.Errorf("SplitPayment(%s) parts do not sum to total", tc.total)
		}
	}
}
