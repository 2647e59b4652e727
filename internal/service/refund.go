package service

import (
	"time"

	"carpool/internal/domain"
)

// Booking money policy. These are global, not per ride or driver.
const (
	CommissionPercent    = 25
	PartialRefundPercent = 50
	PartialRefundWindow  = 48 * time.Hour
)

// RefundQuote is what a cancellation would return to the passenger.
type RefundQuote struct {
	Text   string
	Amount domain.Money
	// Void is true when the refund is a released hold rather than money back.
	Void bool
}

// RefundFor computes the refund for cancelling b at now. It never mutates b.
func RefundFor(b *domain.Booking, departure, now time.Time) RefundQuote {
	switch b.Status {
	case domain.BookingStatusPendingDriver:
		return RefundQuote{
			Text:   "Full refund: the payment hold will be released",
			Amount: b.TotalPaid,
			Void:   true,
		}
	case domain.BookingStatusConfirmed:
		if departure.Sub(now) >= PartialRefundWindow {
			return RefundQuote{
				Text:   "50% refund: cancelled at least 48 hours before departure",
				Amount: b.TotalPaid.Percent(PartialRefundPercent),
			}
		}
		return RefundQuote{
			Text:   "No refund: cancelled less than 48 hours before departure",
			Amount: 0,
		}
	default:
		return RefundQuote{Text: "Not refundable", Amount: 0}
	}
}

// SplitPayment divides a captured total into platform commission and driver
// payout. The two parts always sum to total.
func SplitPayment(total domain.Money) (commission, payout domain.Money) {
	commission = total.Percent(CommissionPercent)
	return commission, total - commission
}
