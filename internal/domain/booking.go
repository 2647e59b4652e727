package domain

import "time"

// BookingStatus represents the lifecycle state of a booking.
// The values are part of the wire contract.
type BookingStatus string

const (
	BookingStatusPendingDriver BookingStatus = "pending_driver"
	BookingStatusConfirmed     BookingStatus = "confirmed"
	BookingStatusCancelled     BookingStatus = "cancelled"
	BookingStatusCompleted     BookingStatus = "completed"
	BookingStatusRefunded      BookingStatus = "refunded"
)

// DriverAction records the driver's decision on a booking.
// DriverActionNone means the driver has not acted.
type DriverAction string

const (
	DriverActionNone     DriverAction = ""
	DriverActionAccepted DriverAction = "accepted"
	DriverActionRejected DriverAction = "rejected"
)

// AllowedTransitions lists the status changes a booking may go through.
// cancelled -> refunded is only taken by refund settlement.
var AllowedTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingDriver: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:     {BookingStatusCancelled, BookingStatusCompleted, BookingStatusRefunded},
	BookingStatusCancelled:     {BookingStatusRefunded},
}

// CanTransition reports whether from -> to is a legal booking transition.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HoldsSeats reports whether bookings in this status count against inventory.
func (s BookingStatus) HoldsSeats() bool {
	return s == BookingStatusPendingDriver || s == BookingStatusConfirmed
}

// Earning reports whether bookings in this status count as driver earnings.
func (s BookingStatus) Earning() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCompleted
}

// Terminal reports whether no user-driven transition is possible any more.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted || s == BookingStatusRefunded
}

// Booking represents a passenger's claim on seats of one ride.
type Booking struct {
	ID                 string
	RideID             string
	PassengerID        string
	SeatsBooked        int
	TotalPaid          Money
	CommissionAmount   Money // zero until capture
	DriverPayoutAmount Money // zero until capture
	AuthorizationRef   string
	CaptureRef         string
	RefundRef          string
	Status             BookingStatus
	StatusVersion      int
	DriverAction       DriverAction
	DriverActionAt     time.Time

	// CancellationRefundAmount is nil until the booking is cancelled.
	CancellationRefundAmount *Money

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt time.Time
	CompletedAt time.Time
	RefundedAt  time.Time
}

// AwaitingRefund reports whether a cancelled booking has a refund in flight.
func (b *Booking) AwaitingRefund() bool {
	return b.Status == BookingStatusCancelled && b.RefundRef != ""
}
