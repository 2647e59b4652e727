package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a request is malformed.
	ErrValidation = errors.New("validation error")

	// ErrCompatibility is returned when eligibility rules forbid the booking.
	ErrCompatibility = errors.New("passenger and driver are not compatible")

	// ErrInventoryExhausted is returned when the ride has fewer free seats than requested.
	ErrInventoryExhausted = errors.New("not enough seats available")

	// ErrRideNotBookable is returned when the ride is not upcoming or has departed.
	ErrRideNotBookable = errors.New("ride is not open for booking")

	// ErrPaymentAuthorizationFailed is returned when the processor refuses a hold.
	ErrPaymentAuthorizationFailed = errors.New("payment authorization failed")

	// ErrPaymentCaptureFailed is returned when a hold cannot be captured.
	ErrPaymentCaptureFailed = errors.New("payment capture failed")

	// ErrVoidFailed is returned when a hold cannot be released.
	ErrVoidFailed = errors.New("payment void failed")

	// ErrRefundFailed is returned when a captured payment cannot be refunded.
	ErrRefundFailed = errors.New("payment refund failed")

	// ErrUnauthorizedAction is returned when the caller does not own the booking,
	// ride or admin role the action requires.
	ErrUnauthorizedAction = errors.New("caller is not allowed to perform this action")

	// ErrStateTransition is returned when a booking cannot move to the requested state.
	ErrStateTransition = errors.New("invalid booking state transition")

	// ErrBookingBusy is returned when another request holds the booking lock.
	ErrBookingBusy = errors.New("booking is being modified by another request")

	// ErrReconciliationRequired is returned when money moved at the processor
	// but the booking could not be updated to match.
	ErrReconciliationRequired = errors.New("payment processed but booking not updated; reconciliation required")

	// ErrRideHasActiveBookings is returned when a ride with live bookings is cancelled.
	ErrRideHasActiveBookings = errors.New("ride has active bookings")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InventoryExhaustedError carries the availability seen when a reservation lost.
type InventoryExhaustedError struct {
	RideID    string
	Requested int
	Available int
}

func (e *InventoryExhaustedError) Error() string {
	return fmt.Sprintf("%s: requested %d, available %d", ErrInventoryExhausted, e.Requested, e.Available)
}

func (e *InventoryExhaustedError) Unwrap() error {
	return ErrInventoryExhausted
}

// CompatibilityError carries the user-facing eligibility reason.
type CompatibilityError struct {
	Reason string
}

func (e *CompatibilityError) Error() string {
	return e.Reason
}

func (e *CompatibilityError) Unwrap() error {
	return ErrCompatibility
}
