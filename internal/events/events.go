// Package events publishes booking lifecycle events to a message broker so
// delivery channels (push, email, sockets) can subscribe without touching
// the booking core.
package events

import (
	"context"
	"time"

	"carpool/internal/domain"
)

// Type identifies what happened.
type Type string

const (
	TypeBookingCreated   Type = "booking.created"
	TypeBookingConfirmed Type = "booking.confirmed"
	TypeBookingCancelled Type = "booking.cancelled"
	TypeBookingCompleted Type = "booking.completed"
	TypeBookingRefunded  Type = "booking.refunded"
	TypePayoutRecorded   Type = "payout.recorded"
)

// Well-known topic names.
const (
	TopicBookings = "carpool.bookings"
	TopicPayouts  = "carpool.payouts"
)

// Event is the JSON payload published for every committed transition.
type Event struct {
	ID           string        `json:"id"`
	Type         Type          `json:"type"`
	BookingID    string        `json:"booking_id,omitempty"`
	RideID       string        `json:"ride_id,omitempty"`
	PassengerID  string        `json:"passenger_id,omitempty"`
	DriverID     string        `json:"driver_id,omitempty"`
	Status       string        `json:"status,omitempty"`
	Amount       *domain.Money `json:"amount,omitempty"`
	RecipientIDs []string      `json:"recipient_ids,omitempty"`
	Message      string        `json:"message,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// Topic returns the topic (or routing key) the event belongs on.
func (e Event) Topic() string {
	if e.Type == TypePayoutRecorded {
		return TopicPayouts
	}
	return TopicBookings
}

// Key returns the partition key. Events of one booking stay ordered.
func (e Event) Key() string {
	if e.BookingID != "" {
		return e.BookingID
	}
	return e.DriverID
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
