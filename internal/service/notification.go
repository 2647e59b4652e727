package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/events"
)

// NotificationService turns committed booking transitions into events.
// Delivery is best effort: a broker failure is logged and never undoes the
// transition that was already committed.
type NotificationService struct {
	publisher events.Publisher
	logger    *logrus.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(publisher events.Publisher, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		logger:    logger,
	}
}

// NotifyBookingCreated tells the driver a passenger is waiting for a decision.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, booking *domain.Booking, ride *domain.Ride) {
	amount := booking.TotalPaid
	s.send(ctx, events.Event{
		Type:         events.TypeBookingCreated,
		BookingID:    booking.ID,
		RideID:       ride.ID,
		PassengerID:  booking.PassengerID,
		DriverID:     ride.DriverID,
		Status:       string(booking.Status),
		Amount:       &amount,
		RecipientIDs: []string{ride.DriverID},
		Message:      fmt.Sprintf("New booking request for %d seat(s) from %s to %s", booking.SeatsBooked, ride.Origin, ride.Destination),
	})
}

// NotifyBookingConfirmed tells the passenger the driver accepted.
func (s *NotificationService) NotifyBookingConfirmed(ctx context.Context, booking *domain.Booking, ride *domain.Ride) {
	amount := booking.TotalPaid
	s.send(ctx, events.Event{
		Type:         events.TypeBookingConfirmed,
		BookingID:    booking.ID,
		RideID:       ride.ID,
		PassengerID:  booking.PassengerID,
		DriverID:     ride.DriverID,
		Status:       string(booking.Status),
		Amount:       &amount,
		RecipientIDs: []string{booking.PassengerID},
		Message:      fmt.Sprintf("Your booking was accepted. %s was charged", amount),
	})
}

// NotifyBookingCancelled tells the other party a booking was cancelled.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, booking *domain.Booking, ride *domain.Ride, cancelledBy string) {
	var recipientID, message string
	switch cancelledBy {
	case booking.PassengerID:
		recipientID = ride.DriverID
		message = "The passenger has cancelled the booking"
	case ride.DriverID:
		recipientID = booking.PassengerID
		message = "The driver has declined the booking"
	default:
		recipientID = booking.PassengerID
		message = "The booking expired before the driver responded"
	}

	event := events.Event{
		Type:         events.TypeBookingCancelled,
		BookingID:    booking.ID,
		RideID:       ride.ID,
		PassengerID:  booking.PassengerID,
		DriverID:     ride.DriverID,
		Status:       string(booking.Status),
		Amount:       booking.CancellationRefundAmount,
		RecipientIDs: []string{recipientID},
		Message:      message,
	}
	s.send(ctx, event)
}

// NotifyBookingCompleted tells both parties the ride took place.
func (s *NotificationService) NotifyBookingCompleted(ctx context.Context, booking *domain.Booking, ride *domain.Ride) {
	payout := booking.DriverPayoutAmount
	s.send(ctx, events.Event{
		Type:         events.TypeBookingCompleted,
		BookingID:    booking.ID,
		RideID:       ride.ID,
		PassengerID:  booking.PassengerID,
		DriverID:     ride.DriverID,
		Status:       string(booking.Status),
		Amount:       &payout,
		RecipientIDs: []string{booking.PassengerID, ride.DriverID},
		Message:      "Your ride is complete",
	})
}

// NotifyBookingRefunded tells the passenger their refund settled.
func (s *NotificationService) NotifyBookingRefunded(ctx context.Context, booking *domain.Booking) {
	s.send(ctx, events.Event{
		Type:         events.TypeBookingRefunded,
		BookingID:    booking.ID,
		RideID:       booking.RideID,
		PassengerID:  booking.PassengerID,
		Status:       string(booking.Status),
		Amount:       booking.CancellationRefundAmount,
		RecipientIDs: []string{booking.PassengerID},
		Message:      "Your refund has been issued",
	})
}

// NotifyPayoutRecorded tells the driver a payout was made.
func (s *NotificationService) NotifyPayoutRecorded(ctx context.Context, payout *domain.Payout) {
	amount := payout.Amount
	s.send(ctx, events.Event{
		Type:         events.TypePayoutRecorded,
		DriverID:     payout.DriverID,
		Amount:       &amount,
		RecipientIDs: []string{payout.DriverID},
		Message:      fmt.Sprintf("A payout of %s was sent to you", amount),
	})
}

func (s *NotificationService) send(ctx context.Context, event events.Event) {
	if s == nil || s.publisher == nil {
		return
	}

	event.ID = uuid.New().String()
	event.OccurredAt = time.Now().UTC()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"booking_id": event.BookingID,
			"driver_id":  event.DriverID,
		}).Warn("failed to publish event")
	}
}
