package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogPublisher writes events to the structured log. Used when no broker is
// configured.
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	fields := logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"topic":      event.Topic(),
	}
	if event.BookingID != "" {
		fields["booking_id"] = event.BookingID
	}
	if event.DriverID != "" {
		fields["driver_id"] = event.DriverID
	}
	if event.Amount != nil {
		fields["amount"] = event.Amount.String()
	}
	p.logger.WithFields(fields).Info(event.Message)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}

var _ Publisher = (*LogPublisher)(nil)
