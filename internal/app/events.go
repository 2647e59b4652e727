package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"carpool/internal/config"
	"carpool/internal/events"
)

// NewEventPublisher creates the publisher selected by cfg.Driver.
func NewEventPublisher(ctx context.Context, cfg config.EventsConfig, logger *logrus.Logger) (events.Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		if err := publisher.EnsureTopics(ctx, events.TopicBookings, events.TopicPayouts); err != nil {
			logger.WithError(err).Warn("could not ensure kafka topics, relying on auto-create")
		}
		return publisher, nil
	case "amqp":
		return events.NewAMQPPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger)
	case "log", "":
		return events.NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
