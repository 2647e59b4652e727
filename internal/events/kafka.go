package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaPublisher publishes events to Kafka, one topic per event family.
type KafkaPublisher struct {
	brokers []string
	writer  *kafkago.Writer
	logger  *logrus.Logger
}

// NewKafkaPublisher returns a publisher writing to the given brokers.
func NewKafkaPublisher(brokers []string, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		brokers: brokers,
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

// EnsureTopics creates topics if they don't already exist (with retry).
func (p *KafkaPublisher) EnsureTopics(ctx context.Context, topics ...string) error {
	const attempts = 10
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := kafkago.DialContext(ctx, "tcp", p.brokers[0])
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"broker":  p.brokers[0],
			}).Warn("kafka not ready, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		configs := make([]kafkago.TopicConfig, len(topics))
		for i, t := range topics {
			configs[i] = kafkago.TopicConfig{
				Topic:             t,
				NumPartitions:     3,
				ReplicationFactor: 1,
			}
		}

		err = conn.CreateTopics(configs...)
		conn.Close()
		if err != nil {
			p.logger.WithError(err).Info("kafka topic creation returned (may already exist)")
		}
		return nil
	}
	return fmt.Errorf("kafka: could not connect after %d attempts", attempts)
}

// Publish sends the JSON-serialised event keyed by booking (or driver) ID.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: event.Topic(),
		Key:   []byte(event.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
