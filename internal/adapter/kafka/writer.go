package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/atlas-alert/hazard-engine/internal/config"
	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// Writer publishes zone lifecycle events to the broadcast topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured zone topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaZoneTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishZoneEvents serializes and publishes zone transitions in a single
// WriteMessages call. Keying by zone ID keeps each zone's lifecycle ordered
// within a partition.
func (w *Writer) PublishZoneEvents(ctx context.Context, events []domain.ZoneEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeZoneEvent(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeZoneEvent marshals a ZoneEvent into a Kafka message.
func serializeZoneEvent(event domain.ZoneEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize zone event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Zone.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "hazard", Value: []byte(event.Zone.Hazard)},
			{Key: "emitted_at", Value: []byte(event.At.Format(time.RFC3339))},
		},
	}, nil
}
