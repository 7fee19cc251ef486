package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/visit-tracker/internal/config"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

// Writer produces visit lifecycle records to the sink topic.
// It implements tracker.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes one visit update to the sink topic, keyed by visit ID
// so all updates for a visit land on the same partition in order.
func (w *Writer) Publish(ctx context.Context, update tracker.VisitUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("serialize visit update: %w", err)
	}
	return w.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(update.Visit.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(update.Kind)},
		},
	})
}

func (w *Writer) Close() error {
	return w.writer.Close()
}
