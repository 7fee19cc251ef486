// Package kafka adapts the tracker's transport interfaces to Kafka topics:
// sensor events in, visit updates and device control commands out.
package kafka

import (
	"context"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/visit-tracker/internal/config"
	"github.com/couchcryptid/visit-tracker/internal/domain"
)

// Reader consumes sensor messages from the source topic.
// It implements sensor.Source.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured sensor topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSensorTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return &Reader{reader: r, logger: logger}
}

// Fetch blocks for the next sensor message. Offsets are committed through
// the returned Commit closure after the message is processed.
func (r *Reader) Fetch(ctx context.Context) (domain.SensorMessage, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return domain.SensorMessage{}, err
	}

	return domain.SensorMessage{
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
