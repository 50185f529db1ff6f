package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/eonet-explorer/internal/config"
	"github.com/couchcryptid/eonet-explorer/internal/domain"
)

// Writer writes applied layer sets to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured layer-set topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes the layer sets and writes them in one call. Messages
// are keyed by category, so every query of a category lands on the same
// partition in order.
func (w *Writer) LoadBatch(ctx context.Context, sets []domain.LayerSet) error {
	msgs := make([]kafkago.Message, 0, len(sets))
	for _, set := range sets {
		msg, err := serializeToMessage(set)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write layer sets: %w", err)
	}
	w.logger.Debug("layer sets written", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a LayerSet into a Kafka message.
func serializeToMessage(set domain.LayerSet) (kafkago.Message, error) {
	data, err := json.Marshal(set)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize layer set: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(set.Category),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(set.Category)},
			{Key: "query_seq", Value: []byte(strconv.FormatUint(set.Seq, 10))},
			{Key: "applied_at", Value: []byte(set.AppliedAt.Format(time.RFC3339))},
		},
	}, nil
}
