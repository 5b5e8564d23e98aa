package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/config"
)

// SchemaHeader names the message header that carries Event.Schema.
const SchemaHeader = "schema"

// Event is one message to publish. Key selects the partition, Value is
// encoded as JSON and Schema, when set, travels as the schema header.
type Event struct {
	Key    string
	Value  any
	Schema string
}

// Producer publishes batches of JSON events to one topic. Batching happens
// upstream, so each PublishBatch call is a single synchronous write.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
			// Callers hand over whole batches; do not wait to fill another.
			BatchTimeout: 5 * time.Millisecond,
			MaxAttempts:  3,
			// Analytics tolerates the rare loss a leader-only ack allows.
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch encodes events and writes them in one call. An encoding
// failure rejects the whole batch before anything is sent.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, len(events))
	now := time.Now()
	for i, e := range events {
		msg, err := encode(e, now)
		if err != nil {
			return err
		}
		messages[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Warn("batch publish failed", "count", len(messages), "error", err)
		return fmt.Errorf("publishing %d events: %w", len(messages), err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

func encode(e Event, at time.Time) (kafka.Message, error) {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %q: %w", e.Key, err)
	}
	msg := kafka.Message{Key: []byte(e.Key), Value: value, Time: at}
	if e.Schema != "" {
		msg.Headers = []kafka.Header{{Key: SchemaHeader, Value: []byte(e.Schema)}}
	}
	return msg, nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
