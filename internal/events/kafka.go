// Package events publishes committed contract events to external consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/domaguardian/domaguardian/internal/config"
	"github.com/domaguardian/domaguardian/internal/storage"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events to a Kafka topic, one message per event. Messages
// are keyed by contract so each contract's events stay ordered within a
// partition.
type KafkaSink struct {
	w      messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaSink creates a sink for cfg.
func NewKafkaSink(cfg config.KafkaConfig, logger *slog.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaSink(w, cfg.Topic, logger)
}

func newKafkaSink(w messageWriter, topic string, logger *slog.Logger) *KafkaSink {
	return &KafkaSink{w: w, topic: topic, logger: logger}
}

// Name implements node.EventSink.
func (s *KafkaSink) Name() string {
	return "kafka"
}

// Publish implements node.EventSink.
func (s *KafkaSink) Publish(ctx context.Context, events []storage.EventRecord) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", ev.Seq, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Contract),
			Value: body,
			Headers: []kafka.Header{
				{Key: "event", Value: []byte(ev.Name)},
			},
			Time: ev.Time,
		})
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing %d events to %s: %w", len(msgs), s.topic, err)
	}
	s.logger.Debug("published events", "topic", s.topic, "count", len(msgs))
	return nil
}

// Close flushes pending writes.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}
