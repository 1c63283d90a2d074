package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/lexiqai/live-interpreter/internal/session"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds Kafka publisher configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaSink publishes utterance records as JSON, keyed by session ID so a
// session's records stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaSink creates a Kafka-backed sink.
func NewKafkaSink(cfg KafkaConfig, logger zerolog.Logger) *KafkaSink {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka record sink initialized")

	return &KafkaSink{writer: writer, topic: cfg.Topic, logger: logger}
}

// Publish implements session.RecordSink.
func (k *KafkaSink) Publish(ctx context.Context, rec session.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("utterance_completed")},
			{Key: "direction", Value: []byte(rec.Direction)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Error().
			Err(err).
			Str("topic", k.topic).
			Str("session_id", rec.SessionID).
			Msg("Failed to write to Kafka")
		return fmt.Errorf("failed to publish record to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
