package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("publisher", "log")}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.Info("lifecycle event",
		"type", e.Type,
		"key", e.Key(),
		"actor", e.ActorID,
		"from", e.From,
		"to", e.To,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by record or campaign id, so
// events of one record stay ordered within a partition.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaWriter creates a synchronous hash-balanced writer for topic.
func NewKafkaWriter(brokers []string, topic string, timeout time.Duration) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: timeout,
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaPublisher wraps w. timeout bounds each publish.
func NewKafkaPublisher(w MessageWriter, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: timeout}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(e.Key()),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
