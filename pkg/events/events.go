// Package events announces import lifecycle changes (tables committed, run
// finished, batch rolled back) to Kafka so downstream ledgers can react.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	TypeTableCommitted    Type = "table.committed"
	TypeImportCompleted   Type = "import.completed"
	TypePreviewCompleted  Type = "preview.completed"
	TypeBackupCompleted   Type = "backup.completed"
	TypeRollbackCompleted Type = "rollback.completed"
	TypeRestoreCompleted  Type = "restore.completed"
)

// Event is one lifecycle notification. Events of a batch share a partition
// key so they arrive in order.
type Event struct {
	Type    Type      `json:"type"`
	BatchID string    `json:"batch_id,omitempty"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

func (e Event) Key() string {
	if e.BatchID != "" {
		return e.BatchID
	}
	return string(e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop drops every event. It is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	WriteTimeout time.Duration
}

func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Topic:        "fern.import.events",
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: int(kafka.RequireAll),
		WriteTimeout: 10 * time.Second,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events to a single topic.
type Producer struct {
	writer messageWriter
	topic  string
	logger ectologger.Logger
}

func NewProducer(config ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("an events topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              config.BatchSize,
		BatchTimeout:           config.BatchTimeout,
		WriteTimeout:           config.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(config.RequiredAcks),
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, config.Topic, logger), nil
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, topic: topic, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		headers = append(headers, kafka.Header{Key: "trace_id", Value: []byte(traceID)})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.Key()),
		Value:   data,
		Headers: headers,
		Time:    event.Time,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.Type,
		"batch_id":   event.BatchID,
	}).Debug("Published event")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
