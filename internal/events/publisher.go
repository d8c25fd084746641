package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/literature-harvester/internal/config"
	"github.com/helixir/literature-harvester/internal/domain"
)

const (
	// ServiceName identifies this service as the event source.
	ServiceName = "literature-harvester"

	// AggregateTypePaper is the aggregate type of paper events.
	AggregateTypePaper = "paper"

	defaultBatchTimeout = 100 * time.Millisecond
)

// Envelope wraps an event payload with routing metadata.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope.
func NewEnvelope(eventType, aggregateID, correlationID string, occurredAt time.Time, payload any) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, fmt.Errorf("event_type is required")
	}
	if aggregateID == "" {
		return Envelope{}, fmt.Errorf("aggregate_id is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: AggregateTypePaper,
		Source:        ServiceName,
		CorrelationID: correlationID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       data,
	}, nil
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(writer, cfg.Topic, logger)
}

func newPublisher(w messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "event_publisher").Str("topic", topic).Logger(),
	}
}

// PublishPaperImported publishes a paper.imported event keyed by the
// paper's canonical id.
func (p *KafkaPublisher) PublishPaperImported(ctx context.Context, event domain.PaperImportedEvent) error {
	env, err := NewEnvelope(event.EventType, event.CanonicalID, event.RunID, event.ImportedAt, event)
	if err != nil {
		return err
	}
	return p.Publish(ctx, env)
}

// Publish writes one envelope.
func (p *KafkaPublisher) Publish(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(env.AggregateID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "event_id", Value: []byte(env.EventID)},
			{Key: "source", Value: []byte(env.Source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", env.EventType, err)
	}

	p.logger.Debug().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Str("aggregate_id", env.AggregateID).
		Msg("event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// PublishPaperImported does nothing.
func (NoopPublisher) PublishPaperImported(context.Context, domain.PaperImportedEvent) error {
	return nil
}

// Close does nothing.
func (NoopPublisher) Close() error { return nil }
