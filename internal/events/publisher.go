package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/enrichment-service/internal/config"
	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/observability"
)

// Kafka header keys set on every published message.
const (
	HeaderEventType     = "event_type"
	HeaderSource        = "source"
	HeaderCorrelationID = "correlation_id"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer for the events topic. Messages are keyed by
// aggregate so events of one record stay ordered within a partition.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	if w.BatchTimeout <= 0 {
		w.BatchTimeout = 50 * time.Millisecond
	}
	return w
}

// Publisher emits service events to Kafka.
type Publisher struct {
	writer  MessageWriter
	emitter *Emitter
	logger  zerolog.Logger
}

// NewPublisher creates a Publisher writing through writer.
func NewPublisher(writer MessageWriter, emitter *Emitter, logger zerolog.Logger) *Publisher {
	if emitter == nil {
		emitter = NewEmitter(EmitterConfig{})
	}
	return &Publisher{
		writer:  writer,
		emitter: emitter,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish emits an event and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, params EmitParams) error {
	if params.CorrelationID == "" {
		params.CorrelationID = observability.RequestIDFromContext(ctx)
	}

	event, err := p.emitter.Emit(params)
	if err != nil {
		return fmt.Errorf("emit event: %w", err)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
			{Key: HeaderSource, Value: []byte(p.emitter.ServiceName())},
		},
		Time: event.CreatedAt,
	}
	if params.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(params.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Str("aggregate_id", event.AggregateID).
		Msg("event_published")
	return nil
}

// RecordEnriched publishes a record.enriched event.
func (p *Publisher) RecordEnriched(ctx context.Context, rec *domain.Record) error {
	payload := domain.RecordEnrichedPayload{
		RecordID:            rec.ID,
		DOI:                 rec.DOINorm,
		AbstractFound:       rec.HasAbstract(),
		AbstractSource:      rec.AbstractSource,
		IsPreprint:          rec.IsPreprint,
		PreprintSource:      domain.SourceType(rec.PreprintSource),
		IsOA:                rec.IsOA,
		HasPublishedVersion: rec.PublishedDOI != "",
	}
	if rec.EnrichedAt != nil {
		payload.EnrichedAt = *rec.EnrichedAt
	}
	return p.Publish(ctx, EmitParams{
		AggregateID: rec.ID.String(),
		EventType:   domain.EventTypeRecordEnriched,
		Payload:     payload,
	})
}

// VersionLinked publishes a version.linked event for a newly created relation.
func (p *Publisher) VersionLinked(ctx context.Context, rec *domain.Record, outcome *domain.PublishedVersionOutcome) error {
	if outcome == nil || outcome.PublishedVersionRecordID == nil {
		return fmt.Errorf("version.linked requires a published record id")
	}
	return p.Publish(ctx, EmitParams{
		AggregateID: rec.ID.String(),
		EventType:   domain.EventTypeVersionLinked,
		Payload: domain.VersionLinkedPayload{
			PreprintID:      rec.ID,
			PublishedID:     *outcome.PublishedVersionRecordID,
			PreprintDOI:     rec.DOINorm,
			PublishedDOI:    outcome.DOI,
			DiscoverySource: outcome.DiscoverySource,
			RecordCreated:   outcome.RecordCreated,
		},
	})
}

// BatchCompleted publishes an enrichment.batch_completed event.
func (p *Publisher) BatchCompleted(ctx context.Context, batchID string, payload domain.BatchCompletedPayload) error {
	return p.Publish(ctx, EmitParams{
		AggregateID:   batchID,
		AggregateType: AggregateTypeBatch,
		EventType:     domain.EventTypeEnrichmentBatchEnded,
		Payload:       payload,
	})
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
