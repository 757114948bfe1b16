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

// MessageReader is the subset of *kafka.Reader the listener needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// BatchStarter starts an enrichment batch for a request and returns the id of
// the run it started.
type BatchStarter interface {
	StartEnrichmentBatch(ctx context.Context, req domain.EnrichmentRequestedPayload) (string, error)
}

// Listener consumes enrichment requests from Kafka and starts batch runs.
type Listener struct {
	reader  MessageReader
	starter BatchStarter
	logger  zerolog.Logger
	backoff time.Duration
}

// NewListener creates a listener on the requests topic.
func NewListener(cfg config.KafkaConfig, starter BatchStarter, logger zerolog.Logger) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.RequestsTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return NewListenerWithReader(reader, starter, logger)
}

// NewListenerWithReader creates a listener on an existing reader.
func NewListenerWithReader(reader MessageReader, starter BatchStarter, logger zerolog.Logger) *Listener {
	return &Listener{
		reader:  reader,
		starter: starter,
		logger:  logger.With().Str("component", "request_listener").Logger(),
		backoff: time.Second,
	}
}

// Run consumes messages until ctx is cancelled. Malformed or unrelated
// messages are logged and skipped.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting enrichment request listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("request listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.backoff):
			}
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received enrichment request")

		if err := l.handle(ctx, msg); err != nil {
			l.logger.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("failed to handle enrichment request")
		}
	}
}

func (l *Listener) handle(ctx context.Context, msg kafka.Message) error {
	var event domain.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if event.EventType != domain.EventTypeEnrichmentRequested {
		l.logger.Debug().Str("event_type", event.EventType).Msg("ignoring event")
		return nil
	}

	var req domain.EnrichmentRequestedPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &req); err != nil {
			return fmt.Errorf("unmarshal enrichment request: %w", err)
		}
	}

	for _, h := range msg.Headers {
		if h.Key == HeaderCorrelationID {
			ctx = observability.WithRequestID(ctx, string(h.Value))
		}
	}

	runID, err := l.starter.StartEnrichmentBatch(ctx, req)
	if err != nil {
		return fmt.Errorf("start enrichment batch: %w", err)
	}

	l.logger.Info().
		Str("event_id", event.EventID).
		Str("run_id", runID).
		Int("record_ids", len(req.RecordIDs)).
		Bool("second_pass", req.SecondPass).
		Msg("enrichment batch started")
	return nil
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing request listener")
	return l.reader.Close()
}
