package events

import (
	"fmt"

	"github.com/helixir/enrichment-service/internal/domain"
)

const (
	// AggregateTypeRecord is the aggregate type of record events.
	AggregateTypeRecord = "record"

	// AggregateTypeBatch is the aggregate type of batch events.
	AggregateTypeBatch = "enrichment_batch"

	defaultServiceName = "enrichment-service"
)

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service.
	ServiceName string
}

// EmitParams contains the parameters for emitting an event.
type EmitParams struct {
	// AggregateID is the identity of the entity the event is about.
	AggregateID string
	// AggregateType defaults to AggregateTypeRecord.
	AggregateType string
	// EventType is the type of event (e.g., "record.enriched").
	EventType string
	// Payload is the event payload that will be JSON-serialized.
	Payload interface{}
	// CorrelationID for request tracing (optional).
	CorrelationID string
}

// Emitter creates event envelopes stamped with the service name.
type Emitter struct {
	config EmitterConfig
}

// NewEmitter creates a new Emitter with the given service configuration.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}
	return &Emitter{config: config}
}

// ServiceName returns the configured source service name.
func (e *Emitter) ServiceName() string {
	return e.config.ServiceName
}

// Emit validates params and builds the event.
func (e *Emitter) Emit(params EmitParams) (*domain.Event, error) {
	if params.AggregateID == "" {
		return nil, fmt.Errorf("aggregate_id is required")
	}
	if params.EventType == "" {
		return nil, fmt.Errorf("event_type is required")
	}

	aggregateType := params.AggregateType
	if aggregateType == "" {
		aggregateType = AggregateTypeRecord
	}

	event, err := domain.NewEvent(params.EventType, params.AggregateID, aggregateType, params.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return event, nil
}
