package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants.
const (
	EventTypeRecordEnriched       = "record.enriched"
	EventTypeVersionLinked        = "version.linked"
	EventTypeEnrichmentRequested  = "enrichment.requested"
	EventTypeEnrichmentBatchEnded = "enrichment.batch_completed"
)

// Event is the envelope published to the event bus.
type Event struct {
	EventID       string          `json:"event_id"`
	EventVersion  int             `json:"event_version"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewEvent creates a new event with the given parameters.
// The payload is JSON-serialized automatically.
func NewEvent(eventType, aggregateID, aggregateType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       uuid.New().String(),
		EventVersion:  1,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payloadBytes,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// RecordEnrichedPayload is the payload for record.enriched events.
type RecordEnrichedPayload struct {
	RecordID            uuid.UUID  `json:"record_id"`
	DOI                 string     `json:"doi,omitempty"`
	AbstractFound       bool       `json:"abstract_found"`
	AbstractSource      string     `json:"abstract_source,omitempty"`
	IsPreprint          bool       `json:"is_preprint"`
	PreprintSource      SourceType `json:"preprint_source,omitempty"`
	IsOA                *bool      `json:"is_oa,omitempty"`
	HasPublishedVersion bool       `json:"has_published_version"`
	EnrichedAt          time.Time  `json:"enriched_at"`
}

// VersionLinkedPayload is the payload for version.linked events.
type VersionLinkedPayload struct {
	PreprintID      uuid.UUID  `json:"preprint_id"`
	PublishedID     uuid.UUID  `json:"published_id"`
	PreprintDOI     string     `json:"preprint_doi,omitempty"`
	PublishedDOI    string     `json:"published_doi"`
	DiscoverySource SourceType `json:"discovery_source"`
	RecordCreated   bool       `json:"record_created"`
}

// EnrichmentRequestedPayload is the payload for enrichment.requested events.
// An empty RecordIDs list requests every unenriched record.
type EnrichmentRequestedPayload struct {
	RecordIDs   []uuid.UUID `json:"record_ids,omitempty"`
	SecondPass  bool        `json:"second_pass"`
	RequestedBy string      `json:"requested_by,omitempty"`
}

// BatchCompletedPayload is the payload for enrichment.batch_completed events.
type BatchCompletedPayload struct {
	Passes              int           `json:"passes"`
	RecordsEnriched     int           `json:"records_enriched"`
	RecordsFailed       int           `json:"records_failed"`
	AbstractsFound      int           `json:"abstracts_found"`
	PublishedRecordsNew int           `json:"published_records_new"`
	Duration            time.Duration `json:"duration_ns"`
}
