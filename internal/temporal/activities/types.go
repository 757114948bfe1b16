// Package activities provides the Temporal activities of enrichment batches.
//
// Activity inputs and outputs cross the Temporal serialization boundary, so
// every field is exported and JSON encodable.
package activities

import (
	"time"

	"github.com/google/uuid"

	"github.com/helixir/enrichment-service/internal/domain"
)

// ListUnenrichedInput contains the parameters for ListUnenrichedRecords.
type ListUnenrichedInput struct {
	// Limit caps the IDs returned; 0 means all.
	Limit int
}

// ListUnenrichedOutput contains the IDs of records never enriched.
type ListUnenrichedOutput struct {
	RecordIDs []uuid.UUID
}

// EnrichRecordInput identifies one record of one pass.
type EnrichRecordInput struct {
	BatchID  string
	RecordID uuid.UUID

	// EnrichedAt is the timestamp shared by every record of the pass.
	EnrichedAt time.Time
}

// EnrichRecordOutput reports what enriching one record produced.
type EnrichRecordOutput struct {
	RecordID      uuid.UUID
	Persisted     bool
	Skipped       bool
	AbstractFound bool
	LinkCreated   bool
	RecordCreated bool
}

// PublishBatchCompletedInput contains the summary of a finished batch.
type PublishBatchCompletedInput struct {
	BatchID string
	Payload domain.BatchCompletedPayload
}
