package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArticleVersionRelation links a preprint record to its published version.
// The (PreprintID, PublishedID) pair is unique. Relations are never mutated.
type ArticleVersionRelation struct {
	ID                uuid.UUID
	PreprintID        uuid.UUID
	PublishedID       uuid.UUID
	DiscoveredAt      time.Time
	DiscoverySource   SourceType
	DiscoveryMetadata json.RawMessage
}

// LinkResult is the outcome of the preprint-to-published linking workflow.
type LinkResult struct {
	// PublishedID is the published record identity; uuid.Nil on failure.
	PublishedID uuid.UUID

	// Success is true when a relation exists after the call.
	Success bool

	// AlreadyLinked is true when the fast path found an existing relation.
	AlreadyLinked bool

	// RecordCreated is true when a new published record was inserted.
	RecordCreated bool

	// LinkCreated is true when a new relation row was inserted.
	LinkCreated bool

	Message string
}

// Link statuses reported for a linking attempt.
const (
	LinkStatusAlreadyLinked  = "already_linked"
	LinkStatusLinkedNew      = "linked_new"
	LinkStatusLinkedExisting = "linked_existing"
	LinkStatusFailed         = "failed"
)

// Status classifies the result as one of the LinkStatus values.
func (r LinkResult) Status() string {
	switch {
	case !r.Success:
		return LinkStatusFailed
	case r.AlreadyLinked:
		return LinkStatusAlreadyLinked
	case r.RecordCreated:
		return LinkStatusLinkedNew
	default:
		return LinkStatusLinkedExisting
	}
}
