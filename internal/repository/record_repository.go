package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/enrichment-service/internal/domain"
)

// RecordRepository persists bibliographic records.
type RecordRepository interface {
	// GetRecords lists records matching filter, newest import first, and the
	// total number of matches.
	GetRecords(ctx context.Context, filter RecordFilter) ([]*domain.Record, int64, error)

	// GetRecord returns the record with the given identity.
	// Returns domain.ErrNotFound if it does not exist.
	GetRecord(ctx context.Context, id uuid.UUID) (*domain.Record, error)

	// FindRecordByDOI returns the record whose normalized DOI equals doiNorm.
	// Returns domain.ErrNotFound if none exists.
	FindRecordByDOI(ctx context.Context, doiNorm string) (*domain.Record, error)

	// InsertRecord persists a new record and assigns its identity.
	// Returns domain.ErrAlreadyExists if another record owns the same
	// normalized DOI; the transaction, if any, remains usable.
	InsertRecord(ctx context.Context, rec *domain.Record) (uuid.UUID, error)

	// UpdateEnrichedRecord writes the enrichment fields, provenance and report
	// of rec and stamps enrichment_datetime with rec.EnrichedAt (now when unset).
	UpdateEnrichedRecord(ctx context.Context, rec *domain.Record) error

	// ListUnenriched returns records never enriched, oldest import first.
	// A limit of 0 returns all of them.
	ListUnenriched(ctx context.Context, limit int) ([]*domain.Record, error)
}

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	// IsPreprint restricts to preprints (true) or non-preprints (false).
	IsPreprint *bool

	// Enriched restricts to records with (true) or without (false) an
	// enrichment timestamp.
	Enriched *bool

	// HasAbstract restricts to records with (true) or without (false) an abstract.
	HasAbstract *bool

	Limit  int
	Offset int
}

// Validate normalizes pagination values.
func (f *RecordFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
