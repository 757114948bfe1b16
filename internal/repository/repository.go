// Package repository provides data access interfaces and their PostgreSQL
// implementations for the enrichment service.
//
// # Repository Interfaces
//
//   - RecordRepository: bibliographic records and their enrichment state
//   - VersionRepository: preprint to published-version relations
//
// Store combines both and adds WithPreprintLock, which runs a function in a
// transaction holding an advisory lock keyed on a preprint identity. The
// version-linking workflow relies on it to stay idempotent under concurrent
// callers.
//
// # Error Handling
//
// Methods return domain errors wrapped with context:
//
//   - domain.ErrNotFound: the record or relation does not exist
//   - domain.ErrAlreadyExists: another record already owns the DOI
//   - domain.ErrInvalidInput: invalid parameters
//
// # Transactions
//
// Implementations take a DBTX so the same code runs against the pool or a
// pgx.Tx:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    return repository.NewPgRecordRepository(tx).UpdateEnrichedRecord(ctx, rec)
//	})
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/enrichment-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// TxStore is the set of repositories available inside a transaction.
type TxStore interface {
	RecordRepository
	VersionRepository
}

// Store is the full persistence surface used by the service.
type Store interface {
	TxStore

	// WithPreprintLock runs fn in a transaction that holds an exclusive
	// advisory lock for preprintID. The TxStore handed to fn is bound to that
	// transaction. The transaction commits when fn returns nil.
	WithPreprintLock(ctx context.Context, preprintID uuid.UUID, fn func(ctx context.Context, tx TxStore) error) error
}

// nullIfEmpty maps "" to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
