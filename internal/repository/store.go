package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/database"
)

// Compile-time interface verification.
var _ Store = (*PgStore)(nil)

// Pool is what PgStore needs from a connection pool. *pgxpool.Pool,
// *database.DB and pgxmock pools satisfy it.
type Pool interface {
	DBTX
	database.TxBeginner
}

// PgStore combines the PostgreSQL repositories over one pool.
type PgStore struct {
	*PgRecordRepository
	*PgVersionRepository

	pool   Pool
	logger zerolog.Logger
}

// NewPgStore creates a store on pool.
func NewPgStore(pool Pool, logger zerolog.Logger) *PgStore {
	return &PgStore{
		PgRecordRepository:  NewPgRecordRepository(pool),
		PgVersionRepository: NewPgVersionRepository(pool),
		pool:                pool,
		logger:              logger.With().Str("component", "store").Logger(),
	}
}

// txStore binds both repositories to one transaction.
type txStore struct {
	*PgRecordRepository
	*PgVersionRepository
}

// WithPreprintLock serializes work on one preprint across processes.
func (s *PgStore) WithPreprintLock(ctx context.Context, preprintID uuid.UUID, fn func(ctx context.Context, tx TxStore) error) error {
	return database.RunInTx(ctx, s.pool, s.logger, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := database.AcquireAdvisoryLockTx(ctx, tx, database.LockKey(preprintID)); err != nil {
			return err
		}
		return fn(ctx, txStore{
			PgRecordRepository:  NewPgRecordRepository(tx),
			PgVersionRepository: NewPgVersionRepository(tx),
		})
	})
}
