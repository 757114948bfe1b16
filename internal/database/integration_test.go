//go:build integration

package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/enrichment-service/internal/database"
	"github.com/helixir/enrichment-service/internal/database/dbtest"
)

func TestMigrator_Lifecycle(t *testing.T) {
	db := dbtest.Start(t, false)

	m, err := database.NewMigrator(db, dbtest.MigrationsPath(t), zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	status, err := m.Status()
	require.NoError(t, err)
	assert.False(t, status.Applied)

	require.NoError(t, m.Up())
	require.NoError(t, m.Up(), "re-applying is a no-op")

	status, err = m.Status()
	require.NoError(t, err)
	assert.True(t, status.Applied)
	assert.Equal(t, uint(2), status.Version)
	assert.False(t, status.Dirty)

	var tables int
	err = db.QueryRow(context.Background(),
		`SELECT count(*) FROM information_schema.tables
		 WHERE table_name IN ('records', 'article_version_relations')`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)

	require.NoError(t, m.Down())
	status, err = m.Status()
	require.NoError(t, err)
	assert.False(t, status.Applied)

	require.NoError(t, m.Force(1))
	status, err = m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), status.Version)
}

func TestDB_Live(t *testing.T) {
	db := dbtest.Start(t, true)
	ctx := context.Background()

	t.Run("health", func(t *testing.T) {
		health := db.Health(ctx)
		assert.Equal(t, "healthy", health.Status)
		assert.Empty(t, health.Error)
		assert.Positive(t, health.MaxConns)
	})

	t.Run("transaction rollback discards writes", func(t *testing.T) {
		dbtest.Truncate(t, db, "records")
		sentinel := errors.New("abort")

		err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `INSERT INTO records (id, title) VALUES ($1, 'rolled back')`, uuid.New()); err != nil {
				return err
			}
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		var n int
		require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM records`).Scan(&n))
		assert.Zero(t, n)
	})

	t.Run("advisory lock is transaction scoped", func(t *testing.T) {
		key := database.LockKey(uuid.New())
		err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
			return database.AcquireAdvisoryLockTx(ctx, tx, key)
		})
		require.NoError(t, err)

		var held bool
		require.NoError(t, db.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, key).Scan(&held))
		assert.True(t, held, "lock must be released at commit")
	})
}
