//go:build integration

// Package dbtest starts a disposable PostgreSQL container with the service
// schema applied. It is only compiled for integration tests.
package dbtest

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/enrichment-service/internal/database"
)

const image = "postgres:16-alpine"

// MigrationsPath returns the absolute path of the repository migrations.
func MigrationsPath(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok, "resolving caller")
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Start runs a PostgreSQL container and returns a connected DB. When migrate
// is true every up migration is applied before returning.
func Start(t *testing.T, migrate bool) *database.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("enrichment_test"),
		postgres.WithUsername("enrichment"),
		postgres.WithPassword("enrichment"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	db := database.NewFromPool(pool, zerolog.Nop())
	if migrate {
		m, err := database.NewMigrator(db, MigrationsPath(t), zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, m.Up())
		require.NoError(t, m.Close())
	}
	return db
}

// Truncate empties the given tables between subtests.
func Truncate(t *testing.T, db *database.DB, tables ...string) {
	t.Helper()
	for _, table := range tables {
		_, err := db.Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE")
		require.NoError(t, err)
	}
}
