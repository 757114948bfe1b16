package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lazyDB returns a DB whose pool never dials until a query runs.
func lazyDB(t *testing.T) *DB {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://enrichment@127.0.0.1:1/none?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewFromPool(pool, zerolog.Nop())
}

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name    string
		db      func(t *testing.T) *DB
		path    string
		wantErr string
	}{
		{
			name:    "nil database",
			db:      func(*testing.T) *DB { return nil },
			path:    "/some/path",
			wantErr: "database is required",
		},
		{
			name:    "nil pool",
			db:      func(*testing.T) *DB { return &DB{} },
			path:    "/some/path",
			wantErr: "database pool not initialized",
		},
		{
			name:    "empty migrations path",
			db:      lazyDB,
			wantErr: "migrations path is required",
		},
		{
			name:    "missing migrations directory",
			db:      lazyDB,
			path:    filepath.Join(t.TempDir(), "absent"),
			wantErr: "migrations path: ",
		},
		{
			name: "migrations path is a file",
			db:   lazyDB,
			path: func() string {
				f := filepath.Join(t.TempDir(), "000001_create_records.up.sql")
				require.NoError(t, os.WriteFile(f, []byte("SELECT 1;"), 0o600))
				return f
			}(),
			wantErr: "is not a directory",
		},
		{
			name:    "unreachable database",
			db:      lazyDB,
			path:    t.TempDir(),
			wantErr: "postgres migration driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMigrator(tt.db(t), tt.path, logger)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
