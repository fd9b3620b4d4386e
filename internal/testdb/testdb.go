// Package testdb builds throwaway reporting databases for tests.
package testdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/logging"
	"github.com/whatscottcodes/paceutils/store"
	"github.com/whatscottcodes/paceutils/store/schema"
	"github.com/whatscottcodes/paceutils/store/sqlite"
)

// Path creates a migrated SQLite file under t.TempDir. With seed the demo
// fixtures are loaded.
func Path(t testing.TB, seed bool) string {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "pace.db")
	db, err := sqlite.OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, schema.Migrate(ctx, db, store.SQLite, logging.Nop()))
	if seed {
		require.NoError(t, schema.SeedDemo(ctx, db, store.SQLite))
	}
	return path
}

// New returns an executor over a seeded demo database.
func New(t testing.TB) *store.Executor {
	t.Helper()
	exec, err := sqlite.New(sqlite.Config{Path: Path(t, true)}, logging.Nop())
	require.NoError(t, err)
	return exec
}

// Empty returns an executor over a migrated database with no rows.
func Empty(t testing.TB) *store.Executor {
	t.Helper()
	exec, err := sqlite.New(sqlite.Config{Path: Path(t, false)}, logging.Nop())
	require.NoError(t, err)
	return exec
}

// Agg returns an executor over a seeded aggregate database.
func Agg(t testing.TB) *store.Executor {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "agg.db")
	db, err := sqlite.OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, schema.MigrateAgg(ctx, db, store.SQLite, logging.Nop()))
	require.NoError(t, schema.SeedAggDemo(ctx, db, store.SQLite))

	exec, err := sqlite.New(sqlite.Config{Path: path}, logging.Nop())
	require.NoError(t, err)
	return exec
}
