package schema_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/logging"
	"github.com/whatscottcodes/paceutils/store"
	"github.com/whatscottcodes/paceutils/store/schema"
	"github.com/whatscottcodes/paceutils/store/sqlite"
)

func TestMigrate_IsRepeatable(t *testing.T) {
	// GIVEN: A fresh database file
	ctx := context.Background()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "pace.db"))
	require.NoError(t, err)
	defer db.Close()

	// WHEN: Migrating twice
	require.NoError(t, schema.Migrate(ctx, db, store.SQLite, logging.Nop()))
	require.NoError(t, schema.Migrate(ctx, db, store.SQLite, logging.Nop()))

	// THEN: Every reporting migration is applied once
	v, err := schema.Version(ctx, db, store.SQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestInstallFunctions(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "pace.db"))
	require.NoError(t, err)
	defer db.Close()

	// SQLite has the functions built in; nothing to install.
	assert.Empty(t, store.SQLite.Functions)
	require.NoError(t, schema.InstallFunctions(ctx, db, store.SQLite))

	// Every PostgreSQL statement replaces an earlier version.
	require.NotEmpty(t, store.Postgres.Functions)
	for _, stmt := range store.Postgres.Functions {
		assert.Contains(t, stmt, "CREATE OR REPLACE FUNCTION")
	}

	// A rejected statement is reported with the dialect.
	broken := store.Dialect{Driver: "sqlite3", Goose: "sqlite3", Functions: []string{"CREATE NOTHING"}}
	err = schema.InstallFunctions(ctx, db, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "install sqlite3 functions")
}

func TestSeedDemo_Counts(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "pace.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, schema.Migrate(ctx, db, store.SQLite, logging.Nop()))
	require.NoError(t, schema.SeedDemo(ctx, db, store.SQLite))

	tests := []struct {
		table string
		want  int
	}{
		{"ppts", 8},
		{"enrollment", 8},
		{"monthly_census", 18},
		{"acute", 6},
		{"er_only", 5},
		{"falls", 6},
		{"centers", 9},
		{"icd10_codes", 8},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			var n int
			require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tt.table).Scan(&n))
			assert.Equal(t, tt.want, n)
		})
	}

	// Seeding twice violates primary keys and rolls back.
	assert.Error(t, schema.SeedDemo(ctx, db, store.SQLite))
	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ppts").Scan(&n))
	assert.Equal(t, 8, n)
}

func TestAggAllowList(t *testing.T) {
	allow := schema.AggAllowList()

	assert.Equal(t, []string{"enrollment", "utilization"}, allow.Tables())
	assert.NoError(t, allow.Columns("enrollment", "census", "central_census"))
	assert.Error(t, allow.Columns("enrollment", "census; DROP TABLE enrollment"))
}
