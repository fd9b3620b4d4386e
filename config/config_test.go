package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/config"
	"github.com/whatscottcodes/paceutils/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paceutils.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// =============================================================================
// LOAD
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "./data/pace.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, generic.DefaultMaxSubPeriods, cfg.MaxSeriesPeriods)
	assert.False(t, cfg.HasAgg())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
db_path: /srv/pace.db
agg_db_path: /srv/agg.db
env: prod
max_series_periods: 24
cors_origins: [https://reports.example.org]
agg_tables:
  enrollment: [census, enrolled]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/pace.db", cfg.DBPath)
	assert.True(t, cfg.HasAgg())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 24, cfg.MaxSeriesPeriods)
	assert.Equal(t, []string{"https://reports.example.org"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.AggAllowList().Columns("enrollment", "census", "enrolled"))
	assert.Error(t, cfg.AggAllowList().Columns("enrollment", "deaths"))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "db_path: /srv/pace.db\nhttp_addr: :9000\n")
	t.Setenv("PACE_DB_PATH", "/tmp/override.db")
	t.Setenv("PACE_CORS_ORIGINS", "https://a.example.org,https://b.example.org")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// =============================================================================
// VALIDATE
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"sqlite", config.Config{DBDriver: config.DriverSQLite, DBPath: "pace.db", HTTPAddr: ":8080"}, false},
		{"sqlite without path", config.Config{DBDriver: config.DriverSQLite, HTTPAddr: ":8080"}, true},
		{"sqlite in memory", config.Config{DBDriver: config.DriverSQLite, DBPath: ":memory:", HTTPAddr: ":8080"}, true},
		{"postgres", config.Config{DBDriver: config.DriverPostgres, DatabaseURL: "postgres://localhost/pace", HTTPAddr: ":8080"}, false},
		{"postgres without url", config.Config{DBDriver: config.DriverPostgres, HTTPAddr: ":8080"}, true},
		{"unknown driver", config.Config{DBDriver: "mysql", DBPath: "pace.db", HTTPAddr: ":8080"}, true},
		{"agg tables without agg db", config.Config{
			DBDriver: config.DriverSQLite, DBPath: "pace.db", HTTPAddr: ":8080",
			AggTables: map[string][]string{"enrollment": {"census"}},
		}, true},
		{"negative series cap", config.Config{
			DBDriver: config.DriverSQLite, DBPath: "pace.db", HTTPAddr: ":8080", MaxSeriesPeriods: -1,
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
