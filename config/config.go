/*
Package config loads process configuration for the paceutils CLI and API.

SOURCES (later wins):
  1. Defaults below
  2. Optional YAML file passed to Load
  3. PACE_* environment variables (PACE_DB_PATH, PACE_HTTP_ADDR, ...)

EXAMPLE FILE:
  db_driver: sqlite3
  db_path: ./data/pace.db
  agg_db_path: ./data/agg.db
  http_addr: :8080
  cors_origins: [http://localhost:3000]
  max_series_periods: 120   # 0 removes the cap
  agg_tables:
    enrollment: [census, enrolled, disenrolled]
*/
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/store/postgres"
	"github.com/whatscottcodes/paceutils/store/sqlite"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	EnvPrefix = "PACE"
)

type Config struct {
	DBDriver    string              `mapstructure:"db_driver"`
	DBPath      string              `mapstructure:"db_path"`
	AggDBPath   string              `mapstructure:"agg_db_path"`
	DatabaseURL string              `mapstructure:"database_url"`
	HTTPAddr    string              `mapstructure:"http_addr"`
	LogLevel    string              `mapstructure:"log_level"`
	Env         string              `mapstructure:"env"`
	SentryDSN   string              `mapstructure:"sentry_dsn"`
	CORSOrigins []string            `mapstructure:"cors_origins"`
	AggTables   map[string][]string `mapstructure:"agg_tables"`

	MaxSeriesPeriods int `mapstructure:"max_series_periods"`
}

var keys = []string{
	"db_driver", "db_path", "agg_db_path", "database_url", "http_addr",
	"log_level", "env", "sentry_dsn", "cors_origins", "agg_tables",
	"max_series_periods",
}

// Load reads path (skipped when empty) and the environment. The result is
// validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_driver", DriverSQLite)
	v.SetDefault("db_path", "./data/pace.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("env", "dev")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("max_series_periods", generic.DefaultMaxSubPeriods)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A comma separated PACE_CORS_ORIGINS arrives as a single element.
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = splitList(cfg.CORSOrigins[0])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsProduction() bool { return c.Env == "prod" }

// Validate checks the driver and the location it needs.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if err := c.SQLite().Validate(); err != nil {
			return err
		}
	case DriverPostgres:
		if err := c.Postgres().Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("db_driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}
	if c.MaxSeriesPeriods < 0 {
		return fmt.Errorf("max_series_periods must not be negative, got %d", c.MaxSeriesPeriods)
	}
	if len(c.AggTables) > 0 && c.AggDBPath == "" {
		return errors.New("agg_tables requires agg_db_path")
	}
	return nil
}

func (c *Config) SQLite() sqlite.Config { return sqlite.Config{Path: c.DBPath} }

func (c *Config) Postgres() postgres.Config { return postgres.Config{URL: c.DatabaseURL} }

// HasAgg reports whether an aggregate database is configured.
func (c *Config) HasAgg() bool { return c.AggDBPath != "" }

func (c *Config) AggConfig() sqlite.Config { return sqlite.Config{Path: c.AggDBPath} }

// AggAllowList returns the aggregate tables and columns the plot queries
// may name.
func (c *Config) AggAllowList() generic.AllowList {
	return generic.NewAllowList(c.AggTables)
}
