/*
Package sqlite provides the SQLite dialect of the reporting executor.

PURPOSE:
  Builds a store.Executor over mattn/go-sqlite3. The reporting database is
  opened read-write without create (mode=rw), so a wrong path surfaces as a
  connectivity error instead of silently creating an empty database.

USAGE:
  exec, err := sqlite.New(sqlite.Config{Path: "./data/pace.db"}, log)
  if err != nil {
      log.Fatal(err)
  }
  census, err := enrollment.New(exec).CensusDuringPeriod(ctx, period)

MIGRATION:
  OpenDB opens with create (mode=rwc) for store/schema.Migrate and seeding.

SEE ALSO:
  - store/executor.go: Connection scope and error mapping
  - store/schema: Reference schema and demo data
*/
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	"github.com/whatscottcodes/paceutils/store"
	"go.uber.org/zap"
)

type Config struct {
	Path string
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("sqlite: path is required")
	}
	if c.Path == ":memory:" {
		// Each call opens a fresh connection, so an in-memory database would
		// be empty on every query.
		return errors.New("sqlite: in-memory databases are not supported")
	}
	return nil
}

// New creates an executor on an existing database file.
func New(cfg Config, log *zap.Logger) (*store.Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return store.NewExecutor(store.SQLite, DSN(cfg.Path, false), log), nil
}

// OpenDB opens (creating if needed) a database handle for schema work.
func OpenDB(path string) (*sql.DB, error) {
	if err := (Config{Path: path}).Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", DSN(path, true))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// DSN renders a file URI for go-sqlite3. The path is percent-encoded, so
// ?, # and % are part of the file name and not URI syntax.
func DSN(path string, create bool) string {
	mode := "rw"
	if create {
		mode = "rwc"
	}
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode()
}
