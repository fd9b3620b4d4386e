/*
Package schema owns the reference reporting schema and its demo data.

PURPOSE:
  The reporting database is produced by an upstream ETL; this package
  carries the same tables as goose migrations, so a fresh database can be
  created for development, demos and tests.

MIGRATION SETS:
  migrations/reporting: ppts, enrollment, census, teams, utilization,
                        incidents, clinical tables, centers and ICD-10
                        descriptions
  migrations/agg:       pre-aggregated monthly indicator tables

DIALECT FUNCTIONS:
  Migrate also installs store.Dialect.Functions, so a PostgreSQL reporting
  database understands the SQLite date functions the catalog queries use.
  InstallFunctions does only that step, for databases whose tables are
  managed elsewhere.

USAGE:
  db, err := sqlite.OpenDB("./data/pace.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()
  if err := schema.Migrate(ctx, db, store.SQLite, logger); err != nil {
      log.Fatal(err)
  }
  if err := schema.SeedDemo(ctx, db, store.SQLite); err != nil {
      log.Fatal(err)
  }

SEE ALSO:
  - seed.go: Demo fixtures and the numbers they produce
  - store/sqlite: OpenDB for schema work
*/
package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/whatscottcodes/paceutils/logging"
	"github.com/whatscottcodes/paceutils/store"
	"go.uber.org/zap"
)

//go:embed migrations/reporting/*.sql migrations/agg/*.sql
var FS embed.FS

const (
	ReportingDir = "migrations/reporting"
	AggDir       = "migrations/agg"
)

// goose keeps its base FS, dialect and logger in package globals.
var gooseMu sync.Mutex

// Migrate applies the reporting migrations and installs the dialect's
// functions.
func Migrate(ctx context.Context, db *sql.DB, d store.Dialect, log *zap.Logger) error {
	if err := up(ctx, db, d, ReportingDir, log); err != nil {
		return err
	}
	return InstallFunctions(ctx, db, d)
}

// InstallFunctions runs d.Functions. The statements replace earlier
// versions, so it is safe to repeat.
func InstallFunctions(ctx context.Context, db *sql.DB, d store.Dialect) error {
	for _, stmt := range d.Functions {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("install %s functions: %w", d.Goose, err)
		}
	}
	return nil
}

// MigrateAgg applies the aggregate-database migrations.
func MigrateAgg(ctx context.Context, db *sql.DB, d store.Dialect, log *zap.Logger) error {
	return up(ctx, db, d, AggDir, log)
}

func up(ctx context.Context, db *sql.DB, d store.Dialect, dir string, log *zap.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(FS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(logging.GooseLogger{S: logging.OrNop(log).Sugar()})

	if err := goose.SetDialect(d.Goose); err != nil {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}
	return nil
}

// Version returns the highest applied migration version.
func Version(ctx context.Context, db *sql.DB, d store.Dialect) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(d.Goose); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
