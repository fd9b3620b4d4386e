/*
Package store executes reporting queries on database/sql.

PURPOSE:
  Implements generic.Executor for any database/sql driver. Dialect
  differences are limited to the driver name, the placeholder style and
  the SQL functions a dialect must install before the catalog can run
  (see functions.go).

CONNECTION SCOPE:
  Every call opens its own *sql.DB and *sql.Conn, runs one statement and
  closes both on every exit path. Nothing is pooled or cached between
  calls, so an Executor holds only immutable configuration and is safe
  for concurrent use.

ERRORS:
  Bind failure (param mismatch)   -> *generic.QueryError  (ErrParamMismatch)
  Open / connect / ping failure   -> *generic.ConnectivityError
  Statement rejected by driver    -> *generic.QueryError  (ErrQuery)
  Context canceled                -> ctx.Err(), wrapped

USAGE:
  exec, err := sqlite.New(sqlite.Config{Path: "pace.db"}, log)
  v, err := exec.Scalar(ctx, generic.PeriodQuery(sql, period))

SEE ALSO:
  - store/sqlite: SQLite dialect
  - store/postgres: PostgreSQL dialect (pgx)
  - generic/params.go: Named parameter binding
*/
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/logging"
	"github.com/whatscottcodes/paceutils/metrics"
	"go.uber.org/zap"
)

// Dialect names the database/sql driver, its goose dialect and how it
// spells bind markers. Functions are idempotent statements that give the
// database the SQLite date and rounding functions catalog queries use;
// SQLite has them built in.
type Dialect struct {
	Driver      string
	Goose       string
	Placeholder generic.Placeholder
	Functions   []string
}

var (
	SQLite   = Dialect{Driver: "sqlite3", Goose: "sqlite3", Placeholder: generic.QuestionPlaceholder}
	Postgres = Dialect{Driver: "pgx", Goose: "postgres", Placeholder: generic.DollarPlaceholder, Functions: postgresFunctions}
)

// Executor implements generic.Executor.
type Executor struct {
	dialect Dialect
	dsn     string
	log     *zap.Logger
}

var _ generic.Executor = (*Executor)(nil)

// NewExecutor does not touch the database; use Ping to check connectivity.
func NewExecutor(d Dialect, dsn string, log *zap.Logger) *Executor {
	return &Executor{dialect: d, dsn: dsn, log: logging.OrNop(log)}
}

func (e *Executor) Dialect() Dialect { return e.dialect }

// =============================================================================
// QUERY OPERATIONS
// =============================================================================

// Scalar returns the first column of the first row, with NULL or no row read as 0.
func (e *Executor) Scalar(ctx context.Context, q generic.Query) (generic.Value, error) {
	raw, _, err := e.ScalarRaw(ctx, q)
	if err != nil {
		return generic.Value{}, err
	}
	return generic.NormalizeNull(raw), nil
}

// ScalarRaw is Scalar without the zero default. found is false when the
// query returned no row; raw is nil for a NULL value.
func (e *Executor) ScalarRaw(ctx context.Context, q generic.Query) (raw any, found bool, err error) {
	err = e.run(ctx, "scalar", q, func(conn *sql.Conn, text string, args []any) error {
		var v any
		scanErr := conn.QueryRowContext(ctx, text, args...).Scan(&v)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		raw, found = generic.NewValue(v).Raw(), true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return raw, found, nil
}

// Rows returns every row in order; an empty result is an empty slice.
func (e *Executor) Rows(ctx context.Context, q generic.Query) ([]generic.Row, error) {
	var out []generic.Row
	err := e.run(ctx, "rows", q, func(conn *sql.Conn, text string, args []any) error {
		_, rows, err := query(ctx, conn, text, args)
		out = rows
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Table returns the result with column names from the SELECT list.
func (e *Executor) Table(ctx context.Context, q generic.Query, opts ...generic.TableOption) (*generic.Table, error) {
	o := generic.ApplyTableOptions(opts...)

	var t *generic.Table
	err := e.run(ctx, "table", q, func(conn *sql.Conn, text string, args []any) error {
		cols, rows, err := query(ctx, conn, text, args)
		if err != nil {
			return err
		}
		t = &generic.Table{Columns: cols, Rows: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(o.DateColumns) > 0 {
		if err := t.ParseDates(o.DateColumns...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Ping opens a connection and pings the database.
func (e *Executor) Ping(ctx context.Context) error {
	start := time.Now()
	db, conn, err := e.connect(ctx)
	if err != nil {
		metrics.ObserveQuery("ping", outcome(err), time.Since(start))
		return err
	}
	defer db.Close()
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		err = &generic.ConnectivityError{Driver: e.dialect.Driver, Err: err}
		metrics.ObserveQuery("ping", outcome(err), time.Since(start))
		return err
	}
	metrics.ObserveQuery("ping", metrics.OutcomeOK, time.Since(start))
	return nil
}

// =============================================================================
// CONNECTION SCOPE
// =============================================================================

func (e *Executor) run(ctx context.Context, op string, q generic.Query, fn func(conn *sql.Conn, text string, args []any) error) (err error) {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		metrics.ObserveQuery(op, outcome(err), d)
		if err != nil {
			e.log.Debug("query failed", zap.String("op", op), zap.Duration("took", d), zap.Error(err))
			return
		}
		e.log.Debug("query", zap.String("op", op), zap.Duration("took", d))
	}()

	text, args, err := q.Bind(e.dialect.Placeholder)
	if err != nil {
		return &generic.QueryError{Op: op, SQL: q.SQL, Err: err}
	}

	db, conn, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer conn.Close()

	if err := fn(conn, text, args); err != nil {
		return e.classify(op, text, err)
	}
	return nil
}

func (e *Executor) connect(ctx context.Context) (*sql.DB, *sql.Conn, error) {
	db, err := sql.Open(e.dialect.Driver, e.dsn)
	if err != nil {
		return nil, nil, &generic.ConnectivityError{Driver: e.dialect.Driver, Err: err}
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("connect: %w", ctxErr)
		}
		return nil, nil, &generic.ConnectivityError{Driver: e.dialect.Driver, Err: err}
	}
	return db, conn, nil
}

func (e *Executor) classify(op, text string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, driver.ErrBadConn):
		return &generic.ConnectivityError{Driver: e.dialect.Driver, Err: err}
	default:
		return &generic.QueryError{Op: op, SQL: text, Err: err}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case generic.IsConnectivity(err):
		return metrics.OutcomeConnectivity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeQueryError
	}
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func query(ctx context.Context, conn *sql.Conn, text string, args []any) ([]string, []generic.Row, error) {
	rows, err := conn.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	out := []generic.Row{}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, c := range cells {
			cells[i] = generic.NewValue(c).Raw()
		}
		out = append(out, generic.Row(cells))
	}
	return cols, out, rows.Err()
}
