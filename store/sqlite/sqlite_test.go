package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/internal/testdb"
	"github.com/whatscottcodes/paceutils/logging"
	"github.com/whatscottcodes/paceutils/store"
	"github.com/whatscottcodes/paceutils/store/schema"
	"github.com/whatscottcodes/paceutils/store/sqlite"
)

// =============================================================================
// SCALAR / ROWS / TABLE
// =============================================================================

func TestScalar_EmptyResultIsZero(t *testing.T) {
	// GIVEN: A migrated database with no rows
	exec := testdb.Empty(t)
	ctx := context.Background()

	// WHEN: Aggregating over an empty table
	v, err := exec.Scalar(ctx, generic.PeriodQuery(
		`SELECT ROUND(AVG(los), 2) FROM acute WHERE discharge_date BETWEEN :start AND :end`,
		schema.DemoQ1))

	// THEN: NULL reads as 0
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Float64())

	// AND: No row at all also reads as 0
	v, err = exec.Scalar(ctx, generic.NewQuery(`SELECT total FROM monthly_census WHERE month = :m`, generic.Params{"m": "2024-01-01"}))
	require.NoError(t, err)
	assert.Equal(t, 0, v.Int())
}

func TestScalar_CountsDemoCensus(t *testing.T) {
	exec := testdb.New(t)

	v, err := exec.Scalar(context.Background(), generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment
		WHERE (disenrollment_date >= :start OR disenrollment_date IS NULL)
		AND enrollment_date <= :end`, schema.DemoQ1))

	require.NoError(t, err)
	assert.Equal(t, 6, v.Int())
}

func TestRows_EmptySlice(t *testing.T) {
	exec := testdb.Empty(t)

	rows, err := exec.Rows(context.Background(), generic.PeriodQuery(
		`SELECT member_id, COUNT(*) FROM falls WHERE date_time_occurred BETWEEN :start AND :end GROUP BY member_id`,
		schema.DemoQ1))

	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestTable_ColumnsAndDates(t *testing.T) {
	exec := testdb.New(t)

	tbl, err := exec.Table(context.Background(),
		generic.PeriodQuery(`SELECT month, total FROM monthly_census WHERE month BETWEEN :start AND :end ORDER BY month`, schema.DemoQ1),
		generic.WithDateColumns("month"))

	require.NoError(t, err)
	assert.Equal(t, []string{"month", "total"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, generic.NewDate(2024, 1, 1), tbl.Rows[0][0])
	totals, err := tbl.Float64s("total")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 4}, totals)
}

func TestScalarRaw_DistinguishesNoRow(t *testing.T) {
	exec := testdb.New(t)
	ctx := context.Background()

	_, found, err := exec.ScalarRaw(ctx, generic.NewQuery(`SELECT first FROM ppts WHERE member_id = :id`, generic.Params{"id": 99}))
	require.NoError(t, err)
	assert.False(t, found)

	raw, found, err := exec.ScalarRaw(ctx, generic.NewQuery(`SELECT first FROM ppts WHERE member_id = :id`, generic.Params{"id": 1}))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Alice", raw)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrors_ParamMismatch(t *testing.T) {
	exec := testdb.Empty(t)

	_, err := exec.Scalar(context.Background(), generic.NewQuery(
		`SELECT COUNT(*) FROM acute WHERE admission_date BETWEEN :start AND :end`,
		generic.Params{"start": "2024-01-01"}))

	var qe *generic.QueryError
	require.ErrorAs(t, err, &qe)
	assert.ErrorIs(t, err, generic.ErrParamMismatch)
	assert.False(t, generic.IsConnectivity(err))
}

func TestErrors_BadSQLIsQueryError(t *testing.T) {
	exec := testdb.Empty(t)

	_, err := exec.Scalar(context.Background(), generic.NewQuery(`SELECT COUNT(*) FROM no_such_table`, nil))

	assert.ErrorIs(t, err, generic.ErrQuery)
	assert.False(t, generic.IsConnectivity(err))
}

func TestErrors_MissingFileIsConnectivity(t *testing.T) {
	// GIVEN: A path where no database exists
	exec, err := sqlite.New(sqlite.Config{Path: filepath.Join(t.TempDir(), "missing.db")}, logging.Nop())
	require.NoError(t, err)

	// WHEN: Running any query
	_, err = exec.Scalar(context.Background(), generic.NewQuery(`SELECT 1`, nil))

	// THEN: The failure is classified as connectivity, not query
	require.Error(t, err)
	assert.True(t, generic.IsConnectivity(err), "got %v", err)
	var ce *generic.ConnectivityError
	assert.True(t, errors.As(err, &ce))
}

func TestErrors_CanceledContext(t *testing.T) {
	exec := testdb.Empty(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Scalar(ctx, generic.NewQuery(`SELECT 1`, nil))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_RejectsMemory(t *testing.T) {
	_, err := sqlite.New(sqlite.Config{Path: ":memory:"}, nil)
	assert.Error(t, err)

	_, err = sqlite.New(sqlite.Config{}, nil)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	exec := testdb.Empty(t)
	assert.NoError(t, exec.Ping(context.Background()))

	missing, err := sqlite.New(sqlite.Config{Path: filepath.Join(t.TempDir(), "nope.db")}, nil)
	require.NoError(t, err)
	assert.True(t, generic.IsConnectivity(missing.Ping(context.Background())))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestExecutor_ConcurrentCalls(t *testing.T) {
	exec := testdb.New(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := exec.Scalar(ctx, generic.NewQuery(`SELECT COUNT(*) FROM ppts`, nil))
			if err == nil && v.Int() != 8 {
				err = errors.New("wrong count")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"pace.db", "file:pace.db?"},
		{"/data/reports#2024/pace.db", "file:/data/reports%232024/pace.db?"},
		{"/data/what?/pace.db", "file:/data/what%3F/pace.db?"},
		{"/data/100%/pace.db", "file:/data/100%25/pace.db?"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want+"_busy_timeout=5000&_foreign_keys=on&mode=rw", sqlite.DSN(tt.path, false))
		})
	}
	assert.Contains(t, sqlite.DSN("pace.db", true), "mode=rwc")
}

func TestDSN_ReservedCharactersInPath(t *testing.T) {
	// GIVEN: A directory whose name carries URI characters
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "reports#2024 q?1%")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "pace.db")

	// WHEN: Creating and migrating the database there
	db, err := sqlite.OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, schema.Migrate(ctx, db, store.SQLite, logging.Nop()))
	require.NoError(t, schema.SeedDemo(ctx, db, store.SQLite))
	require.NoError(t, db.Close())

	// THEN: The file sits at the exact path and the executor reads it
	_, err = os.Stat(path)
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	exec, err := sqlite.New(sqlite.Config{Path: path}, logging.Nop())
	require.NoError(t, err)
	census, err := exec.Scalar(ctx, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment e WHERE `+enrollment.EnrolledDuring, schema.DemoQ1))
	require.NoError(t, err)
	assert.Equal(t, 6, census.Int())

	// AND: A missing file behind the same characters is a connectivity error
	missing, err := sqlite.New(sqlite.Config{Path: filepath.Join(dir, "other#.db")}, logging.Nop())
	require.NoError(t, err)
	_, err = missing.Scalar(ctx, generic.NewQuery(`SELECT 1`, nil))
	assert.True(t, generic.IsConnectivity(err), "got %v", err)
}
