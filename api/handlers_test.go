/*
handlers_test.go - HTTP tests for the reporting API

Tests for:
- Indicator listing, evaluation and series
- Period resolution
- Report runs and exports
- Participant and aggregate lookups
- Plot frames
- Error status mapping
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/agg"
	"github.com/whatscottcodes/paceutils/api"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/internal/testdb"
	"github.com/whatscottcodes/paceutils/logging"
	"github.com/whatscottcodes/paceutils/store/schema"
	"github.com/whatscottcodes/paceutils/store/sqlite"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// aprilCalendar makes Q1 2024 the last quarter and March 2024 the last month.
var aprilCalendar = generic.FixedCalendar(generic.NewDate(2024, 4, 15))

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := api.NewHandler(testdb.New(t), aprilCalendar, logging.Nop())
	h.WithAgg(agg.New(testdb.Agg(t), agg.Config{Tables: schema.AggAllowList(), Calendar: aprilCalendar}))
	srv := httptest.NewServer(api.NewRouter(h, api.Options{}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// tableJSON mirrors generic.Table's wire form.
type tableJSON struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

const boardReport = `{
	"id": "board-q1",
	"name": "Board report",
	"items": [
		{"indicator": "enrollment.census", "window": "last_quarter"},
		{"indicator": "utilization.admissions.acute", "window": "last_quarter", "granularity": "monthly"},
		{"indicator": "team.admissions.acute", "window": "last_quarter", "granularity": "monthly"}
	]
}`

// =============================================================================
// INDICATORS
// =============================================================================

func TestListIndicators(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/indicators")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[[]api.IndicatorDTO](t, resp)
	assert.NotEmpty(t, all)

	resp = get(t, srv, "/api/indicators?prefix=team.")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	teams := decode[[]api.IndicatorDTO](t, resp)
	require.NotEmpty(t, teams)
	assert.Less(t, len(teams), len(all))
	for _, d := range teams {
		assert.Equal(t, "group", string(d.Kind), d.Name)
	}
}

func TestGetIndicator(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/indicators/enrollment.census?window=last_quarter")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v := decode[api.ValueDTO](t, resp)
	require.NotNil(t, v.Value)
	assert.Equal(t, 6.0, *v.Value)
	assert.Equal(t, api.PeriodDTO{Window: "last_quarter", Start: "2024-01-01", End: "2024-03-31"}, v.Period)
}

func TestGetIndicator_DefaultsToLastMonth(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/indicators/enrollment.census")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v := decode[api.ValueDTO](t, resp)
	assert.Equal(t, "2024-03-01", v.Period.Start)
	assert.Equal(t, "2024-03-31", v.Period.End)
}

func TestGetIndicator_GroupTable(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/indicators/team.ppts?start=2024-01-01&end=2024-03-31")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v struct {
		Table tableJSON `json:"table"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, []string{"team", "participants"}, v.Table.Columns)
	assert.Len(t, v.Table.Rows, 3)
}

func TestGetSeries(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/indicators/team.admissions.acute/series?window=last_quarter&granularity=monthly")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v struct {
		Granularity string    `json:"granularity"`
		Table       tableJSON `json:"table"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "monthly", v.Granularity)
	assert.Equal(t, []string{"Month", "central", "east", "north"}, v.Table.Columns)
	require.Len(t, v.Table.Rows, 3)
	assert.Equal(t, []any{"2024-01-01", 2.0, 0.0, 0.0}, v.Table.Rows[0])
}

func TestGetSeries_ConfiguredCap(t *testing.T) {
	// GIVEN: A handler capped at two sub-periods
	// WHEN: Requesting Q1 2024 monthly, then quarterly
	// THEN: Three months are rejected with 400, one quarter is served

	h := api.NewHandler(testdb.New(t), aprilCalendar, logging.Nop()).WithMaxSubPeriods(2)
	srv := httptest.NewServer(api.NewRouter(h, api.Options{}))
	t.Cleanup(srv.Close)

	resp := get(t, srv, "/api/indicators/enrollment.census/series?window=last_quarter")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decode[api.ErrorResponse](t, resp)
	assert.Contains(t, e.Details, "limit is 2")

	resp = get(t, srv, "/api/indicators/enrollment.census/series?window=last_quarter&granularity=quarterly")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIndicatorErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown indicator", "/api/indicators/enrollment.nope", http.StatusNotFound},
		{"unknown window", "/api/indicators/enrollment.census?window=fortnight", http.StatusBadRequest},
		{"end before start", "/api/indicators/enrollment.census?start=2024-03-01&end=2024-01-01", http.StatusBadRequest},
		{"bad date", "/api/indicators/enrollment.census?start=2024-13-01&end=2024-12-31", http.StatusBadRequest},
		{"bad granularity", "/api/indicators/enrollment.census/series?granularity=weekly", http.StatusBadRequest},
		{"series too long", "/api/indicators/enrollment.census/series?start=1900-01-01&end=2100-12-31", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, srv, tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			e := decode[api.ErrorResponse](t, resp)
			assert.NotEmpty(t, e.Details)
		})
	}
}

// =============================================================================
// PERIODS
// =============================================================================

func TestListPeriods(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/periods")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	periods := decode[[]api.PeriodDTO](t, resp)
	require.Len(t, periods, len(generic.Windows))
	assert.Contains(t, periods, api.PeriodDTO{Window: "last_quarter", Start: "2024-01-01", End: "2024-03-31"})
	assert.Contains(t, periods, api.PeriodDTO{Window: "last_month", Start: "2024-03-01", End: "2024-03-31"})
}

// =============================================================================
// REPORTS
// =============================================================================

func TestRunReport(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "/api/reports", boardReport)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		ID    string `json:"id"`
		Items []struct {
			Indicator string          `json:"indicator"`
			Result    json.RawMessage `json:"result"`
			Series    json.RawMessage `json:"series"`
		} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.Equal(t, "board-q1", result.ID)
	require.Len(t, result.Items, 3)
	assert.JSONEq(t, `{"value": 6}`, string(result.Items[0].Result))
	assert.Empty(t, result.Items[0].Series)
	assert.NotEmpty(t, result.Items[2].Series)
}

func TestRunReport_Invalid(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"id":`, http.StatusBadRequest},
		{"no items", `{"id":"x","items":[]}`, http.StatusBadRequest},
		{"unknown indicator", `{"id":"x","items":[{"indicator":"nope"}]}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, "/api/reports", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestExportReport_Workbook(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "/api/reports/export", boardReport)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "board-q1.xlsx")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		"enrollment.census",
		"utilization.admissions.acute",
		"team.admissions.acute",
	}, f.GetSheetList())

	rows, err := f.GetRows("utilization.admissions.acute")
	require.NoError(t, err)
	assert.Equal(t, []string{"Month", "Value"}, rows[0])
	assert.Equal(t, []string{"2024-01-01", "2"}, rows[1])
}

func TestExportReport_Parquet(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "/api/reports/export?format=parquet", boardReport)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.apache.parquet", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "board-q1.parquet")
}

func TestExportReport_UnknownFormat(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "/api/reports/export?format=csv", boardReport)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

func TestGetParticipant(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/participants/1?window=last_quarter")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v struct {
		First string    `json:"first"`
		Last  string    `json:"last"`
		Stays tableJSON `json:"stays"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "Alice", v.First)
	assert.Equal(t, "Anders", v.Last)
	assert.Len(t, v.Stays.Rows, 3)
}

func TestGetParticipant_Errors(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/participants/999").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/participants/abc").StatusCode)
}

// =============================================================================
// AGGREGATES
// =============================================================================

func TestAggPlot(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/agg/enrollment?columns=census,enrolled&window=last_quarter")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	table := decode[tableJSON](t, resp)
	assert.Equal(t, []string{"month", "census", "enrolled"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 200.0, table.Rows[0][1])
}

func TestAggTeamPlot(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/agg/enrollment/teams/census?window=last_quarter")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	table := decode[tableJSON](t, resp)
	assert.Equal(t, []string{"month", "None", "Central", "East", "North", "South"}, table.Columns)
}

func TestAggPlot_RejectsIdentifiers(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/agg/sqlite_master?columns=name").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/agg/enrollment").StatusCode)
}

func TestAggPlot_NotConfigured(t *testing.T) {
	h := api.NewHandler(testdb.New(t), aprilCalendar, logging.Nop())
	srv := httptest.NewServer(api.NewRouter(h, api.Options{}))
	defer srv.Close()

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/agg/enrollment?columns=census").StatusCode)
}

// =============================================================================
// PLOTS
// =============================================================================

func TestPlotFrame(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "/api/plot?window=last_quarter",
		`{"table": "falls", "date_col": "date_time_occurred", "summary": "percent",
		  "filter": {"column": "location", "value": "Home"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v struct {
		Period api.PeriodDTO `json:"period"`
		Table  tableJSON     `json:"table"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "2024-01-01", v.Period.Start)
	assert.Equal(t, []string{"Month", "Value"}, v.Table.Columns)
	assert.Equal(t, [][]any{
		{"2024-01-01", 50.0},
		{"2024-02-01", 100.0},
		{"2024-03-01", 50.0},
	}, v.Table.Rows)
}

func TestPlotFrame_Errors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed", "/api/plot", `{"table":`},
		{"unknown table", "/api/plot", `{"table": "sqlite_master", "date_col": "name", "summary": "count"}`},
		{"unknown summary", "/api/plot", `{"table": "falls", "date_col": "date_time_occurred", "summary": "median"}`},
		{"sum without value", "/api/plot", `{"table": "acute", "date_col": "admission_date", "summary": "sum"}`},
		{"series too long", "/api/plot?start=1900-01-01&end=2100-12-31", `{"table": "falls", "date_col": "date_time_occurred", "summary": "count"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			e := decode[api.ErrorResponse](t, resp)
			assert.NotEmpty(t, e.Details)
		})
	}
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, srv, "/metrics").StatusCode)
}

func TestHealth_MissingDatabase(t *testing.T) {
	// GIVEN: An executor pointed at a file that does not exist
	missing, err := sqlite.New(sqlite.Config{Path: filepath.Join(t.TempDir(), "nope.db")}, logging.Nop())
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(missing, aprilCalendar, nil), api.Options{}))
	defer srv.Close()

	// WHEN: Health is checked
	resp := get(t, srv, "/healthz")

	// THEN: The service reports unavailable
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
