package export_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/export"
	"github.com/whatscottcodes/paceutils/factory"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestSeries() generic.Series {
	return generic.Series{
		{Label: generic.NewDate(2024, 1, 1), Value: 6},
		{Label: generic.NewDate(2024, 2, 1), Value: 5.5},
	}
}

func newTestGroupSeries() generic.GroupSeries {
	return generic.GroupSeries{
		Columns: []string{"central", "east"},
		Labels:  []generic.Date{generic.NewDate(2024, 1, 1), generic.NewDate(2024, 2, 1)},
		Values:  [][]float64{{2, 0}, {1, 1}},
	}
}

func readWorkbook(t *testing.T, sheets []export.Sheet) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, export.WriteWorkbook(&buf, sheets))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// =============================================================================
// WORKBOOKS
// =============================================================================

func TestWorkbook_SeriesAndGroupSheets(t *testing.T) {
	f := readWorkbook(t, []export.Sheet{
		export.SeriesSheet("Census", newTestSeries()),
		export.GroupSeriesSheet("Admissions by team", newTestGroupSeries()),
	})

	assert.Equal(t, []string{"Census", "Admissions by team"}, f.GetSheetList())

	rows, err := f.GetRows("Census")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Month", "Value"},
		{"2024-01-01", "6"},
		{"2024-02-01", "5.5"},
	}, rows)

	rows, err = f.GetRows("Admissions by team")
	require.NoError(t, err)
	assert.Equal(t, []string{"Month", "central", "east"}, rows[0])
	assert.Equal(t, []string{"2024-02-01", "1", "1"}, rows[2])
}

func TestWorkbook_HeaderIsBold(t *testing.T) {
	f := readWorkbook(t, []export.Sheet{export.SeriesSheet("Census", newTestSeries())})

	styleID, err := f.GetCellStyle("Census", "B1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestWorkbook_SheetNames(t *testing.T) {
	long := strings.Repeat("x", 40)
	f := readWorkbook(t, []export.Sheet{
		export.TableSheet("utilization/admissions:acute", generic.NewTable("a")),
		export.TableSheet(long, generic.NewTable("a")),
		export.TableSheet(long, generic.NewTable("a")),
		export.TableSheet("", nil),
	})

	names := f.GetSheetList()
	require.Len(t, names, 4)
	assert.Equal(t, "utilization_admissions_acute", names[0])
	assert.Len(t, names[1], 31)
	assert.Len(t, names[2], 31)
	assert.NotEqual(t, names[1], names[2])
	assert.Equal(t, "Sheet4", names[3])
}

func TestWorkbook_NoSheets(t *testing.T) {
	_, err := export.NewWorkbook(nil)
	assert.Error(t, err)
}

func TestReportSheets(t *testing.T) {
	census := 6.0
	result := &factory.Result{ID: "r", Items: []factory.ItemResult{
		{Indicator: "enrollment.census", Value: &factory.Value{Number: &census}},
		{Indicator: "utilization.admissions.acute", Series: &factory.SeriesResult{Series: newTestSeries()}},
	}}

	f := readWorkbook(t, export.ReportSheets(result))
	assert.Equal(t, []string{"enrollment.census", "utilization.admissions.acute"}, f.GetSheetList())

	rows, err := f.GetRows("enrollment.census")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Value"}, {"6"}}, rows)
}

// =============================================================================
// PARQUET
// =============================================================================

func TestWriteSeriesParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.parquet")
	file, err := os.Create(path)
	require.NoError(t, err)

	rows := append(
		export.SeriesRows("enrollment.census", factory.SeriesResult{Series: newTestSeries()}),
		export.SeriesRows("team.admissions.acute", factory.SeriesResult{GroupSeries: ptr(newTestGroupSeries())})...,
	)
	require.NoError(t, export.WriteSeriesParquet(file, rows))
	require.NoError(t, file.Close())

	got, err := parquet.ReadFile[export.SeriesRow](path)
	require.NoError(t, err)
	require.Len(t, got, 6)

	assert.Equal(t, export.SeriesRow{Indicator: "enrollment.census", Column: "Value", Month: "2024-02-01", Value: 5.5}, got[1])
	assert.Equal(t, export.SeriesRow{Indicator: "team.admissions.acute", Column: "east", Month: "2024-02-01", Value: 1}, got[5])
}

func TestReportRows_SkipsSingleValues(t *testing.T) {
	census := 6.0
	result := &factory.Result{Items: []factory.ItemResult{
		{Indicator: "enrollment.census", Value: &factory.Value{Number: &census}},
		{Indicator: "team.admissions.acute", Series: &factory.SeriesResult{GroupSeries: ptr(newTestGroupSeries())}},
	}}

	rows := export.ReportRows(result)
	assert.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, "team.admissions.acute", r.Indicator)
	}
}

func ptr[T any](v T) *T { return &v }
