package plot_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/internal/testdb"
	"github.com/whatscottcodes/paceutils/plot"
	"github.com/whatscottcodes/paceutils/store/schema"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestPlotter(t *testing.T) *plot.Plotter {
	t.Helper()
	return plot.New(testdb.New(t))
}

func frame(t *testing.T, r plot.Request, p generic.Period) generic.Series {
	t.Helper()
	s, err := newTestPlotter(t).Frame(context.Background(), r, p)
	require.NoError(t, err)
	return s
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestFrame_Summaries(t *testing.T) {
	home := &plot.Filter{Column: "location", Value: "Home"}

	tests := []struct {
		name string
		req  plot.Request
		want []float64
	}{
		{
			name: "count",
			req:  plot.Request{Table: "falls", Date: "date_time_occurred", Summary: plot.Count},
			want: []float64{2, 1, 2},
		},
		{
			name: "count filtered",
			req:  plot.Request{Table: "acute", Date: "admission_date", Summary: plot.Count, Filter: &plot.Filter{Column: "er", Value: 1}},
			want: []float64{1, 1, 0},
		},
		{
			// Census 5, 5, 4.
			name: "pmpm",
			req:  plot.Request{Table: "falls", Date: "date_time_occurred", Summary: plot.PMPM},
			want: []float64{40, 20, 50},
		},
		{
			name: "percent",
			req:  plot.Request{Table: "falls", Date: "date_time_occurred", Summary: plot.Percent, Filter: home},
			want: []float64{50, 100, 50},
		},
		{
			// The March admission is still open, so its los is NULL.
			name: "sum",
			req:  plot.Request{Table: "acute", Date: "admission_date", Summary: plot.Sum, Value: "los"},
			want: []float64{12, 7, 0},
		},
		{
			name: "avg",
			req:  plot.Request{Table: "acute", Date: "admission_date", Summary: "AVG", Value: "los"},
			want: []float64{6, 7, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := frame(t, tt.req, schema.DemoQ1)
			assert.Equal(t, tt.want, s.Values())
		})
	}
}

func TestFrame_FillsEmptyMonths(t *testing.T) {
	// GIVEN: Falls on 2023-11-11 and twice in January, none in December
	p := generic.Period{Start: generic.NewDate(2023, 11, 1), End: generic.NewDate(2024, 1, 31)}

	// WHEN: Counting falls by month
	s := frame(t, plot.Request{Table: "falls", Date: "date_time_occurred", Summary: plot.Count}, p)

	// THEN: December reads as 0 and every month is labeled
	require.Len(t, s, 3)
	assert.Equal(t, "2023-11-01", s[0].Label.String())
	assert.Equal(t, "2023-12-01", s[1].Label.String())
	assert.Equal(t, "2024-01-01", s[2].Label.String())
	assert.Equal(t, []float64{1, 0, 2}, s.Values())

	table := s.Table()
	assert.Equal(t, []string{generic.LabelColumn, generic.ValueColumn}, table.Columns)
}

func TestFrame_FilterValueIsBound(t *testing.T) {
	s := frame(t, plot.Request{
		Table:   "falls",
		Date:    "date_time_occurred",
		Summary: plot.Count,
		Filter:  &plot.Filter{Column: "location", Value: "Home' OR '1'='1"},
	}, schema.DemoQ1)

	assert.Equal(t, []float64{0, 0, 0}, s.Values())
}

func TestFrame_EmptyDatabase(t *testing.T) {
	pl := plot.New(testdb.Empty(t))

	s, err := pl.Frame(context.Background(), plot.Request{Table: "falls", Date: "date_time_occurred", Summary: plot.PMPM}, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, s.Values())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  plot.Request
		want error
	}{
		{"unknown table", plot.Request{Table: "ppts", Date: "member_id", Summary: plot.Count}, generic.ErrUnknownIdentifier},
		{"not a date column", plot.Request{Table: "acute", Date: "los", Summary: plot.Count}, generic.ErrUnknownIdentifier},
		{"unknown summary", plot.Request{Table: "falls", Date: "date_time_occurred", Summary: "median"}, generic.ErrUnknownIdentifier},
		{"sum without value", plot.Request{Table: "acute", Date: "admission_date", Summary: plot.Sum}, generic.ErrInvalidArgument},
		{"text value column", plot.Request{Table: "acute", Date: "admission_date", Summary: plot.Avg, Value: "facility"}, generic.ErrUnknownIdentifier},
		{"percent without filter", plot.Request{Table: "falls", Date: "date_time_occurred", Summary: plot.Percent}, generic.ErrInvalidArgument},
		{"filter column", plot.Request{Table: "falls", Date: "date_time_occurred", Summary: plot.Count, Filter: &plot.Filter{Column: "member_id", Value: 1}}, generic.ErrUnknownIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, generic.IsClientError(err))

			_, err = newTestPlotter(t).Frame(context.Background(), tt.req, schema.DemoQ1)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseSummary(t *testing.T) {
	for _, s := range plot.Summaries {
		got, err := plot.ParseSummary(" " + string(s) + " ")
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := plot.ParseSummary("mean")
	assert.ErrorIs(t, err, generic.ErrUnknownIdentifier)
}

func TestTables(t *testing.T) {
	tables := plot.Tables()
	assert.Contains(t, tables, "acute")
	assert.Contains(t, tables, "falls")
	assert.NotContains(t, tables, "ppts")
	assert.IsIncreasing(t, tables)
}
