package factory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/factory"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/internal/testdb"
	"github.com/whatscottcodes/paceutils/store/schema"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// aprilCalendar makes Q1 2024 the last quarter.
var aprilCalendar = generic.FixedCalendar(generic.NewDate(2024, 4, 15))

func newTestCatalog(t *testing.T) *factory.Registry {
	t.Helper()
	return factory.Catalog(testdb.New(t))
}

func newTestFactory(t *testing.T) *factory.ReportFactory {
	t.Helper()
	return factory.NewReportFactory(newTestCatalog(t), aprilCalendar)
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry_GetUnknown(t *testing.T) {
	reg := factory.NewRegistry()

	_, err := reg.Get("enrollment.nope")
	assert.ErrorIs(t, err, generic.ErrUnknownIndicator)
	assert.True(t, generic.IsNotFound(err))
}

func TestRegistry_RegisterValidates(t *testing.T) {
	reg := factory.NewRegistry()
	ok := factory.Definition{
		Name:   "test.ok",
		Kind:   factory.KindScalar,
		Scalar: func(context.Context, generic.Period) (float64, error) { return 1, nil },
	}
	require.NoError(t, reg.Register(ok))

	// Duplicate name
	assert.Error(t, reg.Register(ok))
	// Group kind without a group list
	assert.Error(t, reg.Register(factory.Definition{Name: "test.group", Kind: factory.KindGroup}))
	// Unknown kind
	assert.Error(t, reg.Register(factory.Definition{Name: "test.kind", Kind: "matrix"}))
}

func TestCatalog_ListSorted(t *testing.T) {
	reg := newTestCatalog(t)

	defs := reg.List()
	require.Equal(t, reg.Len(), len(defs))
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Name, defs[i].Name)
	}

	for _, name := range []string{
		"enrollment.census",
		"utilization.admissions.acute",
		"utilization.days.custodial",
		"incidents.per_100mm.falls",
		"quality.mortality_rate",
		"team.admissions.acute",
		"team.incidents.burns",
		"center.enrolled",
		"center.payer_percent.dual",
		"demographics.chronic_six_or_more_percent",
		"utilization.flagged_percent.acute.er",
		"utilization.nf_discharged_to_higher_loc",
	} {
		_, err := reg.Get(name)
		assert.NoError(t, err, name)
	}
}

func TestDefinition_Evaluate(t *testing.T) {
	reg := newTestCatalog(t)
	ctx := context.Background()

	census, err := reg.Get("enrollment.census")
	require.NoError(t, err)
	v, err := census.Evaluate(ctx, schema.DemoQ1)
	require.NoError(t, err)
	require.NotNil(t, v.Number)
	assert.Equal(t, 6.0, *v.Number)

	admissions, err := reg.Get("team.admissions.acute")
	require.NoError(t, err)
	v, err = admissions.Evaluate(ctx, schema.DemoQ1)
	require.NoError(t, err)
	require.NotNil(t, v.Table)
	assert.Equal(t, 2, v.Table.Len())
}

func TestDefinition_EvaluateWrapsName(t *testing.T) {
	boom := errors.New("boom")
	d := factory.Definition{
		Name:   "test.failing",
		Kind:   factory.KindScalar,
		Scalar: func(context.Context, generic.Period) (float64, error) { return 0, boom },
	}

	_, err := d.Evaluate(context.Background(), schema.DemoQ1)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "test.failing")
}

func TestDefinition_BuildSeries(t *testing.T) {
	reg := newTestCatalog(t)
	ctx := context.Background()

	admissions, err := reg.Get("utilization.admissions.acute")
	require.NoError(t, err)
	s, err := admissions.BuildSeries(ctx, schema.DemoQ1, generic.Monthly)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 1}, s.Series.Values())
	assert.Nil(t, s.GroupSeries)

	byTeam, err := reg.Get("team.admissions.acute")
	require.NoError(t, err)
	s, err = byTeam.BuildSeries(ctx, schema.DemoQ1, generic.Monthly)
	require.NoError(t, err)
	require.NotNil(t, s.GroupSeries)
	assert.Equal(t, []string{"central", "east", "north"}, s.GroupSeries.Columns)
	assert.Equal(t, []string{"Month", "central", "east", "north"}, s.Table().Columns)
}

func TestCatalog_ConditionsAndCenters(t *testing.T) {
	// GIVEN: The seeded catalog
	reg := newTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name string
		want float64
	}{
		{"demographics.chronic_at_least_one", 3},
		{"demographics.chronic_six_or_more_percent", 16.67},
		{"utilization.flagged.acute.er", 2},
		{"utilization.flagged_percent.acute.er", 50},
		{"utilization.flagged_per_100mm.acute.er", 14.29},
		{"utilization.nf_discharged_to_higher_loc", 1},
		{"utilization.nf_discharged_to_higher_loc_percent", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// WHEN: Evaluating over Q1 2024
			def, err := reg.Get(tt.name)
			require.NoError(t, err)
			v, err := def.Evaluate(ctx, schema.DemoQ1)
			require.NoError(t, err)

			// THEN: One number
			require.NotNil(t, v.Number)
			assert.Equal(t, tt.want, *v.Number)
		})
	}

	byCenter, err := reg.Get("center.enrolled")
	require.NoError(t, err)
	assert.Equal(t, factory.KindGroup, byCenter.Kind)
	s, err := byCenter.BuildSeries(ctx, schema.DemoQ1, generic.Monthly)
	require.NoError(t, err)
	require.NotNil(t, s.GroupSeries)
	assert.Equal(t, []string{"Month", "providence", "warwick"}, s.Table().Columns)
}

// =============================================================================
// REPORTS
// =============================================================================

const boardReport = `{
	"id": "board-q1",
	"name": "Board report",
	"items": [
		{"indicator": "enrollment.census", "window": "last_quarter"},
		{"indicator": "utilization.admissions.acute", "start": "2024-01-01", "end": "2024-03-31", "granularity": "monthly"},
		{"indicator": "team.ppts", "window": "last_quarter"}
	]
}`

func TestParseReport(t *testing.T) {
	f := newTestFactory(t)

	report, err := f.ParseReport(boardReport)
	require.NoError(t, err)

	assert.Equal(t, "board-q1", report.ID)
	require.Len(t, report.Items, 3)
	assert.Equal(t, schema.DemoQ1, report.Items[0].Period)
	assert.Equal(t, generic.WindowLastQuarter, report.Items[0].Window)
	assert.False(t, report.Items[0].IsSeries())
	assert.True(t, report.Items[1].IsSeries())
}

func TestParseReport_Invalid(t *testing.T) {
	f := newTestFactory(t)

	tests := []struct {
		name string
		json string
		is   error
	}{
		{"malformed", `{"id":`, generic.ErrInvalidReport},
		{"no id", `{"items":[{"indicator":"enrollment.census"}]}`, generic.ErrInvalidReport},
		{"no items", `{"id":"x"}`, generic.ErrInvalidReport},
		{"unknown indicator", `{"id":"x","items":[{"indicator":"enrollment.nope"}]}`, generic.ErrUnknownIndicator},
		{"unknown window", `{"id":"x","items":[{"indicator":"enrollment.census","window":"fortnight"}]}`, generic.ErrUnknownWindow},
		{"end before start", `{"id":"x","items":[{"indicator":"enrollment.census","start":"2024-03-01","end":"2024-01-01"}]}`, generic.ErrInvalidPeriod},
		{"bad granularity", `{"id":"x","items":[{"indicator":"enrollment.census","granularity":"weekly"}]}`, generic.ErrInvalidGranularity},
		{"series too long", `{"id":"x","items":[{"indicator":"enrollment.census","start":"1900-01-01","end":"2100-12-31","granularity":"monthly"}]}`, generic.ErrSeriesTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseReport(tt.json)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestParseReport_SeriesCap(t *testing.T) {
	// GIVEN: A series item covering two years of months
	// WHEN: Parsing it under caps of 12, 24 and none
	// THEN: Only the 12 cap rejects it; a single value item is never capped

	const series = `{"id":"x","items":[{"indicator":"enrollment.census","start":"2022-01-01","end":"2023-12-31","granularity":"monthly"}]}`
	const single = `{"id":"x","items":[{"indicator":"enrollment.census","start":"1900-01-01","end":"2100-12-31"}]}`

	_, err := newTestFactory(t).WithMaxSubPeriods(12).ParseReport(series)
	assert.ErrorIs(t, err, generic.ErrSeriesTooLong)
	assert.True(t, generic.IsClientError(err))

	_, err = newTestFactory(t).WithMaxSubPeriods(24).ParseReport(series)
	assert.NoError(t, err)

	_, err = newTestFactory(t).WithMaxSubPeriods(0).ParseReport(series)
	assert.NoError(t, err)

	_, err = newTestFactory(t).WithMaxSubPeriods(1).ParseReport(single)
	assert.NoError(t, err)
}

func TestReport_Run(t *testing.T) {
	f := newTestFactory(t)

	report, err := f.ParseReport(boardReport)
	require.NoError(t, err)

	result, err := report.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	census := result.Items[0]
	require.NotNil(t, census.Value)
	assert.Equal(t, 6.0, *census.Value.Number)
	assert.Equal(t, 1, census.Table().Len())

	admissions := result.Items[1]
	require.NotNil(t, admissions.Series)
	assert.Equal(t, 3, admissions.Table().Len())

	ppts := result.Items[2]
	assert.Equal(t, []string{"team", "participants"}, ppts.Table().Columns)
}

func TestReport_ToJSONKeepsWindows(t *testing.T) {
	f := newTestFactory(t)

	report, err := f.ParseReport(boardReport)
	require.NoError(t, err)

	rj := f.ToJSON(report)
	require.Len(t, rj.Items, 3)
	assert.Equal(t, "last_quarter", rj.Items[0].Window)
	assert.Equal(t, "2024-01-01", rj.Items[1].Start)
	assert.Equal(t, "monthly", rj.Items[1].Granularity)
}
