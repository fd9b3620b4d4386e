/*
series.go - Time-series looper

PURPOSE:
  Turns a single-period indicator into a series by calling it once per
  calendar month or calendar quarter of a window.

SUB-PERIODS:
  Labels are the month (or quarter) starts that fall inside [Start, End].
  Each sub-period runs from its label to the last day of its final month,
  so the trailing sub-period may extend past End:

    Window 2024-01-15 - 2024-03-10, monthly
      2024-02-01 - 2024-02-29
      2024-03-01 - 2024-03-31

FAILURE:
  The first indicator error aborts the build; no partial series is returned.

SEE ALSO:
  - calendar.go: SeriesWindow, the default window
  - team/series.go: Per-team series over the team list
*/
package generic

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// GRANULARITY
// =============================================================================

type Granularity string

const (
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
)

// ParseGranularity accepts monthly/quarterly and the MS/QS frequency codes.
// An empty string means monthly.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly", "month", "ms":
		return Monthly, nil
	case "quarterly", "quarter", "qs":
		return Quarterly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
}

// Months is the step size in calendar months.
func (g Granularity) Months() int {
	if g == Quarterly {
		return 3
	}
	return 1
}

func (g Granularity) valid() bool { return g == Monthly || g == Quarterly }

// =============================================================================
// INDICATORS
// =============================================================================

// IndicatorFunc computes one metric over a period. Extra arguments are
// bound by the caller with a closure.
type IndicatorFunc func(ctx context.Context, p Period) (float64, error)

// GroupIndicatorFunc computes one metric per group over a period. The table
// holds a group column and a value column.
type GroupIndicatorFunc func(ctx context.Context, p Period) (*Table, error)

type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Indicator adapts a typed indicator, e.g. one returning an int count.
func Indicator[T Number](fn func(ctx context.Context, p Period) (T, error)) IndicatorFunc {
	return func(ctx context.Context, p Period) (float64, error) {
		v, err := fn(ctx, p)
		if err != nil {
			return 0, err
		}
		return float64(v), nil
	}
}

// =============================================================================
// SERIES
// =============================================================================

// LabelColumn and ValueColumn name the columns of a series table.
const (
	LabelColumn = "Month"
	ValueColumn = "Value"
)

type Point struct {
	Label Date    `json:"month"`
	Value float64 `json:"value"`
}

// Series is ordered by label.
type Series []Point

func (s Series) Labels() []Date {
	out := make([]Date, len(s))
	for i, p := range s {
		out[i] = p.Label
	}
	return out
}

func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Table renders the series as Month / Value columns.
func (s Series) Table() *Table {
	t := NewTable(LabelColumn, ValueColumn)
	for _, p := range s {
		t.Append(p.Label, p.Value)
	}
	return t
}

// SubPeriods partitions p into calendar months or quarters.
func SubPeriods(p Period, g Granularity) ([]Period, error) {
	if !g.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGranularity, g)
	}
	if _, err := NewPeriod(p.Start, p.End); err != nil {
		return nil, err
	}

	step := g.Months()
	label := p.Start.StartOfMonth()
	if g == Quarterly {
		label = quarterStart(p.Start)
	}
	if label.Before(p.Start) {
		label = label.AddMonths(step)
	}

	var out []Period
	for ; label.BeforeOrEqual(p.End); label = label.AddMonths(step) {
		out = append(out, Period{Start: label, End: label.AddMonths(step - 1).EndOfMonth()})
	}
	return out, nil
}

// DefaultMaxSubPeriods bounds a series to ten years of months.
const DefaultMaxSubPeriods = 120

// CheckSeriesLength returns ErrSeriesTooLong when p splits into more than
// max sub-periods of g. A max of zero or less disables the check.
func CheckSeriesLength(p Period, g Granularity, max int) error {
	subs, err := SubPeriods(p, g)
	if err != nil {
		return err
	}
	if max > 0 && len(subs) > max {
		return fmt.Errorf("%w: %s to %s has %d %s periods, limit is %d",
			ErrSeriesTooLong, p.Start, p.End, len(subs), g, max)
	}
	return nil
}

// BuildSeries calls fn once per sub-period in chronological order.
// Non-finite results are recorded as 0.
func BuildSeries(ctx context.Context, fn IndicatorFunc, p Period, g Granularity) (Series, error) {
	subs, err := SubPeriods(p, g)
	if err != nil {
		return nil, err
	}

	series := make(Series, 0, len(subs))
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := fn(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", sub.Start, err)
		}
		series = append(series, Point{Label: sub.Start, Value: finite(v)})
	}
	return series, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// =============================================================================
// GROUP SERIES
// =============================================================================

// GroupOptions selects the group and value columns of each sub-period table
// and the suffix appended to every output column name. Empty column names
// mean the first and second column.
type GroupOptions struct {
	GroupColumn string
	ValueColumn string
	Suffix      string
}

// GroupSeries has one column per group and one row per label.
type GroupSeries struct {
	Columns []string    `json:"columns"`
	Labels  []Date      `json:"months"`
	Values  [][]float64 `json:"values"` // Values[label][column]
}

// Column returns the values of one output column.
func (s GroupSeries) Column(name string) ([]float64, error) {
	for j, c := range s.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(s.Values))
		for i, row := range s.Values {
			out[i] = row[j]
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// Table renders Month followed by one column per group.
func (s GroupSeries) Table() *Table {
	t := NewTable(append([]string{LabelColumn}, s.Columns...)...)
	for i, label := range s.Labels {
		row := make(Row, 0, len(s.Columns)+1)
		row = append(row, label)
		for _, v := range s.Values[i] {
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// BuildGroupSeries calls fn once per sub-period and left-merges each result
// onto groups. Output columns are the lower-cased group names plus the
// suffix; a group missing from a sub-period's result is 0.
func BuildGroupSeries(ctx context.Context, fn GroupIndicatorFunc, groups []string, p Period, g Granularity, opts GroupOptions) (GroupSeries, error) {
	subs, err := SubPeriods(p, g)
	if err != nil {
		return GroupSeries{}, err
	}

	out := GroupSeries{
		Columns: make([]string, len(groups)),
		Labels:  make([]Date, 0, len(subs)),
		Values:  make([][]float64, 0, len(subs)),
	}
	for i, grp := range groups {
		out.Columns[i] = strings.ToLower(grp) + opts.Suffix
	}

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return GroupSeries{}, err
		}
		t, err := fn(ctx, sub)
		if err != nil {
			return GroupSeries{}, fmt.Errorf("series %s: %w", sub.Start, err)
		}
		byGroup, err := groupValues(t, opts)
		if err != nil {
			return GroupSeries{}, err
		}
		row := make([]float64, len(groups))
		for i, grp := range groups {
			row[i] = byGroup[grp]
		}
		out.Labels = append(out.Labels, sub.Start)
		out.Values = append(out.Values, row)
	}
	return out, nil
}

func groupValues(t *Table, opts GroupOptions) (map[string]float64, error) {
	out := make(map[string]float64)
	if t == nil || len(t.Columns) == 0 {
		return out, nil
	}

	gi, vi := 0, 1
	var err error
	if opts.GroupColumn != "" {
		if gi, err = t.ColumnIndex(opts.GroupColumn); err != nil {
			return nil, err
		}
	}
	if opts.ValueColumn != "" {
		if vi, err = t.ColumnIndex(opts.ValueColumn); err != nil {
			return nil, err
		}
	}
	if vi >= len(t.Columns) {
		return nil, fmt.Errorf("%w: table has no value column", ErrColumnNotFound)
	}

	for _, r := range t.Rows {
		if r[gi] == nil {
			continue
		}
		out[NewValue(r[gi]).String()] = finite(NormalizeNull(r[vi]).Float64())
	}
	return out, nil
}
