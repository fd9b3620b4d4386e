/*
Package plot builds monthly Month / Value frames from a single reporting
table for dashboard charts.

FRAME SHAPE:
  One row per calendar month in the period, oldest first. Months with no
  rows read as 0:

    Month       Value
    2024-01-01  3
    2024-02-01  0

SUMMARIES:
  count    rows dated in the month
  sum      sum of the value column
  avg      mean of the non-NULL value column
  pmpm     count per 100 members on that month's monthly_census
  percent  filtered count over the unfiltered count, x100

IDENTIFIERS:
  Table, date, value and filter columns come from closed allow-lists and
  are quoted into the SQL text. Filter values are always bound.
*/
package plot

import (
	"context"
	"fmt"
	"strings"

	"github.com/whatscottcodes/paceutils/generic"
)

// =============================================================================
// SUMMARY TYPES
// =============================================================================

type Summary string

const (
	Count   Summary = "count"
	Sum     Summary = "sum"
	Avg     Summary = "avg"
	PMPM    Summary = "pmpm"
	Percent Summary = "percent"
)

// Summaries lists every summary type in display order.
var Summaries = []Summary{Count, Sum, Avg, PMPM, Percent}

func ParseSummary(s string) (Summary, error) {
	want := Summary(strings.ToLower(strings.TrimSpace(s)))
	for _, sm := range Summaries {
		if sm == want {
			return sm, nil
		}
	}
	return "", fmt.Errorf("%w: summary %q", generic.ErrUnknownIdentifier, s)
}

func (s Summary) needsValue() bool { return s == Sum || s == Avg }

// =============================================================================
// ALLOW-LISTS
// =============================================================================

var stays = []string{"acute", "psych", "custodial", "respite", "skilled"}

var dateColumns = generic.NewAllowList(withStays(map[string][]string{
	"er_only":    {"admission_date"},
	"enrollment": {"enrollment_date", "disenrollment_date"},
	"falls":      {"date_time_occurred"},
	"med_errors": {"date_time_occurred"},
	"infections": {"date_time_occurred"},
	"wounds":     {"date_time_occurred", "date_healed"},
	"burns":      {"date_time_occurred"},
	"pneumo":     {"date_administered"},
	"influ":      {"date_administered"},
}, "admission_date", "discharge_date"))

var valueColumns = generic.NewAllowList(withStays(map[string][]string{
	"acute":      {"er"},
	"med_errors": {"responsibility_pharmacy", "responsibility_clinic", "responsibility_home_care", "responsibility_facility"},
	"burns":      {"assessment_rn"},
	"pneumo":     {"dose_status"},
	"influ":      {"dose_status"},
}, "los", "days_since_last_admission"))

var filterColumns = generic.NewAllowList(withStays(map[string][]string{
	"acute":      {"er", "principal_dx"},
	"skilled":    {"discharge_disposition"},
	"custodial":  {"discharge_disposition"},
	"er_only":    {"facility", "principal_dx"},
	"enrollment": {"disenroll_type", "disenroll_reason", "medicare", "medicaid"},
	"falls":      {"location", "severity"},
	"med_errors": {"severity", "responsibility_pharmacy", "responsibility_clinic", "responsibility_home_care", "responsibility_facility"},
	"infections": {"infection_type", "severity"},
	"wounds":     {"wound_type", "ulcer_stage", "severity"},
	"burns":      {"burn_degree", "assessment_rn", "severity"},
	"pneumo":     {"vacc_series", "dose_status"},
	"influ":      {"vacc_series", "dose_status"},
}, "facility", "admit_reason", "dow"))

// withStays adds cols to every stay table of m.
func withStays(m map[string][]string, cols ...string) map[string][]string {
	for _, t := range stays {
		m[t] = append(m[t], cols...)
	}
	return m
}

// Tables lists the tables a frame can be drawn from, sorted.
func Tables() []string { return dateColumns.Tables() }

// =============================================================================
// REQUEST
// =============================================================================

// Filter restricts rows to Column = Value.
type Filter struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// Request names the rows and the monthly summary of one frame. Value is
// required for sum and avg, Filter for percent.
type Request struct {
	Table   string  `json:"table"`
	Date    string  `json:"date_col"`
	Summary Summary `json:"summary"`
	Value   string  `json:"value_col,omitempty"`
	Filter  *Filter `json:"filter,omitempty"`
}

// Validate checks every identifier against the allow-lists.
func (r Request) Validate() error {
	if err := dateColumns.Columns(r.Table, r.Date); err != nil {
		return err
	}
	sm, err := ParseSummary(string(r.Summary))
	if err != nil {
		return err
	}
	if sm.needsValue() {
		if r.Value == "" {
			return fmt.Errorf("%w: %s needs a value column", generic.ErrInvalidArgument, sm)
		}
		if err := valueColumns.Columns(r.Table, r.Value); err != nil {
			return err
		}
	}
	if sm == Percent && r.Filter == nil {
		return fmt.Errorf("%w: percent needs a filter", generic.ErrInvalidArgument)
	}
	if r.Filter != nil {
		if err := filterColumns.Columns(r.Table, r.Filter.Column); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// FRAMES
// =============================================================================

type Plotter struct {
	exec generic.Executor
}

func New(exec generic.Executor) *Plotter {
	return &Plotter{exec: exec}
}

// Frame summarizes r's rows by the calendar month of the date column over
// the months of p.
func (pl *Plotter) Frame(ctx context.Context, r Request, p generic.Period) (generic.Series, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.Summary, _ = ParseSummary(string(r.Summary))
	months, err := generic.SubPeriods(p, generic.Monthly)
	if err != nil {
		return nil, err
	}

	switch r.Summary {
	case Percent:
		part, err := pl.buckets(ctx, r, p, r.Filter)
		if err != nil {
			return nil, err
		}
		whole, err := pl.buckets(ctx, r, p, nil)
		if err != nil {
			return nil, err
		}
		return frame(months, func(m string) float64 {
			return generic.Percent(float64(part[m].rows), float64(whole[m].rows), 2)
		}), nil

	case PMPM:
		counts, err := pl.buckets(ctx, r, p, r.Filter)
		if err != nil {
			return nil, err
		}
		census, err := pl.census(ctx, p)
		if err != nil {
			return nil, err
		}
		return frame(months, func(m string) float64 {
			return generic.Per100(float64(counts[m].rows), census[m], 2)
		}), nil
	}

	b, err := pl.buckets(ctx, r, p, r.Filter)
	if err != nil {
		return nil, err
	}
	return frame(months, func(m string) float64 {
		switch r.Summary {
		case Sum:
			return b[m].sum
		case Avg:
			return generic.Ratio(b[m].sum, float64(b[m].values), 2)
		}
		return float64(b[m].rows)
	}), nil
}

type bucket struct {
	rows   int
	values int
	sum    float64
}

// buckets reads the dated rows of r in p and folds them by month.
func (pl *Plotter) buckets(ctx context.Context, r Request, p generic.Period, f *Filter) (map[string]bucket, error) {
	value := "NULL"
	if r.Summary.needsValue() {
		value = generic.QuoteIdent(r.Value)
	}
	date := generic.QuoteIdent(r.Date)
	sql := `SELECT ` + date + ` AS day, ` + value + ` AS value
		FROM ` + generic.QuoteIdent(r.Table) + `
		WHERE ` + date + ` BETWEEN :start AND :end`
	var extra []generic.Params
	if f != nil {
		sql += ` AND ` + generic.QuoteIdent(f.Column) + ` = :filter`
		extra = append(extra, generic.Params{"filter": f.Value})
	}

	t, err := pl.exec.Table(ctx, generic.PeriodQuery(sql, p, extra...), generic.WithDateColumns("day"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]bucket)
	for _, row := range t.Rows {
		day, ok := row[0].(generic.Date)
		if !ok {
			continue
		}
		m := day.StartOfMonth().String()
		b := out[m]
		b.rows++
		if v := generic.NewValue(row[1]); !v.IsNull() {
			b.values++
			b.sum += v.Float64()
		}
		out[m] = b
	}
	return out, nil
}

// census reads monthly_census totals keyed by month.
func (pl *Plotter) census(ctx context.Context, p generic.Period) (map[string]float64, error) {
	t, err := pl.exec.Table(ctx, generic.PeriodQuery(`
		SELECT month, total FROM monthly_census
		WHERE month BETWEEN :start AND :end`, p), generic.WithDateColumns("month"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, t.Len())
	for _, row := range t.Rows {
		if m, ok := row[0].(generic.Date); ok {
			out[m.StartOfMonth().String()] = generic.NewValue(row[1]).Float64()
		}
	}
	return out, nil
}

// frame reads one value per month, keyed by the month's first day.
func frame(months []generic.Period, value func(month string) float64) generic.Series {
	out := make(generic.Series, 0, len(months))
	for _, m := range months {
		out = append(out, generic.Point{Label: m.Start, Value: value(m.Start.String())})
	}
	return out
}
