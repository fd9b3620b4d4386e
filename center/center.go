/*
Package center breaks enrollment and demographic indicators down by day
center.

RESULT SHAPE:
  Every by-center function returns a table with the center name first and
  one value column second, one row per center with data, sorted by center:

    center      enrolled
    Providence  1
    Warwick     1

  Rates divide center by center over the denominator's centers; a center
  missing from the numerator reads as 0.

CENTER MEMBERSHIP:
  A participant counts toward a center when the centers row overlaps the
  period, the same test team applies to team assignments:

    (centers.end_date >= :start OR centers.end_date IS NULL)
    AND centers.start_date <= :end

  A participant who moved centers during the period counts at both.

SEE ALSO:
  - team: the same breakdowns by care team
*/
package center

import (
	"context"

	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
)

// OnCenter is the center-row-overlaps-period test over alias centers.
const OnCenter = `(centers.end_date >= :start OR centers.end_date IS NULL)
	AND centers.start_date <= :end`

// GroupColumn is the first column of every by-center table.
const GroupColumn = "center"

type Center struct {
	exec generic.Executor
}

func New(exec generic.Executor) *Center {
	return &Center{exec: exec}
}

// Centers lists the centers with participants enrolled during p, sorted.
func (c *Center) Centers(ctx context.Context, p generic.Period) ([]string, error) {
	ppts, err := c.PptsAtCenter(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, ppts.Len())
	for _, r := range ppts.Rows {
		out = append(out, generic.NewValue(r[0]).String())
	}
	return out, nil
}

// Series builds one column per center in Centers(p).
func (c *Center) Series(ctx context.Context, fn generic.GroupIndicatorFunc, p generic.Period, g generic.Granularity, suffix string) (generic.GroupSeries, error) {
	centers, err := c.Centers(ctx, p)
	if err != nil {
		return generic.GroupSeries{}, err
	}
	return generic.BuildGroupSeries(ctx, fn, centers, p, g, generic.GroupOptions{
		GroupColumn: GroupColumn,
		Suffix:      suffix,
	})
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// grouped runs sql, which must select centers.center and one value and end
// in its WHERE clause; the center filter and grouping are appended.
func (c *Center) grouped(ctx context.Context, sql string, p generic.Period, extra ...generic.Params) (*generic.Table, error) {
	return c.exec.Table(ctx, generic.PeriodQuery(sql+`
		AND `+OnCenter+`
		GROUP BY centers.center
		ORDER BY centers.center`, p, extra...))
}

// enrollmentCount counts enrollment rows (alias e) at each center matching
// where.
func (c *Center) enrollmentCount(ctx context.Context, column, where string, p generic.Period) (*generic.Table, error) {
	return c.grouped(ctx, `
		SELECT centers.center, COUNT(DISTINCT e.member_id) AS `+column+`
		FROM enrollment e
		JOIN centers ON e.member_id = centers.member_id
		WHERE `+where, p)
}

func values(t *generic.Table) map[string]float64 {
	out := make(map[string]float64, t.Len())
	for _, r := range t.Rows {
		if len(r) < 2 || r[0] == nil {
			continue
		}
		out[generic.NewValue(r[0]).String()] = generic.NormalizeNull(r[1]).Float64()
	}
	return out
}

// combine computes fn(a, b) for every center in base, in base's order.
// Centers missing from a or b read as 0.
func combine(base, a, b *generic.Table, column string, fn func(a, b float64) float64) *generic.Table {
	as, bs := values(a), values(b)
	out := generic.NewTable(GroupColumn, column)
	for _, r := range base.Rows {
		name := generic.NewValue(r[0]).String()
		out.Append(name, fn(as[name], bs[name]))
	}
	return out
}

// divide is combine over den's centers.
func divide(num, den *generic.Table, column string, scale func(n, d float64) float64) *generic.Table {
	return combine(den, num, den, column, scale)
}

func percent(n, d float64) float64 { return generic.Percent(n, d, 2) }

// =============================================================================
// CENSUS
// =============================================================================

// PptsAtCenter counts participants enrolled during p by center.
// Columns: center, participants.
func (c *Center) PptsAtCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return c.enrollmentCount(ctx, "participants", enrollment.EnrolledDuring, p)
}

// CensusOnDateByCenter counts participants enrolled at each center on day.
func (c *Center) CensusOnDateByCenter(ctx context.Context, day generic.Date) (*generic.Table, error) {
	t, err := c.PptsAtCenter(ctx, generic.Period{Start: day, End: day})
	if err != nil {
		return nil, err
	}
	t.Columns[1] = "census"
	return t, nil
}

func (c *Center) CensusOnEndDateByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return c.CensusOnDateByCenter(ctx, p.End)
}

func (c *Center) EnrolledByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return c.enrollmentCount(ctx, "enrolled", `e.enrollment_date BETWEEN :start AND :end`, p)
}

func (c *Center) DisenrolledByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return c.enrollmentCount(ctx, "disenrolled", `e.disenrollment_date BETWEEN :start AND :end`, p)
}

func (c *Center) VoluntaryDisenrolledByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return c.enrollmentCount(ctx, "voluntary_disenrolled", `e.disenrollment_date BETWEEN :start AND :end
		AND e.disenroll_type = 'Voluntary'`, p)
}

func (c *Center) DeathsByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return c.enrollmentCount(ctx, "deaths", `e.disenrollment_date BETWEEN :start AND :end
		AND e.disenroll_type = 'Deceased'`, p)
}

// NetEnrollmentByCenter is enrolled minus disenrolled for every center in
// PptsAtCenter.
func (c *Center) NetEnrollmentByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	enrolled, err := c.EnrolledByCenter(ctx, p)
	if err != nil {
		return nil, err
	}
	disenrolled, err := c.DisenrolledByCenter(ctx, p)
	if err != nil {
		return nil, err
	}
	ppts, err := c.PptsAtCenter(ctx, p)
	if err != nil {
		return nil, err
	}
	return combine(ppts, enrolled, disenrolled, "net_enrollment", func(a, b float64) float64 { return a - b }), nil
}

// AvgYearsEnrolledByCenter measures open enrollments up to p.End.
func (c *Center) AvgYearsEnrolledByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return c.grouped(ctx, `
		SELECT centers.center,
			ROUND(AVG(julianday(COALESCE(e.disenrollment_date, :end)) - julianday(e.enrollment_date)) / 365.25, 2) AS avg_years_enrolled
		FROM enrollment e
		JOIN centers ON e.member_id = centers.member_id
		WHERE `+enrollment.EnrolledDuring, p)
}

// ChurnRateByCenter is disenrollments in p over the census on p.Start, as
// a percent.
func (c *Center) ChurnRateByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	disenrolled, err := c.DisenrolledByCenter(ctx, p)
	if err != nil {
		return nil, err
	}
	starting, err := c.CensusOnDateByCenter(ctx, p.Start)
	if err != nil {
		return nil, err
	}
	return divide(disenrolled, starting, "churn_rate", percent), nil
}

// GrowthRateByCenter compares the census on the first of the month after
// p.End with the census on p.Start, as a percent of the latter.
func (c *Center) GrowthRateByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	starting, err := c.CensusOnDateByCenter(ctx, p.Start)
	if err != nil {
		return nil, err
	}
	ending, err := c.CensusOnDateByCenter(ctx, p.End.StartOfMonth().AddMonths(1))
	if err != nil {
		return nil, err
	}
	return combine(starting, ending, starting, "growth_rate", func(end, start float64) float64 {
		return generic.Percent(end-start, start, 2)
	}), nil
}

// EnrollmentByTown counts participants enrolled at center during p by the
// city of their active address, largest first. Columns: city, participants.
func (c *Center) EnrollmentByTown(ctx context.Context, p generic.Period, center string) (*generic.Table, error) {
	return c.exec.Table(ctx, generic.PeriodQuery(`
		SELECT ad.city AS city, COUNT(DISTINCT e.member_id) AS participants
		FROM addresses ad
		JOIN enrollment e ON ad.member_id = e.member_id
		JOIN centers ON e.member_id = centers.member_id
		WHERE `+enrollment.EnrolledDuring+`
		AND ad.active = 1
		AND centers.center = :center
		AND `+OnCenter+`
		GROUP BY ad.city
		ORDER BY participants DESC, city`, p, generic.Params{"center": center}))
}

// =============================================================================
// PAYER
// =============================================================================

func (c *Center) EnrolledByPayerByCenter(ctx context.Context, p generic.Period, payer enrollment.PayerType) (*generic.Table, error) {
	if _, err := enrollment.ParsePayer(string(payer)); err != nil {
		return nil, err
	}
	return c.enrollmentCount(ctx, "enrolled", `e.enrollment_date BETWEEN :start AND :end
		AND `+payer.Filter(), p)
}

func (c *Center) DisenrolledByPayerByCenter(ctx context.Context, p generic.Period, payer enrollment.PayerType) (*generic.Table, error) {
	if _, err := enrollment.ParsePayer(string(payer)); err != nil {
		return nil, err
	}
	return c.enrollmentCount(ctx, "disenrolled", `e.disenrollment_date BETWEEN :start AND :end
		AND `+payer.Filter(), p)
}

// PayerCountByCenter counts participants enrolled during p with payer.
func (c *Center) PayerCountByCenter(ctx context.Context, p generic.Period, payer enrollment.PayerType) (*generic.Table, error) {
	if _, err := enrollment.ParsePayer(string(payer)); err != nil {
		return nil, err
	}
	return c.enrollmentCount(ctx, "participants", enrollment.EnrolledDuring+`
		AND `+payer.Filter(), p)
}

// PayerPercentByCenter is PayerCountByCenter over PptsAtCenter.
func (c *Center) PayerPercentByCenter(ctx context.Context, p generic.Period, payer enrollment.PayerType) (*generic.Table, error) {
	n, err := c.PayerCountByCenter(ctx, p, payer)
	if err != nil {
		return nil, err
	}
	return c.percentOfPpts(ctx, p, n, "percent_"+string(payer))
}

func (c *Center) percentOfPpts(ctx context.Context, p generic.Period, num *generic.Table, column string) (*generic.Table, error) {
	ppts, err := c.PptsAtCenter(ctx, p)
	if err != nil {
		return nil, err
	}
	return divide(num, ppts, column, percent), nil
}

// =============================================================================
// DEMOGRAPHICS
// =============================================================================

// AvgAgeByCenter is the mean age on p.End of participants enrolled during p.
func (c *Center) AvgAgeByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return c.grouped(ctx, `
		SELECT centers.center, ROUND(AVG((julianday(:end) - julianday(d.dob)) / 365.25), 2) AS age
		FROM demographics d
		JOIN enrollment e ON d.member_id = e.member_id
		JOIN centers ON e.member_id = centers.member_id
		WHERE `+enrollment.EnrolledDuring, p)
}

func (c *Center) demographicCount(ctx context.Context, p generic.Period, where string) (*generic.Table, error) {
	return c.grouped(ctx, `
		SELECT centers.center, COUNT(DISTINCT d.member_id) AS participants
		FROM demographics d
		JOIN enrollment e ON d.member_id = e.member_id
		JOIN centers ON e.member_id = centers.member_id
		WHERE `+enrollment.EnrolledDuring+`
		AND `+where, p)
}

func (c *Center) PercentPrimaryNonEnglishByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	n, err := c.demographicCount(ctx, p, `d.language != 'English'`)
	if err != nil {
		return nil, err
	}
	return c.percentOfPpts(ctx, p, n, "percent_non_english")
}

func (c *Center) PercentNonWhiteByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	n, err := c.demographicCount(ctx, p, `d.race != 'Caucasian/White'`)
	if err != nil {
		return nil, err
	}
	return c.percentOfPpts(ctx, p, n, "percent_non_white")
}

func (c *Center) PercentFemaleByCenter(ctx context.Context, p generic.Period) (*generic.Table, error) {
	n, err := c.demographicCount(ctx, p, `d.gender = 1`)
	if err != nil {
		return nil, err
	}
	return c.percentOfPpts(ctx, p, n, "percent_female")
}
