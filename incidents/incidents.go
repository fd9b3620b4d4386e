/*
Package incidents implements incident-report indicators for falls,
medication errors, infections, wounds and burns.

PURPOSE:
  Each incident table holds one row per reported incident with member_id,
  date_time_occurred and severity. The same counting indicators apply to
  every table; table-specific ones live in extras.go.

REPEATERS:
  A repeater is a participant with more than one incident of the type in the
  period. Rates over participants use the distinct participants with at least
  one incident as the denominator.

ADJUSTED COUNT:
  Participants whose incident count is at least mean + 3 standard deviations
  (population) of the per-participant counts are outliers; their incidents
  are removed from the total.

SEE ALSO:
  - extras.go: Wounds, infections, burns and medication error specifics
  - team: Incidents grouped by team
*/
package incidents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
)

// =============================================================================
// TABLES
// =============================================================================

type Table string

const (
	Falls      Table = "falls"
	MedErrors  Table = "med_errors"
	Infections Table = "infections"
	Wounds     Table = "wounds"
	Burns      Table = "burns"
)

var Tables = []Table{Falls, MedErrors, Infections, Wounds, Burns}

// ParseTable returns ErrUnknownIdentifier for anything not in Tables.
func ParseTable(s string) (Table, error) {
	t := Table(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tables {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: incident table %q", generic.ErrUnknownIdentifier, s)
}

func (t Table) valid() error {
	_, err := ParseTable(string(t))
	return err
}

// Occurred tests that the incident happened in [:start, :end]. The column
// may carry a time of day.
const Occurred = `date(date_time_occurred) BETWEEN :start AND :end`

// MemberCount is one participant's incident count.
type MemberCount struct {
	MemberID int `json:"member_id"`
	Count    int `json:"count"`
}

// =============================================================================
// INCIDENTS
// =============================================================================

type Incidents struct {
	exec   generic.Executor
	census *enrollment.Enrollment
}

func New(exec generic.Executor) *Incidents {
	return &Incidents{exec: exec, census: enrollment.New(exec)}
}

// perMember is the per-participant count subquery for t over p.
func perMember(t Table, having string) string {
	return `SELECT member_id, COUNT(*) AS num_incidents
		FROM ` + string(t) + `
		WHERE ` + Occurred + `
		GROUP BY member_id
		HAVING ` + having
}

func (in *Incidents) count(ctx context.Context, t Table, sql string, p generic.Period, extra ...generic.Params) (int, error) {
	if err := t.valid(); err != nil {
		return 0, err
	}
	return generic.Count(ctx, in.exec, generic.PeriodQuery(sql, p, extra...))
}

func (in *Incidents) Total(ctx context.Context, p generic.Period, t Table) (int, error) {
	return in.count(ctx, t, `SELECT COUNT(*) FROM `+string(t)+` WHERE `+Occurred, p)
}

// PerHundredMemberMonths is Total per 100 member months.
func (in *Incidents) PerHundredMemberMonths(ctx context.Context, p generic.Period, t Table) (float64, error) {
	total, err := in.Total(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return in.per100MM(ctx, p, total)
}

func (in *Incidents) per100MM(ctx context.Context, p generic.Period, n int) (float64, error) {
	mm, err := in.census.MemberMonths(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Per100(float64(n), float64(mm), 2), nil
}

// PptsWithIncident counts distinct participants with an incident in p.
func (in *Incidents) PptsWithIncident(ctx context.Context, p generic.Period, t Table) (int, error) {
	return in.count(ctx, t, `SELECT COUNT(DISTINCT member_id) FROM `+string(t)+` WHERE `+Occurred, p)
}

// =============================================================================
// REPEATERS
// =============================================================================

// Repeaters counts participants with more than one incident in p.
func (in *Incidents) Repeaters(ctx context.Context, p generic.Period, t Table) (int, error) {
	return in.count(ctx, t, `SELECT COUNT(*) FROM (`+perMember(t, "COUNT(*) > 1")+`) AS repeaters`, p)
}

// IncidentsByRepeaters sums the incidents of repeaters.
func (in *Incidents) IncidentsByRepeaters(ctx context.Context, p generic.Period, t Table) (int, error) {
	return in.count(ctx, t, `SELECT SUM(num_incidents) FROM (`+perMember(t, "COUNT(*) > 1")+`) AS repeaters`, p)
}

// PercentByRepeaters is IncidentsByRepeaters as a percent of Total.
func (in *Incidents) PercentByRepeaters(ctx context.Context, p generic.Period, t Table) (float64, error) {
	byRepeaters, err := in.IncidentsByRepeaters(ctx, p, t)
	if err != nil {
		return 0, err
	}
	total, err := in.Total(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(byRepeaters), float64(total), 2), nil
}

// RepeatPptsRate is Repeaters as a percent of PptsWithIncident.
func (in *Incidents) RepeatPptsRate(ctx context.Context, p generic.Period, t Table) (float64, error) {
	repeaters, err := in.Repeaters(ctx, p, t)
	if err != nil {
		return 0, err
	}
	ppts, err := in.PptsWithIncident(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(repeaters), float64(ppts), 2), nil
}

// PptsWithMultipleIncidents lists repeaters and their counts, by member_id.
func (in *Incidents) PptsWithMultipleIncidents(ctx context.Context, p generic.Period, t Table) ([]MemberCount, error) {
	return in.memberCounts(ctx, p, t, "COUNT(*) > 1")
}

func (in *Incidents) memberCounts(ctx context.Context, p generic.Period, t Table, having string) ([]MemberCount, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	rows, err := in.exec.Rows(ctx, generic.PeriodQuery(perMember(t, having)+` ORDER BY member_id`, p))
	if err != nil {
		return nil, err
	}
	out := make([]MemberCount, len(rows))
	for i, r := range rows {
		out[i] = MemberCount{
			MemberID: generic.NormalizeNull(r[0]).Int(),
			Count:    generic.NormalizeNull(r[1]).Int(),
		}
	}
	return out, nil
}

// =============================================================================
// AVERAGES
// =============================================================================

// AvgPerPpt is the mean incident count of participants with an incident.
func (in *Incidents) AvgPerPpt(ctx context.Context, p generic.Period, t Table) (float64, error) {
	if err := t.valid(); err != nil {
		return 0, err
	}
	avg, err := generic.Float(ctx, in.exec, generic.PeriodQuery(
		`SELECT AVG(num_incidents) FROM (`+perMember(t, "COUNT(*) > 0")+`) AS counts`, p))
	if err != nil {
		return 0, err
	}
	return generic.Round(avg, 2), nil
}

// PptsAboveAvg counts participants whose incident count exceeds the
// unrounded average.
func (in *Incidents) PptsAboveAvg(ctx context.Context, p generic.Period, t Table) (int, error) {
	if err := t.valid(); err != nil {
		return 0, err
	}
	avg, err := generic.Float(ctx, in.exec, generic.PeriodQuery(
		`SELECT AVG(num_incidents) FROM (`+perMember(t, "COUNT(*) > 0")+`) AS counts`, p))
	if err != nil {
		return 0, err
	}
	return in.count(ctx, t, `SELECT COUNT(*) FROM (`+perMember(t, "COUNT(*) * 1.0 > :avg")+`) AS above`,
		p, generic.Params{"avg": avg})
}

func (in *Incidents) PercentOfPptsOverAvg(ctx context.Context, p generic.Period, t Table) (float64, error) {
	above, err := in.PptsAboveAvg(ctx, p, t)
	if err != nil {
		return 0, err
	}
	ppts, err := in.PptsWithIncident(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(above), float64(ppts), 2), nil
}

// =============================================================================
// ADJUSTED
// =============================================================================

// AdjustedCount is Total minus the incidents of outlier participants.
func (in *Incidents) AdjustedCount(ctx context.Context, p generic.Period, t Table) (int, error) {
	members, err := in.memberCounts(ctx, p, t, "COUNT(*) > 0")
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	counts := make([]int, len(members))
	for i, m := range members {
		counts[i] = m.Count
	}
	total, err := in.Total(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return adjustedTotal(total, counts), nil
}

func (in *Incidents) AdjustedPer100MM(ctx context.Context, p generic.Period, t Table) (float64, error) {
	adjusted, err := in.AdjustedCount(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return in.per100MM(ctx, p, adjusted)
}

// adjustedTotal removes from total the counts at or above mean + 3 sd.
func adjustedTotal(total int, counts []int) int {
	if len(counts) == 0 {
		return total
	}
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(len(counts))
	var sq float64
	for _, c := range counts {
		d := float64(c) - mean
		sq += d * d
	}
	cutoff := mean + 3*math.Sqrt(sq/float64(len(counts)))

	outliers := 0
	for _, c := range counts {
		if float64(c) >= cutoff {
			outliers += c
		}
	}
	return total - outliers
}

// =============================================================================
// WITHOUT INCIDENT
// =============================================================================

// PercentWithoutIncidentOverall is the percent of participants enrolled
// during p who have never had an incident of the type.
func (in *Incidents) PercentWithoutIncidentOverall(ctx context.Context, p generic.Period, t Table) (float64, error) {
	n, err := in.count(ctx, t, `
		SELECT COUNT(*) FROM enrollment e
		WHERE NOT EXISTS (
			SELECT 1 FROM `+string(t)+` it WHERE it.member_id = e.member_id
		)
		AND `+enrollment.EnrolledDuring, p)
	if err != nil {
		return 0, err
	}
	return in.percentOfCensus(ctx, p, n)
}

// PercentWithoutIncidentInPeriod is the percent of participants enrolled
// during p with no incident of the type in p.
func (in *Incidents) PercentWithoutIncidentInPeriod(ctx context.Context, p generic.Period, t Table) (float64, error) {
	n, err := in.count(ctx, t, `
		SELECT COUNT(*) FROM enrollment e
		WHERE NOT EXISTS (
			SELECT 1 FROM `+string(t)+` it
			WHERE it.member_id = e.member_id
			AND date(it.date_time_occurred) BETWEEN :start AND :end
		)
		AND `+enrollment.EnrolledDuring, p)
	if err != nil {
		return 0, err
	}
	return in.percentOfCensus(ctx, p, n)
}

func (in *Incidents) percentOfCensus(ctx context.Context, p generic.Period, n int) (float64, error) {
	census, err := in.census.CensusDuringPeriod(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(n), float64(census), 2), nil
}

// =============================================================================
// SEVERITY
// =============================================================================

// MajorHarmOrDeath counts incidents in p with severity Major Harm or Death.
func (in *Incidents) MajorHarmOrDeath(ctx context.Context, p generic.Period, t Table) (int, error) {
	return in.count(ctx, t, `
		SELECT COUNT(*) FROM `+string(t)+`
		WHERE `+Occurred+`
		AND (severity = 'Major Harm' OR severity = 'Death')`, p)
}

func (in *Incidents) MajorHarmPercent(ctx context.Context, p generic.Period, t Table) (float64, error) {
	harm, err := in.MajorHarmOrDeath(ctx, p, t)
	if err != nil {
		return 0, err
	}
	total, err := in.Total(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(harm), float64(total), 2), nil
}
