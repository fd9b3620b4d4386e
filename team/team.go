/*
Package team breaks the catalog indicators down by care team.

RESULT SHAPE:
  Every by-team function returns a table with the team name first and one
  value column second, one row per team with data, sorted by team:

    team     admissions
    Central  3
    North    1

  Rates divide team by team over the denominator's teams; a team missing
  from the numerator reads as 0.

TEAM MEMBERSHIP:
  A participant counts toward a team when the team assignment overlaps the
  period:

    (teams.end_date >= :start OR teams.end_date IS NULL)
    AND teams.start_date <= :end

SERIES:
  Series feeds any by-team function to generic.BuildGroupSeries with the
  teams that have participants enrolled over the whole window as the
  column list.
*/
package team

import (
	"context"
	"strings"

	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/incidents"
	"github.com/whatscottcodes/paceutils/utilization"
)

// OnTeam is the team-assignment-overlaps-period test over alias teams.
const OnTeam = `(teams.end_date >= :start OR teams.end_date IS NULL)
	AND teams.start_date <= :end`

// GroupColumn is the first column of every by-team table.
const GroupColumn = "team"

type Team struct {
	exec generic.Executor
}

func New(exec generic.Executor) *Team {
	return &Team{exec: exec}
}

// Teams lists the teams with participants enrolled during p, sorted: the
// team column of PptsOnTeam. A team whose only assignments belong to
// disenrolled participants is not listed.
func (tm *Team) Teams(ctx context.Context, p generic.Period) ([]string, error) {
	ppts, err := tm.PptsOnTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, ppts.Len())
	for _, r := range ppts.Rows {
		out = append(out, generic.NewValue(r[0]).String())
	}
	return out, nil
}

// Series builds one column per team in Teams(p).
func (tm *Team) Series(ctx context.Context, fn generic.GroupIndicatorFunc, p generic.Period, g generic.Granularity, suffix string) (generic.GroupSeries, error) {
	teams, err := tm.Teams(ctx, p)
	if err != nil {
		return generic.GroupSeries{}, err
	}
	return generic.BuildGroupSeries(ctx, fn, teams, p, g, generic.GroupOptions{
		GroupColumn: GroupColumn,
		Suffix:      suffix,
	})
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// grouped runs sql, which must select team and one value and end in its
// WHERE clause; the team filter and grouping are appended.
func (tm *Team) grouped(ctx context.Context, sql string, p generic.Period, extra ...generic.Params) (*generic.Table, error) {
	return tm.exec.Table(ctx, generic.PeriodQuery(sql+`
		AND `+OnTeam+`
		GROUP BY teams.team
		ORDER BY teams.team`, p, extra...))
}

func (tm *Team) stays(ctx context.Context, t utilization.Table, sql string, p generic.Period, extra ...generic.Params) (*generic.Table, error) {
	if _, err := utilization.ParseTable(string(t)); err != nil {
		return nil, err
	}
	return tm.grouped(ctx, strings.ReplaceAll(sql, "{t}", string(t)), p, extra...)
}

func (tm *Team) reports(ctx context.Context, t incidents.Table, sql string, p generic.Period) (*generic.Table, error) {
	if _, err := incidents.ParseTable(string(t)); err != nil {
		return nil, err
	}
	return tm.grouped(ctx, strings.ReplaceAll(sql, "{t}", string(t)), p)
}

// values reads a two-column team table into a map.
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

// divide computes scale(num, den) for every team in den, in den's order.
func divide(num, den *generic.Table, column string, scale func(n, d float64) float64) *generic.Table {
	nums := values(num)
	out := generic.NewTable(GroupColumn, column)
	for _, r := range den.Rows {
		team := generic.NewValue(r[0]).String()
		out.Append(team, scale(nums[team], generic.NormalizeNull(r[1]).Float64()))
	}
	return out
}

func ratio(n, d float64) float64   { return generic.Ratio(n, d, 2) }
func percent(n, d float64) float64 { return generic.Percent(n, d, 2) }

// =============================================================================
// CENSUS
// =============================================================================

// PptsOnTeam counts participants enrolled during p by team.
// Columns: team, participants.
func (tm *Team) PptsOnTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return tm.grouped(ctx, `
		SELECT teams.team, COUNT(*) AS participants
		FROM teams
		JOIN enrollment e ON teams.member_id = e.member_id
		WHERE `+enrollment.EnrolledDuring, p)
}

// AvgAgeByTeam is the mean age on p.End of participants enrolled during p.
func (tm *Team) AvgAgeByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return tm.grouped(ctx, `
		SELECT teams.team, ROUND(AVG((julianday(:end) - julianday(d.dob)) / 365.25), 2) AS age
		FROM demographics d
		JOIN enrollment e ON d.member_id = e.member_id
		JOIN teams ON e.member_id = teams.member_id
		WHERE `+enrollment.EnrolledDuring, p)
}

func (tm *Team) PercentPrimaryNonEnglishByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return tm.grouped(ctx, `
		SELECT teams.team,
			ROUND(SUM(CASE WHEN d.language != 'English' THEN 1 ELSE 0 END) * 100.0 / COUNT(*), 2) AS percent_non_english
		FROM demographics d
		JOIN enrollment e ON d.member_id = e.member_id
		JOIN teams ON e.member_id = teams.member_id
		WHERE `+enrollment.EnrolledDuring, p)
}

// AvgYearsEnrolledByTeam measures open enrollments up to p.End.
func (tm *Team) AvgYearsEnrolledByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return tm.grouped(ctx, `
		SELECT teams.team,
			ROUND(AVG(julianday(COALESCE(e.disenrollment_date, :end)) - julianday(e.enrollment_date)) / 365.25, 2) AS avg_years_enrolled
		FROM enrollment e
		JOIN teams ON e.member_id = teams.member_id
		WHERE `+enrollment.EnrolledDuring, p)
}

// =============================================================================
// MORTALITY
// =============================================================================

// DeathsByTeam counts deaths in p. Columns: team, deaths.
func (tm *Team) DeathsByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return tm.grouped(ctx, `
		SELECT teams.team, COUNT(*) AS deaths
		FROM teams
		JOIN enrollment e ON teams.member_id = e.member_id
		WHERE e.disenroll_type = 'Deceased'
		AND e.disenrollment_date BETWEEN :start AND :end`, p)
}

// MortalityByTeam is DeathsByTeam over PptsOnTeam.
func (tm *Team) MortalityByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	deaths, err := tm.DeathsByTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	ppts, err := tm.PptsOnTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	return divide(deaths, ppts, "mortality_rate", ratio), nil
}

// DeathsWithin30DaysOfDischargeByTeam counts deaths in p preceded by an
// acute discharge in the 30 days before.
func (tm *Team) DeathsWithin30DaysOfDischargeByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return tm.grouped(ctx, `
		SELECT teams.team, COUNT(*) AS deaths_within_30_days
		FROM teams
		JOIN enrollment e ON teams.member_id = e.member_id
		WHERE e.disenroll_type = 'Deceased'
		AND e.disenrollment_date BETWEEN :start AND :end
		AND EXISTS (
			SELECT 1 FROM acute a
			WHERE a.member_id = e.member_id
			AND a.discharge_date BETWEEN date(e.disenrollment_date, '-30 days') AND e.disenrollment_date
		)`, p)
}

func (tm *Team) MortalityWithin30DaysOfDischargeRateByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	within, err := tm.DeathsWithin30DaysOfDischargeByTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	deaths, err := tm.DeathsByTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	return divide(within, deaths, "mortality_within_30_days_rate", ratio), nil
}

func (tm *Team) PercentOfDischargesWithMortalityIn30ByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	within, err := tm.DeathsWithin30DaysOfDischargeByTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	discharges, err := tm.DischargesByTeam(ctx, p, utilization.Acute)
	if err != nil {
		return nil, err
	}
	return divide(within, discharges, "percent_of_discharges", percent), nil
}

// NoHospAdmissionSinceEnrollmentByTeam is the percent of each team with no
// acute admission on record.
func (tm *Team) NoHospAdmissionSinceEnrollmentByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	none, err := tm.grouped(ctx, `
		SELECT teams.team, COUNT(*) AS no_admissions
		FROM enrollment e
		JOIN teams ON e.member_id = teams.member_id
		WHERE NOT EXISTS (SELECT 1 FROM acute a WHERE a.member_id = e.member_id)
		AND `+enrollment.EnrolledDuring, p)
	if err != nil {
		return nil, err
	}
	ppts, err := tm.PptsOnTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	return divide(none, ppts, "percent_no_admissions", percent), nil
}
