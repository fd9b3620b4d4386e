package team

import (
	"context"
	"sort"

	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/incidents"
	"github.com/whatscottcodes/paceutils/utilization"
)

// =============================================================================
// UTILIZATION
// =============================================================================

// stayEnd is the discharge date capped at :end; open stays end at :end.
const stayEnd = `CASE WHEN ut.discharge_date IS NULL OR ut.discharge_date > :end
	THEN :end ELSE ut.discharge_date END`

const staysJoin = `
	FROM {t} ut
	JOIN teams ON ut.member_id = teams.member_id`

// AdmissionsByTeam counts admissions in p. Columns: team, admissions.
func (tm *Team) AdmissionsByTeam(ctx context.Context, p generic.Period, t utilization.Table) (*generic.Table, error) {
	return tm.stays(ctx, t, `
		SELECT teams.team, COUNT(*) AS admissions`+staysJoin+`
		WHERE ut.admission_date BETWEEN :start AND :end`, p)
}

// DischargesByTeam counts discharges in p. Columns: team, discharges.
func (tm *Team) DischargesByTeam(ctx context.Context, p generic.Period, t utilization.Table) (*generic.Table, error) {
	return tm.stays(ctx, t, `
		SELECT teams.team, COUNT(*) AS discharges`+staysJoin+`
		WHERE ut.discharge_date BETWEEN :start AND :end`, p)
}

// ALOSByTeam averages los over stays discharged in p.
func (tm *Team) ALOSByTeam(ctx context.Context, p generic.Period, t utilization.Table) (*generic.Table, error) {
	return tm.stays(ctx, t, `
		SELECT teams.team, ROUND(AVG(ut.los), 2) AS alos`+staysJoin+`
		WHERE ut.discharge_date BETWEEN :start AND :end`, p)
}

// ReadmitsByTeam counts admissions in p within days of a previous one.
func (tm *Team) ReadmitsByTeam(ctx context.Context, p generic.Period, t utilization.Table, days int) (*generic.Table, error) {
	return tm.stays(ctx, t, `
		SELECT teams.team, COUNT(*) AS readmits`+staysJoin+`
		WHERE ut.admission_date BETWEEN :start AND :end
		AND ut.days_since_last_admission <= :days`, p, generic.Params{"days": days})
}

// PptsInUtilizationByTeam counts stays overlapping p.
func (tm *Team) PptsInUtilizationByTeam(ctx context.Context, p generic.Period, t utilization.Table) (*generic.Table, error) {
	return tm.stays(ctx, t, `
		SELECT teams.team, COUNT(*) AS ppts`+staysJoin+`
		WHERE `+utilization.InUtilization, p)
}

func (tm *Team) ERVisitsByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return tm.grouped(ctx, `
		SELECT teams.team, COUNT(*) AS er_only
		FROM er_only er
		JOIN teams ON er.member_id = teams.member_id
		WHERE er.admission_date BETWEEN :start AND :end`, p)
}

// DaysByTeam totals stay days falling inside p. Stays admitted in p count
// from admission; stays open at p.Start count from p.Start. Open stays and
// stays running past p.End stop at p.End. Columns: team, days.
func (tm *Team) DaysByTeam(ctx context.Context, p generic.Period, t utilization.Table) (*generic.Table, error) {
	during, err := tm.stays(ctx, t, `
		SELECT teams.team,
			SUM(julianday(`+stayEnd+`) - julianday(ut.admission_date)) AS days`+staysJoin+`
		WHERE ut.admission_date BETWEEN :start AND :end`, p)
	if err != nil {
		return nil, err
	}
	before, err := tm.stays(ctx, t, `
		SELECT teams.team,
			SUM(julianday(`+stayEnd+`) - julianday(:start)) AS days`+staysJoin+`
		WHERE (ut.discharge_date >= :start OR ut.discharge_date IS NULL)
		AND ut.admission_date < :start`, p)
	if err != nil {
		return nil, err
	}
	return outerSum(during, before, "days"), nil
}

// outerSum merges two team tables on team, summing values and filling 0.
func outerSum(a, b *generic.Table, column string) *generic.Table {
	totals := values(a)
	for team, v := range values(b) {
		totals[team] += v
	}
	teams := make([]string, 0, len(totals))
	for team := range totals {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	out := generic.NewTable(GroupColumn, column)
	for _, team := range teams {
		out.Append(team, generic.Round(totals[team], 2))
	}
	return out
}

// =============================================================================
// INCIDENTS
// =============================================================================

const reportsJoin = `
	FROM {t} it
	JOIN teams ON it.member_id = teams.member_id`

// TotalIncidentsByTeam counts incidents in p. Columns: team, incidents.
func (tm *Team) TotalIncidentsByTeam(ctx context.Context, p generic.Period, t incidents.Table) (*generic.Table, error) {
	return tm.reports(ctx, t, `
		SELECT teams.team, COUNT(*) AS incidents`+reportsJoin+`
		WHERE `+incidents.Occurred, p)
}

// PptsWithIncidentByTeam counts distinct participants with an incident in p.
func (tm *Team) PptsWithIncidentByTeam(ctx context.Context, p generic.Period, t incidents.Table) (*generic.Table, error) {
	return tm.reports(ctx, t, `
		SELECT teams.team, COUNT(DISTINCT it.member_id) AS ppts`+reportsJoin+`
		WHERE `+incidents.Occurred, p)
}

// IncidentsPer100PptsByTeam is TotalIncidentsByTeam per 100 participants on
// the team.
func (tm *Team) IncidentsPer100PptsByTeam(ctx context.Context, p generic.Period, t incidents.Table) (*generic.Table, error) {
	total, err := tm.TotalIncidentsByTeam(ctx, p, t)
	if err != nil {
		return nil, err
	}
	ppts, err := tm.PptsOnTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	return divide(total, ppts, "per_100_ppts", percent), nil
}

// PressureUlcerRateByTeam is pressure ulcers open during p per participant.
func (tm *Team) PressureUlcerRateByTeam(ctx context.Context, p generic.Period) (*generic.Table, error) {
	ulcers, err := tm.grouped(ctx, `
		SELECT teams.team, COUNT(*) AS pressure_ulcers
		FROM wounds w
		JOIN teams ON w.member_id = teams.member_id
		WHERE w.wound_type = 'Pressure Ulcer'
		AND (w.date_healed >= :start OR w.date_healed IS NULL)
		AND date(w.date_time_occurred) <= :end`, p)
	if err != nil {
		return nil, err
	}
	ppts, err := tm.PptsOnTeam(ctx, p)
	if err != nil {
		return nil, err
	}
	return divide(ulcers, ppts, "pressure_ulcer_rate", ratio), nil
}
