package quality

import (
	"context"

	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
)

// Pneumococcal vaccination applies to participants 65 and over on p.End.
// Influenza vaccination applies to everyone enrolled and is counted from the
// start of the flu season containing p.Start.

const (
	PCV13 = "PCV 13"
	PPSV23 = "Pneumococcal 23"
)

const over65 = `((julianday(:end) - julianday(d.dob)) / 365.25) >= 65`

// FluSeasonStart is September 1 of the season p.Start falls in. Seasons run
// September through March, so January to March belong to the previous
// year's season.
func FluSeasonStart(p generic.Period) generic.Date {
	year := p.Start.Year()
	if p.Start.Month() < 4 {
		year--
	}
	return generic.NewDate(year, 9, 1)
}

var vaccineDates = generic.WithDateColumns("enrollment_date")

// eligiblePneumo selects participants enrolled during p and 65 or older.
const eligiblePneumo = `
	FROM enrollment e
	JOIN ppts pp ON e.member_id = pp.member_id
	JOIN demographics d ON e.member_id = d.member_id
	WHERE ` + over65 + `
	AND ` + enrollment.EnrolledDuring

const pneumoColumns = `SELECT e.member_id, pp.last, pp.first, e.enrollment_date,
	ROUND((julianday(:end) - julianday(d.dob)) / 365.25, 1) AS age`

// =============================================================================
// PNEUMOCOCCAL
// =============================================================================

// PneumoVaccinated counts eligible participants who received any
// pneumococcal dose.
func (q *Quality) PneumoVaccinated(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, q.exec, generic.PeriodQuery(`
		SELECT COUNT(DISTINCT e.member_id)`+eligiblePneumo+`
		AND e.member_id IN (SELECT member_id FROM pneumo WHERE dose_status = 1)`, p))
}

// PneumoRefused counts eligible participants who refused and have received
// no pneumococcal dose.
func (q *Quality) PneumoRefused(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, q.exec, generic.PeriodQuery(`
		SELECT COUNT(DISTINCT e.member_id)`+eligiblePneumo+`
		AND e.member_id IN (SELECT member_id FROM pneumo WHERE dose_status = 0)
		AND e.member_id NOT IN (SELECT member_id FROM pneumo WHERE dose_status = 1)`, p))
}

// PneumoRate is vaccinated plus refused over eligible participants.
func (q *Quality) PneumoRate(ctx context.Context, p generic.Period) (float64, error) {
	vaccinated, err := q.PneumoVaccinated(ctx, p)
	if err != nil {
		return 0, err
	}
	refused, err := q.PneumoRefused(ctx, p)
	if err != nil {
		return 0, err
	}
	eligible, err := generic.Count(ctx, q.exec, generic.PeriodQuery(
		`SELECT COUNT(DISTINCT e.member_id)`+eligiblePneumo, p))
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(vaccinated+refused), float64(eligible), 2), nil
}

// NeedVaccine lists eligible participants who have not received series.
func (q *Quality) NeedVaccine(ctx context.Context, p generic.Period, series string) (*generic.Table, error) {
	return q.exec.Table(ctx, generic.PeriodQuery(pneumoColumns+eligiblePneumo+`
		AND e.member_id NOT IN (
			SELECT member_id FROM pneumo
			WHERE vacc_series = :series AND dose_status = 1
		)
		ORDER BY e.member_id`, p, generic.Params{"series": series}), vaccineDates)
}

// NeedPCV13Only lists eligible participants who have PPSV23 but not PCV13.
func (q *Quality) NeedPCV13Only(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return q.exec.Table(ctx, generic.PeriodQuery(pneumoColumns+eligiblePneumo+`
		AND e.member_id NOT IN (
			SELECT member_id FROM pneumo WHERE vacc_series = :pcv AND dose_status = 1
		)
		AND e.member_id IN (
			SELECT member_id FROM pneumo WHERE vacc_series = :ppsv AND dose_status = 1
		)
		ORDER BY e.member_id`, p, generic.Params{"pcv": PCV13, "ppsv": PPSV23}), vaccineDates)
}

// NoPneumoAction lists eligible participants with no pneumococcal record.
func (q *Quality) NoPneumoAction(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return q.exec.Table(ctx, generic.PeriodQuery(pneumoColumns+eligiblePneumo+`
		AND e.member_id NOT IN (SELECT member_id FROM pneumo)
		ORDER BY e.member_id`, p), vaccineDates)
}

// =============================================================================
// INFLUENZA
// =============================================================================

func (q *Quality) influCount(ctx context.Context, p generic.Period, status int) (int, error) {
	return generic.Count(ctx, q.exec, generic.PeriodQuery(`
		SELECT COUNT(DISTINCT i.member_id)
		FROM influ i
		JOIN enrollment e ON i.member_id = e.member_id
		WHERE `+enrollment.EnrolledDuring+`
		AND date(i.date_administered) >= :season
		AND i.dose_status = :status`, p,
		generic.Params{"season": FluSeasonStart(p).String(), "status": status}))
}

// InfluVaccinated counts participants enrolled during p vaccinated this
// flu season.
func (q *Quality) InfluVaccinated(ctx context.Context, p generic.Period) (int, error) {
	return q.influCount(ctx, p, 1)
}

func (q *Quality) InfluRefused(ctx context.Context, p generic.Period) (int, error) {
	return q.influCount(ctx, p, 0)
}

// InfluRate is vaccinated plus refused over the period census.
func (q *Quality) InfluRate(ctx context.Context, p generic.Period) (float64, error) {
	vaccinated, err := q.InfluVaccinated(ctx, p)
	if err != nil {
		return 0, err
	}
	refused, err := q.InfluRefused(ctx, p)
	if err != nil {
		return 0, err
	}
	census, err := q.enrollment.CensusDuringPeriod(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(vaccinated+refused), float64(census), 2), nil
}

// NeedInfluenza lists participants enrolled during p with no influenza
// record this flu season.
func (q *Quality) NeedInfluenza(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return q.exec.Table(ctx, generic.PeriodQuery(`
		SELECT e.member_id, pp.last, pp.first, e.enrollment_date
		FROM enrollment e
		JOIN ppts pp ON e.member_id = pp.member_id
		WHERE `+enrollment.EnrolledDuring+`
		AND e.member_id NOT IN (
			SELECT member_id FROM influ
			WHERE date(date_administered) >= :season
		)
		ORDER BY e.member_id`, p, generic.Params{"season": FluSeasonStart(p).String()}), vaccineDates)
}
