// Package quality implements outcome indicators: mortality, hospital-free
// participants, time to nursing facility placement and vaccination rates.
package quality

import (
	"context"

	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/utilization"
)

type Quality struct {
	exec        generic.Executor
	enrollment  *enrollment.Enrollment
	utilization *utilization.Utilization
}

func New(exec generic.Executor) *Quality {
	return &Quality{
		exec:        exec,
		enrollment:  enrollment.New(exec),
		utilization: utilization.New(exec),
	}
}

// =============================================================================
// MORTALITY
// =============================================================================

// Deaths counts disenrollments in p of type Deceased.
func (q *Quality) Deaths(ctx context.Context, p generic.Period) (int, error) {
	return q.enrollment.Deaths(ctx, p)
}

// MortalityRate is Deaths over the period census, as a ratio.
func (q *Quality) MortalityRate(ctx context.Context, p generic.Period) (float64, error) {
	deaths, err := q.Deaths(ctx, p)
	if err != nil {
		return 0, err
	}
	census, err := q.enrollment.CensusDuringPeriod(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(deaths), float64(census), 2), nil
}

// DeathsWithin30DaysOfDischarge counts deaths in p preceded by an acute
// discharge in the 30 days up to and including the death.
func (q *Quality) DeathsWithin30DaysOfDischarge(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, q.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment e
		WHERE e.disenroll_type = 'Deceased'
		AND e.disenrollment_date BETWEEN :start AND :end
		AND EXISTS (
			SELECT 1 FROM acute a
			WHERE a.member_id = e.member_id
			AND a.discharge_date BETWEEN date(e.disenrollment_date, '-30 days') AND e.disenrollment_date
		)`, p))
}

// MortalityWithin30DaysOfDischargeRate is DeathsWithin30DaysOfDischarge
// over all deaths in p.
func (q *Quality) MortalityWithin30DaysOfDischargeRate(ctx context.Context, p generic.Period) (float64, error) {
	within, err := q.DeathsWithin30DaysOfDischarge(ctx, p)
	if err != nil {
		return 0, err
	}
	deaths, err := q.Deaths(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(within), float64(deaths), 2), nil
}

// PercentOfDischargesWithMortalityIn30 is DeathsWithin30DaysOfDischarge as
// a percent of acute discharges in p.
func (q *Quality) PercentOfDischargesWithMortalityIn30(ctx context.Context, p generic.Period) (float64, error) {
	within, err := q.DeathsWithin30DaysOfDischarge(ctx, p)
	if err != nil {
		return 0, err
	}
	discharges, err := q.utilization.Discharges(ctx, p, utilization.Acute)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(within), float64(discharges), 2), nil
}

// =============================================================================
// HOSPITAL FREE
// =============================================================================

// NoHospAdmissionSinceEnrollment is the percent of participants enrolled
// during p who have never had an acute admission.
func (q *Quality) NoHospAdmissionSinceEnrollment(ctx context.Context, p generic.Period) (float64, error) {
	n, err := generic.Count(ctx, q.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment e
		WHERE NOT EXISTS (SELECT 1 FROM acute a WHERE a.member_id = e.member_id)
		AND `+enrollment.EnrolledDuring, p))
	if err != nil {
		return 0, err
	}
	return q.percentOfCensus(ctx, p, n)
}

// NoHospAdmissionLastYear is the percent of participants enrolled during p
// with no acute admission in the year before p.End.
func (q *Quality) NoHospAdmissionLastYear(ctx context.Context, p generic.Period) (float64, error) {
	n, err := generic.Count(ctx, q.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment e
		WHERE NOT EXISTS (
			SELECT 1 FROM acute a
			WHERE a.member_id = e.member_id
			AND a.admission_date >= date(:end, '-1 years')
		)
		AND `+enrollment.EnrolledDuring, p))
	if err != nil {
		return 0, err
	}
	return q.percentOfCensus(ctx, p, n)
}

func (q *Quality) percentOfCensus(ctx context.Context, p generic.Period, n int) (float64, error) {
	census, err := q.enrollment.CensusDuringPeriod(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(n), float64(census), 2), nil
}

// =============================================================================
// NURSING FACILITY
// =============================================================================

// AvgDaysUntilNFAdmission averages the days from enrollment to the first
// custodial admission for participants enrolled during p who have one.
func (q *Quality) AvgDaysUntilNFAdmission(ctx context.Context, p generic.Period) (float64, error) {
	return generic.Float(ctx, q.exec, generic.PeriodQuery(`
		SELECT ROUND(AVG(julianday(fca.first_admission) - julianday(e.enrollment_date)), 2)
		FROM (
			SELECT member_id, MIN(admission_date) AS first_admission
			FROM custodial
			GROUP BY member_id
		) fca
		JOIN enrollment e ON fca.member_id = e.member_id
		WHERE `+enrollment.EnrolledDuring, p))
}
