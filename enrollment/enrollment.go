/*
Package enrollment implements census and enrollment-flow indicators.

PURPOSE:
  Counts participants in and out of the program over a period: census,
  member months, new enrollments, disenrollments, deaths, growth and churn,
  plus referral funnel indicators.

ENROLLED DURING A PERIOD:
  A participant counts toward a period when they enrolled on or before the
  end and had not disenrolled before the start:

    (disenrollment_date >= :start OR disenrollment_date IS NULL)
    AND enrollment_date <= :end

  EnrolledDuring is that filter over the alias e; other indicator packages
  reuse it.

RATES:
  Every ratio goes through generic.Ratio / generic.Percent, so a zero
  denominator yields 0 instead of an error.

USAGE:
  e := enrollment.New(exec)
  census, err := e.CensusDuringPeriod(ctx, period)
  growth, err := e.GrowthRate(ctx, period)

SEE ALSO:
  - payer.go: Enrollment flows by payer
  - referrals.go: Referral funnel
  - demographics: Percentages over the same census
*/
package enrollment

import (
	"context"

	"github.com/whatscottcodes/paceutils/generic"
)

// EnrolledDuring filters enrollment rows (alias e) to participants enrolled
// at any point in [:start, :end].
const EnrolledDuring = `(e.disenrollment_date >= :start OR e.disenrollment_date IS NULL)
	AND e.enrollment_date <= :end`

// Enrollment runs enrollment indicators against one executor.
type Enrollment struct {
	exec generic.Executor
}

func New(exec generic.Executor) *Enrollment {
	return &Enrollment{exec: exec}
}

// =============================================================================
// CENSUS
// =============================================================================

// CensusToday counts participants with no disenrollment date.
func (e *Enrollment) CensusToday(ctx context.Context) (int, error) {
	return generic.Count(ctx, e.exec, generic.NewQuery(`
		SELECT COUNT(*) FROM enrollment
		WHERE disenrollment_date IS NULL`, nil))
}

// CensusDuringPeriod counts participants enrolled at any point in p.
func (e *Enrollment) CensusDuringPeriod(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment e
		WHERE `+EnrolledDuring, p))
}

// CensusOnEndDate counts participants enrolled on p.End. p.Start is not
// used; both bounds of the test are the end date.
func (e *Enrollment) CensusOnEndDate(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, e.exec, generic.NewQuery(`
		SELECT COUNT(*) FROM enrollment
		WHERE enrollment_date <= :end
		AND (disenrollment_date >= :end OR disenrollment_date IS NULL)`,
		generic.Params{"end": p.End.String()}))
}

// MemberMonths sums the first-of-month census for the months in p.
func (e *Enrollment) MemberMonths(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT SUM(total) FROM monthly_census
		WHERE month BETWEEN :start AND :end`, p))
}

// CensusOn returns the first-of-month census recorded for the month
// containing d, or 0 when no row exists.
func (e *Enrollment) CensusOn(ctx context.Context, d generic.Date) (int, error) {
	return generic.Count(ctx, e.exec, generic.NewQuery(`
		SELECT total FROM monthly_census WHERE month = :month`,
		generic.Params{"month": d.StartOfMonth().String()}))
}

// =============================================================================
// FLOWS
// =============================================================================

// Enrolled counts enrollment dates falling in p.
func (e *Enrollment) Enrolled(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment
		WHERE enrollment_date BETWEEN :start AND :end`, p))
}

// Disenrolled counts disenrollment dates falling in p.
func (e *Enrollment) Disenrolled(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment
		WHERE disenrollment_date BETWEEN :start AND :end`, p))
}

func (e *Enrollment) Deaths(ctx context.Context, p generic.Period) (int, error) {
	return e.disenrolledAs(ctx, p, "Deceased")
}

func (e *Enrollment) VoluntaryDisenrolled(ctx context.Context, p generic.Period) (int, error) {
	return e.disenrolledAs(ctx, p, "Voluntary")
}

func (e *Enrollment) disenrolledAs(ctx context.Context, p generic.Period, kind string) (int, error) {
	return generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment
		WHERE disenrollment_date BETWEEN :start AND :end
		AND disenroll_type = :kind`, p, generic.Params{"kind": kind}))
}

// VoluntaryDisenrolledPercent is voluntary disenrollments as a percent of
// all disenrollments in p.
func (e *Enrollment) VoluntaryDisenrolledPercent(ctx context.Context, p generic.Period) (float64, error) {
	all, err := e.Disenrolled(ctx, p)
	if err != nil {
		return 0, err
	}
	vol, err := e.VoluntaryDisenrolled(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(vol), float64(all), 2), nil
}

// NetEnrollmentDuringPeriod is enrollments minus disenrollments in p.
func (e *Enrollment) NetEnrollmentDuringPeriod(ctx context.Context, p generic.Period) (int, error) {
	in, err := e.Enrolled(ctx, p)
	if err != nil {
		return 0, err
	}
	out, err := e.Disenrolled(ctx, p)
	if err != nil {
		return 0, err
	}
	return in - out, nil
}

// NetEnrollment is enrollments in p minus disenrollments in the period one
// month earlier. Disenrollment is effective the month after it is recorded.
func (e *Enrollment) NetEnrollment(ctx context.Context, p generic.Period) (int, error) {
	in, err := e.Enrolled(ctx, p)
	if err != nil {
		return 0, err
	}
	out, err := e.Disenrolled(ctx, p.PreviousMonth())
	if err != nil {
		return 0, err
	}
	return in - out, nil
}

// AvgYearsEnrolled averages time in the program, to the disenrollment date
// or to p.End, for participants enrolled during p.
func (e *Enrollment) AvgYearsEnrolled(ctx context.Context, p generic.Period) (float64, error) {
	return generic.Float(ctx, e.exec, generic.PeriodQuery(`
		SELECT ROUND(AVG(
			(julianday(COALESCE(e.disenrollment_date, :end)) - julianday(e.enrollment_date)) / 365.25
		), 2)
		FROM enrollment e
		WHERE `+EnrolledDuring, p))
}

// =============================================================================
// GROWTH AND CHURN
// =============================================================================

// GrowthRate compares the census on the first of p's starting month with
// the census one month earlier, as a percent change.
func (e *Enrollment) GrowthRate(ctx context.Context, p generic.Period) (float64, error) {
	month := p.Start.StartOfMonth()
	before, err := e.CensusOn(ctx, month.AddMonths(-1))
	if err != nil {
		return 0, err
	}
	after, err := e.CensusOn(ctx, month)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(after-before), float64(before), 2), nil
}

// ChurnRate is disenrollments in p as a percent of the census on the first
// of p's starting month.
func (e *Enrollment) ChurnRate(ctx context.Context, p generic.Period) (float64, error) {
	out, err := e.Disenrolled(ctx, p)
	if err != nil {
		return 0, err
	}
	start, err := e.CensusOn(ctx, p.Start)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(out), float64(start), 2), nil
}

// =============================================================================
// GEOGRAPHY
// =============================================================================

// EnrollmentByTown counts participants enrolled during p by active address
// city, largest first. Columns: "City/Town", "Number of Ppts".
func (e *Enrollment) EnrollmentByTown(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return e.exec.Table(ctx, generic.PeriodQuery(`
		SELECT ad.city AS "City/Town", COUNT(DISTINCT ad.member_id) AS "Number of Ppts"
		FROM addresses ad
		JOIN enrollment e ON ad.member_id = e.member_id
		WHERE ad.active = 1
		AND `+EnrolledDuring+`
		GROUP BY ad.city
		ORDER BY 2 DESC, 1`, p))
}

// AddressMapping lists name, full_address, lat and lon for current
// participants, or for disenrolled ones when current is false.
func (e *Enrollment) AddressMapping(ctx context.Context, current bool) (*generic.Table, error) {
	status := "e.disenrollment_date IS NULL"
	if !current {
		status = "e.disenrollment_date IS NOT NULL"
	}
	return e.exec.Table(ctx, generic.NewQuery(`
		SELECT (p.first || ' ' || p.last) AS name,
			(a.address || ', ' || a.city) AS full_address,
			a.lat, a.lon
		FROM addresses a
		JOIN ppts p ON a.member_id = p.member_id
		JOIN enrollment e ON p.member_id = e.member_id
		WHERE a.active = 1
		AND `+status+`
		ORDER BY a.member_id`, nil))
}
