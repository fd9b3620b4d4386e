/*
Package utilization implements inpatient, nursing-facility and ER indicators.

TABLES:
  Every stay table shares the visit columns (member_id, admission_date,
  discharge_date, los, days_since_last_admission, facility, admit_reason,
  dow). The table is chosen with the closed Table enumeration; names are
  never taken from callers.

    Acute      Hospital inpatient stays (adds the er flag)
    Psych      Psychiatric inpatient stays
    Custodial  Long-term nursing facility stays
    Respite    Respite nursing facility stays
    Skilled    Skilled nursing (rehab) stays

  ER-only visits live in er_only and are reached through the ER functions.

WINDOWS:
  Admissions and discharges are counted by the date falling in the period.
  "In utilization" means the stay overlaps the period:

    (discharge_date >= :start OR discharge_date IS NULL)
    AND admission_date <= :end

SEE ALSO:
  - extras.go: Weekend admissions, long stays, top lists, readmit pairs
  - team: The same indicators grouped by team
*/
package utilization

import (
	"context"
	"fmt"
	"strings"

	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
)

// =============================================================================
// TABLES
// =============================================================================

type Table string

const (
	Acute     Table = "acute"
	Psych     Table = "psych"
	Custodial Table = "custodial"
	Respite   Table = "respite"
	Skilled   Table = "skilled"
)

var Tables = []Table{Acute, Psych, Custodial, Respite, Skilled}

// ParseTable returns ErrUnknownIdentifier for anything not in Tables.
func ParseTable(s string) (Table, error) {
	t := Table(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tables {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: utilization table %q", generic.ErrUnknownIdentifier, s)
}

func (t Table) valid() error {
	_, err := ParseTable(string(t))
	return err
}

// InUtilization is the stay-overlaps-period test, unaliased.
const InUtilization = `(discharge_date >= :start OR discharge_date IS NULL)
	AND admission_date <= :end`

// =============================================================================
// UTILIZATION
// =============================================================================

type Utilization struct {
	exec   generic.Executor
	census *enrollment.Enrollment
}

func New(exec generic.Executor) *Utilization {
	return &Utilization{exec: exec, census: enrollment.New(exec)}
}

// scalar runs SELECT expr FROM t WHERE where.
func (u *Utilization) scalar(ctx context.Context, t Table, expr, where string, p generic.Period, extra ...generic.Params) (generic.Value, error) {
	if err := t.valid(); err != nil {
		return generic.Value{}, err
	}
	return u.exec.Scalar(ctx, generic.PeriodQuery(
		"SELECT "+expr+" FROM "+string(t)+" WHERE "+where, p, extra...))
}

func (u *Utilization) count(ctx context.Context, t Table, where string, p generic.Period, extra ...generic.Params) (int, error) {
	v, err := u.scalar(ctx, t, "COUNT(*)", where, p, extra...)
	return v.Int(), err
}

func (u *Utilization) Admissions(ctx context.Context, p generic.Period, t Table) (int, error) {
	return u.count(ctx, t, "admission_date BETWEEN :start AND :end", p)
}

func (u *Utilization) Discharges(ctx context.Context, p generic.Period, t Table) (int, error) {
	return u.count(ctx, t, "discharge_date BETWEEN :start AND :end", p)
}

// ALOS is the average los of stays discharged in p.
func (u *Utilization) ALOS(ctx context.Context, p generic.Period, t Table) (float64, error) {
	v, err := u.scalar(ctx, t, "ROUND(AVG(los), 2)", "discharge_date BETWEEN :start AND :end", p)
	return v.Float64(), err
}

// AdmissionsPer100MemberMonths is admissions in p per 100 member months.
func (u *Utilization) AdmissionsPer100MemberMonths(ctx context.Context, p generic.Period, t Table) (float64, error) {
	n, err := u.Admissions(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return u.per100MM(ctx, p, float64(n))
}

// LOSPer100MemberMonths sums los over stays admitted in p, per 100 member
// months.
func (u *Utilization) LOSPer100MemberMonths(ctx context.Context, p generic.Period, t Table) (float64, error) {
	v, err := u.scalar(ctx, t, "SUM(los)", "admission_date BETWEEN :start AND :end", p)
	if err != nil {
		return 0, err
	}
	return u.per100MM(ctx, p, v.Float64())
}

func (u *Utilization) per100MM(ctx context.Context, p generic.Period, n float64) (float64, error) {
	mm, err := u.census.MemberMonths(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Per100(n, float64(mm), 2), nil
}

// =============================================================================
// READMISSIONS
// =============================================================================

// Readmits counts admissions in p that followed a discharge by at most days.
func (u *Utilization) Readmits(ctx context.Context, p generic.Period, t Table, days int) (int, error) {
	return u.count(ctx, t, `admission_date BETWEEN :start AND :end
		AND days_since_last_admission <= :days`, p, generic.Params{"days": days})
}

// ReadmitRate is Readmits over Admissions.
func (u *Utilization) ReadmitRate(ctx context.Context, p generic.Period, t Table, days int) (float64, error) {
	readmits, err := u.Readmits(ctx, p, t, days)
	if err != nil {
		return 0, err
	}
	admits, err := u.Admissions(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(readmits), float64(admits), 2), nil
}

// =============================================================================
// IN UTILIZATION
// =============================================================================

// PptsInUtilization counts stays overlapping p. A participant with two
// overlapping stays counts twice.
func (u *Utilization) PptsInUtilization(ctx context.Context, p generic.Period, t Table) (int, error) {
	return u.count(ctx, t, InUtilization, p)
}

func (u *Utilization) PptsInUtilizationPer100MM(ctx context.Context, p generic.Period, t Table) (float64, error) {
	n, err := u.PptsInUtilization(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return u.per100MM(ctx, p, float64(n))
}

// PptsInUtilizationPercent is PptsInUtilization as a percent of the period
// census.
func (u *Utilization) PptsInUtilizationPercent(ctx context.Context, p generic.Period, t Table) (float64, error) {
	n, err := u.PptsInUtilization(ctx, p, t)
	if err != nil {
		return 0, err
	}
	census, err := u.census.CensusDuringPeriod(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(n), float64(census), 2), nil
}

// UtilizationDays counts the days inside p covered by stays, both ends
// inclusive. Stays admitted before p count from :start; open stays and
// stays discharged after p count to :end.
func (u *Utilization) UtilizationDays(ctx context.Context, p generic.Period, t Table) (int, error) {
	if err := t.valid(); err != nil {
		return 0, err
	}
	tbl := string(t)
	return generic.Count(ctx, u.exec, generic.PeriodQuery(`
		WITH all_days AS (
			SELECT julianday(discharge_date) - julianday(admission_date) + 1 AS days
			FROM `+tbl+`
			WHERE admission_date BETWEEN :start AND :end
			AND discharge_date BETWEEN :start AND :end
			UNION ALL
			SELECT julianday(discharge_date) - julianday(:start) + 1
			FROM `+tbl+`
			WHERE admission_date < :start
			AND discharge_date BETWEEN :start AND :end
			UNION ALL
			SELECT julianday(:end) - julianday(admission_date) + 1
			FROM `+tbl+`
			WHERE admission_date BETWEEN :start AND :end
			AND (discharge_date > :end OR discharge_date IS NULL)
			UNION ALL
			SELECT julianday(:end) - julianday(:start) + 1
			FROM `+tbl+`
			WHERE admission_date < :start
			AND (discharge_date > :end OR discharge_date IS NULL)
		)
		SELECT SUM(days) FROM all_days`, p))
}

func (u *Utilization) DaysPer100MM(ctx context.Context, p generic.Period, t Table) (float64, error) {
	days, err := u.UtilizationDays(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return u.per100MM(ctx, p, float64(days))
}

// =============================================================================
// ER
// =============================================================================

// ERVisits counts ER visits that did not become an admission.
func (u *Utilization) ERVisits(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, u.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM er_only
		WHERE admission_date BETWEEN :start AND :end`, p))
}

// ERToInpatientRate is acute admissions through the ER over all ER visits,
// admitted or not.
func (u *Utilization) ERToInpatientRate(ctx context.Context, p generic.Period) (float64, error) {
	admitted, err := generic.Count(ctx, u.exec, generic.PeriodQuery(`
		SELECT SUM(er) FROM acute
		WHERE admission_date BETWEEN :start AND :end`, p))
	if err != nil {
		return 0, err
	}
	erOnly, err := u.ERVisits(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(admitted), float64(admitted+erOnly), 2), nil
}

// ALOSForERAdmissions is the average los of acute stays admitted in p
// through the ER.
func (u *Utilization) ALOSForERAdmissions(ctx context.Context, p generic.Period) (float64, error) {
	return generic.Float(ctx, u.exec, generic.PeriodQuery(`
		SELECT ROUND(AVG(los), 2) FROM acute
		WHERE er = 1
		AND admission_date BETWEEN :start AND :end`, p))
}
