package utilization

import (
	"context"
	"strings"

	"github.com/whatscottcodes/paceutils/generic"
)

var stayDates = generic.WithDateColumns("admission_date", "discharge_date")

// tableQuery runs a stay-table query after checking t. The SQL uses the
// placeholder {t} for the table name.
func (u *Utilization) tableQuery(ctx context.Context, t Table, sql string, p generic.Period, extra ...generic.Params) (*generic.Table, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	return u.exec.Table(ctx, generic.PeriodQuery(withTable(sql, t), p, extra...), stayDates)
}

func withTable(sql string, t Table) string {
	return strings.ReplaceAll(sql, "{t}", string(t))
}

// =============================================================================
// ADMISSION MIX
// =============================================================================

// UniqueAdmissions counts distinct participants admitted in p.
func (u *Utilization) UniqueAdmissions(ctx context.Context, p generic.Period, t Table) (int, error) {
	v, err := u.scalar(ctx, t, "COUNT(DISTINCT member_id)", "admission_date BETWEEN :start AND :end", p)
	return v.Int(), err
}

// WeekendAdmissions counts admissions in p on a Saturday or Sunday.
func (u *Utilization) WeekendAdmissions(ctx context.Context, p generic.Period, t Table) (int, error) {
	return u.count(ctx, t, `admission_date BETWEEN :start AND :end
		AND (dow = 'Saturday' OR dow = 'Sunday')`, p)
}

func (u *Utilization) WeekendAdmissionPercent(ctx context.Context, p generic.Period, t Table) (float64, error) {
	weekend, err := u.WeekendAdmissions(ctx, p, t)
	if err != nil {
		return 0, err
	}
	admits, err := u.Admissions(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(weekend), float64(admits), 2), nil
}

// =============================================================================
// LONG STAYS
// =============================================================================

// LOSOverCount counts stays discharged in p with los of at least x.
func (u *Utilization) LOSOverCount(ctx context.Context, p generic.Period, t Table, x int) (int, error) {
	return u.count(ctx, t, `discharge_date BETWEEN :start AND :end
		AND los >= :x`, p, generic.Params{"x": x})
}

// LOSOver lists stays overlapping p with los of at least x.
func (u *Utilization) LOSOver(ctx context.Context, p generic.Period, t Table, x int) (*generic.Table, error) {
	return u.tableQuery(ctx, t, `
		SELECT * FROM {t}
		WHERE `+InUtilization+`
		AND los >= :x
		ORDER BY admission_date`, p, generic.Params{"x": x})
}

// DaysOver lists stays overlapping p that have run at least x days, counted
// to the discharge date or to :end for open stays.
func (u *Utilization) DaysOver(ctx context.Context, p generic.Period, t Table, x int) (*generic.Table, error) {
	return u.tableQuery(ctx, t, `
		SELECT member_id, admission_date, discharge_date,
			COALESCE(julianday(discharge_date), julianday(:end)) - julianday(admission_date) AS days,
			facility
		FROM {t}
		WHERE `+InUtilization+`
		AND COALESCE(julianday(discharge_date), julianday(:end)) - julianday(admission_date) >= :x
		ORDER BY days DESC, member_id`, p, generic.Params{"x": x})
}

// =============================================================================
// TOP LISTS
// =============================================================================

// TopAdmitReasonsByLOS lists up to n acute stays discharged in p, longest
// first. Columns: admit_reason, los, facility, admission_date, visit_id.
func (u *Utilization) TopAdmitReasonsByLOS(ctx context.Context, p generic.Period, n int) (*generic.Table, error) {
	return u.exec.Table(ctx, generic.PeriodQuery(`
		SELECT admit_reason, los, facility, admission_date, visit_id
		FROM acute
		WHERE discharge_date BETWEEN :start AND :end
		AND admit_reason != 'None'
		ORDER BY los DESC, visit_id
		LIMIT :n`, p, generic.Params{"n": n}), generic.WithDateColumns("admission_date"))
}

// TopERUsers lists the ten participants with the most ER-only visits in p.
// Columns: member_id, last, first, visits.
func (u *Utilization) TopERUsers(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return u.exec.Table(ctx, generic.PeriodQuery(`
		SELECT er.member_id, pp.last, pp.first, COUNT(*) AS visits
		FROM er_only er
		JOIN ppts pp ON er.member_id = pp.member_id
		WHERE er.admission_date BETWEEN :start AND :end
		GROUP BY er.member_id, pp.last, pp.first
		ORDER BY visits DESC, er.member_id
		LIMIT 10`, p))
}

// =============================================================================
// READMIT PAIRS
// =============================================================================

// ReadmitAdmissions lists the admissions in p that are readmits within days.
func (u *Utilization) ReadmitAdmissions(ctx context.Context, p generic.Period, t Table, days int) (*generic.Table, error) {
	return u.tableQuery(ctx, t, `
		SELECT * FROM {t}
		WHERE admission_date BETWEEN :start AND :end
		AND days_since_last_admission <= :days
		ORDER BY admission_date`, p, generic.Params{"days": days})
}

// AdmissionsResultingInReadmit lists, for each readmit in p, the earlier
// stay whose discharge preceded it by days_since_last_admission.
func (u *Utilization) AdmissionsResultingInReadmit(ctx context.Context, p generic.Period, t Table, days int) (*generic.Table, error) {
	return u.tableQuery(ctx, t, `
		SELECT prev.member_id, prev.admission_date, prev.discharge_date,
			prev.facility, prev.los, prev.admit_reason
		FROM {t} r
		JOIN {t} prev ON prev.member_id = r.member_id
			AND julianday(r.admission_date) - julianday(prev.discharge_date) = r.days_since_last_admission
		WHERE r.admission_date BETWEEN :start AND :end
		AND r.days_since_last_admission <= :days
		ORDER BY prev.admission_date`, p, generic.Params{"days": days})
}
