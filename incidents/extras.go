package incidents

import (
	"context"
	"sort"

	"github.com/whatscottcodes/paceutils/generic"
)

// =============================================================================
// WOUNDS
// =============================================================================

// WoundsAboveStage1 counts wounds in p at stage 2 or higher, or unstageable.
func (in *Incidents) WoundsAboveStage1(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, in.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM wounds
		WHERE `+Occurred+`
		AND ulcer_stage IN ('Stage 2', 'Stage 3', 'Stage 4', 'Unstageable')`, p))
}

func (in *Incidents) UnstageableWounds(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, in.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM wounds
		WHERE `+Occurred+`
		AND ulcer_stage = 'Unstageable'`, p))
}

// UnstageableWoundRate is UnstageableWounds over all wounds in p, as a ratio.
func (in *Incidents) UnstageableWoundRate(ctx context.Context, p generic.Period) (float64, error) {
	n, err := in.UnstageableWounds(ctx, p)
	if err != nil {
		return 0, err
	}
	total, err := in.Total(ctx, p, Wounds)
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(n), float64(total), 2), nil
}

// PressureUlcers counts pressure ulcers open at any point in p.
func (in *Incidents) PressureUlcers(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, in.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM wounds
		WHERE wound_type = 'Pressure Ulcer'
		AND (date_healed >= :start OR date_healed IS NULL)
		AND date(date_time_occurred) <= :end`, p))
}

func (in *Incidents) PressureUlcerPer100MM(ctx context.Context, p generic.Period) (float64, error) {
	n, err := in.PressureUlcers(ctx, p)
	if err != nil {
		return 0, err
	}
	return in.per100MM(ctx, p, n)
}

// AvgWoundHealingDays averages days from occurrence to healing for wounds
// healed in p.
func (in *Incidents) AvgWoundHealingDays(ctx context.Context, p generic.Period) (float64, error) {
	return generic.Float(ctx, in.exec, generic.PeriodQuery(`
		SELECT ROUND(AVG(julianday(date_healed) - julianday(date(date_time_occurred))), 2)
		FROM wounds
		WHERE date_healed BETWEEN :start AND :end`, p))
}

// =============================================================================
// INFECTIONS
// =============================================================================

// UTIs counts urinary tract infections, including urosepsis.
func (in *Incidents) UTIs(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, in.exec, generic.PeriodQuery(`
		SELECT COUNT(member_id) FROM infections
		WHERE infection_type IN ('UTI', 'URI', 'Sepsis-Urinary')
		AND `+Occurred, p))
}

func (in *Incidents) UTIPer100MM(ctx context.Context, p generic.Period) (float64, error) {
	n, err := in.UTIs(ctx, p)
	if err != nil {
		return 0, err
	}
	return in.per100MM(ctx, p, n)
}

// Sepsis counts infections of any sepsis type.
func (in *Incidents) Sepsis(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, in.exec, generic.PeriodQuery(`
		SELECT COUNT(member_id) FROM infections
		WHERE infection_type LIKE '%Sepsis%'
		AND `+Occurred, p))
}

func (in *Incidents) SepsisPer100MM(ctx context.Context, p generic.Period) (float64, error) {
	n, err := in.Sepsis(ctx, p)
	if err != nil {
		return 0, err
	}
	return in.per100MM(ctx, p, n)
}

// =============================================================================
// BURNS
// =============================================================================

// ThirdDegreeBurns counts third and fourth degree burns in p.
func (in *Incidents) ThirdDegreeBurns(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, in.exec, generic.PeriodQuery(`
		SELECT COUNT(member_id) FROM burns
		WHERE burn_degree IN ('Third', 'Fourth')
		AND `+Occurred, p))
}

func (in *Incidents) ThirdDegreeBurnRate(ctx context.Context, p generic.Period) (float64, error) {
	n, err := in.ThirdDegreeBurns(ctx, p)
	if err != nil {
		return 0, err
	}
	total, err := in.Total(ctx, p, Burns)
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(n), float64(total), 2), nil
}

// BurnDegreeCounts counts burns in p by degree, most first.
// Columns: burn_degree, burns.
func (in *Incidents) BurnDegreeCounts(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return in.exec.Table(ctx, generic.PeriodQuery(`
		SELECT burn_degree, COUNT(*) AS burns
		FROM burns
		WHERE `+Occurred+`
		GROUP BY burn_degree
		ORDER BY burns DESC, burn_degree`, p))
}

// RNAssessmentsFollowingBurn counts burns in p followed by an RN assessment.
func (in *Incidents) RNAssessmentsFollowingBurn(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, in.exec, generic.PeriodQuery(`
		SELECT SUM(assessment_rn) FROM burns
		WHERE `+Occurred, p))
}

func (in *Incidents) RNAssessmentFollowingBurnPercent(ctx context.Context, p generic.Period) (float64, error) {
	n, err := in.RNAssessmentsFollowingBurn(ctx, p)
	if err != nil {
		return 0, err
	}
	total, err := in.Total(ctx, p, Burns)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(n), float64(total), 2), nil
}

// =============================================================================
// MEDICATION ERRORS
// =============================================================================

// HighRiskMedErrors counts medication errors in p involving insulin.
func (in *Incidents) HighRiskMedErrors(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, in.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM med_errors
		WHERE LOWER(description) LIKE '%insulin%'
		AND `+Occurred, p))
}

var responsibilities = []struct{ label, column string }{
	{"Pharmacy", "responsibility_pharmacy"},
	{"Clinic", "responsibility_clinic"},
	{"Home Care", "responsibility_home_care"},
	{"Facility", "responsibility_facility"},
}

// MedErrorResponsibility counts medication errors in p by responsible
// party, most first; ties keep the order Pharmacy, Clinic, Home Care,
// Facility. Columns: responsibility, count.
func (in *Incidents) MedErrorResponsibility(ctx context.Context, p generic.Period) (*generic.Table, error) {
	sums := ""
	for i, r := range responsibilities {
		if i > 0 {
			sums += ", "
		}
		sums += "SUM(" + r.column + ")"
	}
	rows, err := in.exec.Rows(ctx, generic.PeriodQuery(`
		SELECT `+sums+` FROM med_errors
		WHERE `+Occurred, p))
	if err != nil {
		return nil, err
	}

	type party struct {
		label string
		count int
	}
	parties := make([]party, len(responsibilities))
	for i, r := range responsibilities {
		parties[i].label = r.label
		if len(rows) > 0 {
			parties[i].count = generic.NormalizeNull(rows[0][i]).Int()
		}
	}
	sort.SliceStable(parties, func(i, j int) bool { return parties[i].count > parties[j].count })

	out := generic.NewTable("responsibility", "count")
	for _, pt := range parties {
		out.Append(pt.label, pt.count)
	}
	return out, nil
}

// MostCommonMedErrorResponsibility returns the first row of
// MedErrorResponsibility.
func (in *Incidents) MostCommonMedErrorResponsibility(ctx context.Context, p generic.Period) (string, int, error) {
	t, err := in.MedErrorResponsibility(ctx, p)
	if err != nil {
		return "", 0, err
	}
	return t.Rows[0][0].(string), t.Rows[0][1].(int), nil
}
