// Package demographics implements population-mix indicators over the
// participants enrolled during a period: payer, age, language, race, gender,
// living situation, diagnosis groups and chronic conditions. Percentages are of
// enrollment.CensusDuringPeriod.
package demographics

import (
	"context"
	"fmt"
	"strings"

	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
)

// ageAtEnd is the participant's age in years on :end, alias d for
// demographics.
const ageAtEnd = `((julianday(:end) - julianday(d.dob)) / 365.25)`

type Demographics struct {
	exec   generic.Executor
	census *enrollment.Enrollment
}

func New(exec generic.Executor) *Demographics {
	return &Demographics{exec: exec, census: enrollment.New(exec)}
}

// percentOfCensus runs count and divides by the period census.
func (d *Demographics) percentOfCensus(ctx context.Context, p generic.Period, count func(context.Context, generic.Period) (int, error)) (float64, error) {
	n, err := count(ctx, p)
	if err != nil {
		return 0, err
	}
	census, err := d.census.CensusDuringPeriod(ctx, p)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(n), float64(census), 2), nil
}

// countEnrolled counts participants enrolled during p whose demographics
// row (alias d) matches where.
func (d *Demographics) countEnrolled(ctx context.Context, p generic.Period, where string) (int, error) {
	return generic.Count(ctx, d.exec, generic.PeriodQuery(`
		SELECT COUNT(DISTINCT d.member_id)
		FROM demographics d
		JOIN enrollment e ON d.member_id = e.member_id
		WHERE `+enrollment.EnrolledDuring+`
		AND `+where, p))
}

// =============================================================================
// PAYER
// =============================================================================

func (d *Demographics) PayerCount(ctx context.Context, p generic.Period, payer enrollment.PayerType) (int, error) {
	if _, err := enrollment.ParsePayer(string(payer)); err != nil {
		return 0, err
	}
	return generic.Count(ctx, d.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment e
		WHERE `+enrollment.EnrolledDuring+`
		AND `+payer.Filter(), p))
}

func (d *Demographics) PayerPercent(ctx context.Context, p generic.Period, payer enrollment.PayerType) (float64, error) {
	return d.percentOfCensus(ctx, p, func(ctx context.Context, p generic.Period) (int, error) {
		return d.PayerCount(ctx, p, payer)
	})
}

// =============================================================================
// AGE
// =============================================================================

// AvgAge is the mean age on p.End of participants enrolled during p.
func (d *Demographics) AvgAge(ctx context.Context, p generic.Period) (float64, error) {
	return generic.Float(ctx, d.exec, generic.PeriodQuery(`
		SELECT ROUND(AVG(`+ageAtEnd+`), 2)
		FROM demographics d
		JOIN enrollment e ON d.member_id = e.member_id
		WHERE `+enrollment.EnrolledDuring, p))
}

func (d *Demographics) AgeBelow65(ctx context.Context, p generic.Period) (int, error) {
	return d.countEnrolled(ctx, p, ageAtEnd+` < 65`)
}

func (d *Demographics) AgeAbove65(ctx context.Context, p generic.Period) (int, error) {
	return d.countEnrolled(ctx, p, ageAtEnd+` >= 65`)
}

func (d *Demographics) PercentAgeBelow65(ctx context.Context, p generic.Period) (float64, error) {
	return d.percentOfCensus(ctx, p, d.AgeBelow65)
}

// =============================================================================
// LANGUAGE, RACE, GENDER
// =============================================================================

func (d *Demographics) PrimaryNonEnglish(ctx context.Context, p generic.Period) (int, error) {
	return d.countEnrolled(ctx, p, `d.language != 'English'`)
}

func (d *Demographics) PercentPrimaryNonEnglish(ctx context.Context, p generic.Period) (float64, error) {
	return d.percentOfCensus(ctx, p, d.PrimaryNonEnglish)
}

func (d *Demographics) NonWhite(ctx context.Context, p generic.Period) (int, error) {
	return d.countEnrolled(ctx, p, `d.race != 'Caucasian/White'`)
}

func (d *Demographics) PercentNonWhite(ctx context.Context, p generic.Period) (float64, error) {
	return d.percentOfCensus(ctx, p, d.NonWhite)
}

// FemaleCount counts gender = 1.
func (d *Demographics) FemaleCount(ctx context.Context, p generic.Period) (int, error) {
	return d.countEnrolled(ctx, p, `d.gender = 1`)
}

func (d *Demographics) PercentFemale(ctx context.Context, p generic.Period) (float64, error) {
	return d.percentOfCensus(ctx, p, d.FemaleCount)
}

// =============================================================================
// LIVING SITUATION
// =============================================================================

// LivingInCommunity counts participants enrolled during p who are not in a
// custodial stay open on p.End.
func (d *Demographics) LivingInCommunity(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, d.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM enrollment e
		WHERE `+enrollment.EnrolledDuring+`
		AND e.member_id NOT IN (
			SELECT member_id FROM custodial
			WHERE admission_date <= :end
			AND (discharge_date IS NULL OR discharge_date > :end)
		)`, p))
}

func (d *Demographics) LivingInCommunityPercent(ctx context.Context, p generic.Period) (float64, error) {
	return d.percentOfCensus(ctx, p, d.LivingInCommunity)
}

// AttendingDayCenter counts participants with a scheduled day-center
// attendance, i.e. anything other than PRN.
func (d *Demographics) AttendingDayCenter(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, d.exec, generic.PeriodQuery(`
		SELECT COUNT(DISTINCT cd.member_id)
		FROM center_days cd
		JOIN enrollment e ON cd.member_id = e.member_id
		WHERE `+enrollment.EnrolledDuring+`
		AND cd.days != 'PRN'`, p))
}

func (d *Demographics) AttendingDayCenterPercent(ctx context.Context, p generic.Period) (float64, error) {
	return d.percentOfCensus(ctx, p, d.AttendingDayCenter)
}

// =============================================================================
// DIAGNOSIS GROUPS
// =============================================================================

// DxGroup is a set of ICD-10 code prefixes.
type DxGroup []string

var (
	// Behavioral covers psychotic, mood and anxiety disorders.
	Behavioral = DxGroup{"F2", "F3", "F4"}
	Dementia   = DxGroup{"F01", "F02", "F03", "G30", "G31"}
)

// filter returns an OR of LIKE tests with one bound parameter per prefix.
func (g DxGroup) filter() (string, generic.Params) {
	tests := make([]string, len(g))
	params := generic.Params{}
	for i, prefix := range g {
		name := fmt.Sprintf("dx%d", i)
		tests[i] = "dx.icd10 LIKE :" + name
		params[name] = prefix + "%"
	}
	return "(" + strings.Join(tests, " OR ") + ")", params
}

// WithDx counts participants enrolled during p with any diagnosis in g.
func (d *Demographics) WithDx(ctx context.Context, p generic.Period, g DxGroup) (int, error) {
	if len(g) == 0 {
		return 0, nil
	}
	where, params := g.filter()
	return generic.Count(ctx, d.exec, generic.PeriodQuery(`
		SELECT COUNT(DISTINCT dx.member_id)
		FROM dx
		JOIN enrollment e ON dx.member_id = e.member_id
		WHERE `+enrollment.EnrolledDuring+`
		AND `+where, p, params))
}

func (d *Demographics) WithDxPercent(ctx context.Context, p generic.Period, g DxGroup) (float64, error) {
	return d.percentOfCensus(ctx, p, func(ctx context.Context, p generic.Period) (int, error) {
		return d.WithDx(ctx, p, g)
	})
}

// =============================================================================
// CHRONIC CONDITIONS
// =============================================================================

// ChronicConditions are the ICD-10 prefixes counted as chronic: Alzheimer's,
// chronic lung disease, atherosclerosis, cancer, cerebrovascular and chronic
// liver disease, diabetes, hypertension, heart disease, kidney disease and
// chronic pelvic and genitourinary conditions.
var ChronicConditions = DxGroup{
	"G30", "J4", "I70",
	"C0", "C1", "C2", "C3", "C4", "C5", "C6", "C7", "C8", "C9",
	"I6", "K70", "K73", "K74",
	"E10", "E11", "E13",
	"I10", "I12", "I15",
	"I0", "I11", "I13", "I2", "I3", "I4", "I50", "I51",
	"N00", "N01", "N02", "N03", "N04", "N05", "N06", "N07",
	"N17", "N18", "N19", "N25", "N26", "N27",
	"N71", "N72", "N73", "N74", "N75", "N76", "N77", "N8", "N9",
}

// conditionCategory is the three character ICD-10 category of dx.icd10, so
// E11.9 and E11.65 are one condition.
const conditionCategory = `substr(dx.icd10, 1, 3)`

// chronicByPpt selects member_id and the count of distinct chronic
// categories for participants enrolled during p; having filters the groups.
func chronicByPpt(having string) (string, generic.Params) {
	where, params := ChronicConditions.filter()
	return `
		SELECT dx.member_id, COUNT(DISTINCT ` + conditionCategory + `) AS conditions
		FROM dx
		JOIN enrollment e ON dx.member_id = e.member_id
		WHERE ` + enrollment.EnrolledDuring + `
		AND ` + where + `
		GROUP BY dx.member_id ` + having, params
}

// AtLeastOneChronicCondition counts participants enrolled during p with any
// chronic condition.
func (d *Demographics) AtLeastOneChronicCondition(ctx context.Context, p generic.Period) (int, error) {
	return d.WithDx(ctx, p, ChronicConditions)
}

func (d *Demographics) AtLeastOneChronicConditionPercent(ctx context.Context, p generic.Period) (float64, error) {
	return d.percentOfCensus(ctx, p, d.AtLeastOneChronicCondition)
}

// ChronicConditionsByPpt lists participants enrolled during p with their
// number of chronic conditions. Columns: member_id, conditions.
func (d *Demographics) ChronicConditionsByPpt(ctx context.Context, p generic.Period) (*generic.Table, error) {
	sql, params := chronicByPpt(`ORDER BY dx.member_id`)
	return d.exec.Table(ctx, generic.PeriodQuery(sql, p, params))
}

// ChronicConditionsAtLeast counts participants enrolled during p with n or
// more chronic conditions.
func (d *Demographics) ChronicConditionsAtLeast(ctx context.Context, p generic.Period, n int) (int, error) {
	sql, params := chronicByPpt(`HAVING COUNT(DISTINCT ` + conditionCategory + `) >= :n`)
	return generic.Count(ctx, d.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM (`+sql+`) AS chronic`, p, params.With("n", n)))
}

// SixOrMoreChronicConditions counts participants with 6 or more chronic
// conditions.
func (d *Demographics) SixOrMoreChronicConditions(ctx context.Context, p generic.Period) (int, error) {
	return d.ChronicConditionsAtLeast(ctx, p, 6)
}

func (d *Demographics) SixOrMoreChronicConditionsPercent(ctx context.Context, p generic.Period) (float64, error) {
	return d.percentOfCensus(ctx, p, d.SixOrMoreChronicConditions)
}
