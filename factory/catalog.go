package factory

import (
	"context"
	"fmt"

	"github.com/whatscottcodes/paceutils/center"
	"github.com/whatscottcodes/paceutils/demographics"
	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/incidents"
	"github.com/whatscottcodes/paceutils/quality"
	"github.com/whatscottcodes/paceutils/team"
	"github.com/whatscottcodes/paceutils/utilization"
)

// ReadmitDays is the readmission window of the registered readmit indicators.
const ReadmitDays = 30

// Catalog returns a registry holding every catalog indicator over exec.
func Catalog(exec generic.Executor) *Registry {
	r := NewRegistry()
	registerEnrollment(r, enrollment.New(exec))
	registerDemographics(r, demographics.New(exec))
	registerUtilization(r, utilization.New(exec))
	registerIncidents(r, incidents.New(exec))
	registerQuality(r, quality.New(exec))
	registerTeam(r, team.New(exec))
	registerCenter(r, center.New(exec))
	return r
}

func scalar[T generic.Number](name, desc string, fn func(ctx context.Context, p generic.Period) (T, error)) Definition {
	return Definition{Name: name, Description: desc, Kind: KindScalar, Scalar: generic.Indicator(fn)}
}

// =============================================================================
// ENROLLMENT & DEMOGRAPHICS
// =============================================================================

func registerEnrollment(r *Registry, e *enrollment.Enrollment) {
	for _, d := range []Definition{
		scalar("enrollment.census", "Participants enrolled at any point in the period", e.CensusDuringPeriod),
		scalar("enrollment.census_on_end_date", "Participants enrolled on the last day", e.CensusOnEndDate),
		scalar("enrollment.member_months", "Sum of first-of-month census", e.MemberMonths),
		scalar("enrollment.enrolled", "New enrollments", e.Enrolled),
		scalar("enrollment.disenrolled", "Disenrollments", e.Disenrolled),
		scalar("enrollment.deaths", "Disenrollments due to death", e.Deaths),
		scalar("enrollment.voluntary_disenrolled", "Voluntary disenrollments", e.VoluntaryDisenrolled),
		scalar("enrollment.voluntary_disenrolled_percent", "Voluntary share of disenrollments", e.VoluntaryDisenrolledPercent),
		scalar("enrollment.net_during_period", "Enrolled minus disenrolled", e.NetEnrollmentDuringPeriod),
		scalar("enrollment.net", "Enrolled minus prior month disenrolled", e.NetEnrollment),
		scalar("enrollment.avg_years_enrolled", "Mean years enrolled", e.AvgYearsEnrolled),
		scalar("enrollment.growth_rate", "Month over month census growth", e.GrowthRate),
		scalar("enrollment.churn_rate", "Disenrollments over starting census", e.ChurnRate),
		scalar("enrollment.inquiries", "Referrals received", e.Inquiries),
		scalar("enrollment.avg_days_to_enrollment", "Days from referral to enrollment", e.AvgDaysToEnrollment),
		scalar("enrollment.conversion_rate_180_days", "Referrals enrolled within 180 days", e.ConversionRate180Days),
	} {
		r.mustRegister(d)
	}
	for _, payer := range enrollment.Payers {
		r.mustRegister(scalar("enrollment.enrolled."+string(payer), "New enrollments, "+string(payer),
			func(ctx context.Context, p generic.Period) (int, error) { return e.EnrolledByPayer(ctx, p, payer) }))
		r.mustRegister(scalar("enrollment.disenrolled."+string(payer), "Disenrollments, "+string(payer),
			func(ctx context.Context, p generic.Period) (int, error) { return e.DisenrolledByPayer(ctx, p, payer) }))
	}
}

func registerDemographics(r *Registry, d *demographics.Demographics) {
	for _, def := range []Definition{
		scalar("demographics.avg_age", "Mean age on the last day", d.AvgAge),
		scalar("demographics.age_below_65", "Participants under 65", d.AgeBelow65),
		scalar("demographics.age_above_65", "Participants 65 and over", d.AgeAbove65),
		scalar("demographics.percent_age_below_65", "Percent under 65", d.PercentAgeBelow65),
		scalar("demographics.percent_primary_non_english", "Percent with a primary language other than English", d.PercentPrimaryNonEnglish),
		scalar("demographics.percent_non_white", "Percent identifying other than white", d.PercentNonWhite),
		scalar("demographics.female", "Female participants", d.FemaleCount),
		scalar("demographics.percent_female", "Percent female", d.PercentFemale),
		scalar("demographics.living_in_community", "Participants not in custodial care", d.LivingInCommunity),
		scalar("demographics.living_in_community_percent", "Percent not in custodial care", d.LivingInCommunityPercent),
		scalar("demographics.attending_day_center", "Participants with scheduled center days", d.AttendingDayCenter),
		scalar("demographics.attending_day_center_percent", "Percent with scheduled center days", d.AttendingDayCenterPercent),
		scalar("demographics.behavioral_dx_percent", "Percent with a behavioral health diagnosis",
			func(ctx context.Context, p generic.Period) (float64, error) { return d.WithDxPercent(ctx, p, demographics.Behavioral) }),
		scalar("demographics.dementia_dx_percent", "Percent with a dementia diagnosis",
			func(ctx context.Context, p generic.Period) (float64, error) { return d.WithDxPercent(ctx, p, demographics.Dementia) }),
		scalar("demographics.chronic_at_least_one", "Participants with a chronic condition", d.AtLeastOneChronicCondition),
		scalar("demographics.chronic_at_least_one_percent", "Percent with a chronic condition", d.AtLeastOneChronicConditionPercent),
		scalar("demographics.chronic_six_or_more", "Participants with six or more chronic conditions", d.SixOrMoreChronicConditions),
		scalar("demographics.chronic_six_or_more_percent", "Percent with six or more chronic conditions", d.SixOrMoreChronicConditionsPercent),
	} {
		r.mustRegister(def)
	}
	for _, payer := range enrollment.Payers {
		r.mustRegister(scalar("demographics.payer_percent."+string(payer), "Percent of census, "+string(payer),
			func(ctx context.Context, p generic.Period) (float64, error) { return d.PayerPercent(ctx, p, payer) }))
	}
}

// =============================================================================
// UTILIZATION & INCIDENTS
// =============================================================================

func registerUtilization(r *Registry, u *utilization.Utilization) {
	type perTable struct {
		key, desc string
		fn        func(ctx context.Context, p generic.Period, t utilization.Table) (float64, error)
	}
	ints := func(fn func(context.Context, generic.Period, utilization.Table) (int, error)) func(context.Context, generic.Period, utilization.Table) (float64, error) {
		return func(ctx context.Context, p generic.Period, t utilization.Table) (float64, error) {
			n, err := fn(ctx, p, t)
			return float64(n), err
		}
	}
	readmits := func(ctx context.Context, p generic.Period, t utilization.Table) (int, error) {
		return u.Readmits(ctx, p, t, ReadmitDays)
	}
	readmitRate := func(ctx context.Context, p generic.Period, t utilization.Table) (float64, error) {
		return u.ReadmitRate(ctx, p, t, ReadmitDays)
	}
	for _, it := range []perTable{
		{"admissions", "Admissions", ints(u.Admissions)},
		{"discharges", "Discharges", ints(u.Discharges)},
		{"alos", "Average length of stay of discharges", u.ALOS},
		{"admissions_per_100mm", "Admissions per 100 member months", u.AdmissionsPer100MemberMonths},
		{"los_per_100mm", "Length of stay per 100 member months", u.LOSPer100MemberMonths},
		{"readmits", "30 day readmissions", ints(readmits)},
		{"readmit_rate", "30 day readmission rate", readmitRate},
		{"ppts", "Stays overlapping the period", ints(u.PptsInUtilization)},
		{"ppts_per_100mm", "Stays overlapping the period per 100 member months", u.PptsInUtilizationPer100MM},
		{"ppts_percent", "Stays overlapping the period as a percent of census", u.PptsInUtilizationPercent},
		{"days", "Stay days inside the period", ints(u.UtilizationDays)},
		{"days_per_100mm", "Stay days per 100 member months", u.DaysPer100MM},
		{"weekend_admission_percent", "Admissions on a weekend", u.WeekendAdmissionPercent},
	} {
		for _, t := range utilization.Tables {
			r.mustRegister(scalar(fmt.Sprintf("utilization.%s.%s", it.key, t), it.desc+", "+string(t),
				func(ctx context.Context, p generic.Period) (float64, error) { return it.fn(ctx, p, t) }))
		}
	}
	r.mustRegister(scalar("utilization.er_visits", "ER visits without admission", u.ERVisits))
	r.mustRegister(scalar("utilization.er_to_inpatient_rate", "Share of ER visits resulting in admission", u.ERToInpatientRate))
	r.mustRegister(scalar("utilization.alos_er_admissions", "Average length of stay of admissions through the ER", u.ALOSForERAdmissions))
	r.mustRegister(scalar("utilization.nf_discharged_to_higher_loc", "Nursing facility stays ending in a higher level of care", u.NFDischargedToHigherLOC))
	r.mustRegister(scalar("utilization.nf_discharged_to_higher_loc_percent", "Nursing facility discharges to a higher level of care", u.NFDischargedToHigherLOCPercent))
	for _, f := range utilization.Flags {
		r.mustRegister(scalar("utilization.flagged."+f.String(), "Admissions flagged "+f.String(),
			func(ctx context.Context, p generic.Period) (int, error) { return u.FlaggedAdmissions(ctx, p, f) }))
		r.mustRegister(scalar("utilization.flagged_percent."+f.String(), "Share of admissions flagged "+f.String(),
			func(ctx context.Context, p generic.Period) (float64, error) { return u.FlaggedAdmissionsPercent(ctx, p, f) }))
		r.mustRegister(scalar("utilization.flagged_per_100mm."+f.String(), "Admissions flagged "+f.String()+" per 100 member months",
			func(ctx context.Context, p generic.Period) (float64, error) { return u.FlaggedAdmissionsPer100MM(ctx, p, f) }))
	}
}

func registerIncidents(r *Registry, in *incidents.Incidents) {
	type perTable struct {
		key, desc string
		fn        func(ctx context.Context, p generic.Period, t incidents.Table) (float64, error)
	}
	ints := func(fn func(context.Context, generic.Period, incidents.Table) (int, error)) func(context.Context, generic.Period, incidents.Table) (float64, error) {
		return func(ctx context.Context, p generic.Period, t incidents.Table) (float64, error) {
			n, err := fn(ctx, p, t)
			return float64(n), err
		}
	}
	for _, it := range []perTable{
		{"total", "Incidents", ints(in.Total)},
		{"per_100mm", "Incidents per 100 member months", in.PerHundredMemberMonths},
		{"ppts", "Participants with an incident", ints(in.PptsWithIncident)},
		{"repeaters", "Participants with more than one incident", ints(in.Repeaters)},
		{"percent_by_repeaters", "Share of incidents by repeaters", in.PercentByRepeaters},
		{"repeat_ppts_rate", "Share of participants with incidents who repeat", in.RepeatPptsRate},
		{"avg_per_ppt", "Incidents per participant with one", in.AvgPerPpt},
		{"adjusted", "Incidents excluding outlier participants", ints(in.AdjustedCount)},
		{"adjusted_per_100mm", "Adjusted incidents per 100 member months", in.AdjustedPer100MM},
		{"percent_without_overall", "Participants who never had one", in.PercentWithoutIncidentOverall},
		{"percent_without_in_period", "Participants without one in the period", in.PercentWithoutIncidentInPeriod},
		{"major_harm_percent", "Share with major harm or death", in.MajorHarmPercent},
	} {
		for _, t := range incidents.Tables {
			r.mustRegister(scalar(fmt.Sprintf("incidents.%s.%s", it.key, t), it.desc+", "+string(t),
				func(ctx context.Context, p generic.Period) (float64, error) { return it.fn(ctx, p, t) }))
		}
	}
	for _, d := range []Definition{
		scalar("incidents.pressure_ulcer_per_100mm", "Pressure ulcers per 100 member months", in.PressureUlcerPer100MM),
		scalar("incidents.unstageable_wound_rate", "Share of wounds unstageable", in.UnstageableWoundRate),
		scalar("incidents.avg_wound_healing_days", "Days from occurrence to healing", in.AvgWoundHealingDays),
		scalar("incidents.uti_per_100mm", "UTIs per 100 member months", in.UTIPer100MM),
		scalar("incidents.sepsis_per_100mm", "Sepsis per 100 member months", in.SepsisPer100MM),
		scalar("incidents.third_degree_burn_rate", "Share of burns third degree or worse", in.ThirdDegreeBurnRate),
		scalar("incidents.rn_assessment_after_burn_percent", "Burns followed by an RN assessment", in.RNAssessmentFollowingBurnPercent),
		scalar("incidents.high_risk_med_errors", "Medication errors involving insulin", in.HighRiskMedErrors),
	} {
		r.mustRegister(d)
	}
}

// =============================================================================
// QUALITY & TEAM
// =============================================================================

func registerQuality(r *Registry, q *quality.Quality) {
	for _, d := range []Definition{
		scalar("quality.deaths", "Deaths", q.Deaths),
		scalar("quality.mortality_rate", "Deaths over census", q.MortalityRate),
		scalar("quality.mortality_within_30_days_of_discharge_rate", "Deaths within 30 days of discharge over deaths", q.MortalityWithin30DaysOfDischargeRate),
		scalar("quality.percent_of_discharges_with_mortality_in_30", "Acute discharges followed by death within 30 days", q.PercentOfDischargesWithMortalityIn30),
		scalar("quality.no_hosp_admission_since_enrollment", "Percent never admitted", q.NoHospAdmissionSinceEnrollment),
		scalar("quality.no_hosp_admission_last_year", "Percent not admitted in the last year", q.NoHospAdmissionLastYear),
		scalar("quality.avg_days_until_nf_admission", "Days from enrollment to first custodial stay", q.AvgDaysUntilNFAdmission),
		scalar("quality.pneumo_rate", "Pneumococcal vaccinated or refused, 65 and over", q.PneumoRate),
		scalar("quality.influ_rate", "Influenza vaccinated or refused this season", q.InfluRate),
	} {
		r.mustRegister(d)
	}
}

func registerTeam(r *Registry, tm *team.Team) {
	group := func(name, desc string, fn generic.GroupIndicatorFunc) Definition {
		return Definition{Name: name, Description: desc, Kind: KindGroup, Group: fn, Groups: tm.Teams}
	}
	for _, d := range []Definition{
		group("team.ppts", "Participants on team", tm.PptsOnTeam),
		group("team.avg_age", "Mean age by team", tm.AvgAgeByTeam),
		group("team.percent_primary_non_english", "Primary language other than English by team", tm.PercentPrimaryNonEnglishByTeam),
		group("team.avg_years_enrolled", "Mean years enrolled by team", tm.AvgYearsEnrolledByTeam),
		group("team.er_visits", "ER visits without admission by team", tm.ERVisitsByTeam),
		group("team.deaths", "Deaths by team", tm.DeathsByTeam),
		group("team.mortality", "Mortality rate by team", tm.MortalityByTeam),
		group("team.mortality_within_30_days_of_discharge_rate", "Deaths within 30 days of discharge over deaths by team", tm.MortalityWithin30DaysOfDischargeRateByTeam),
		group("team.no_hosp_admission_since_enrollment", "Percent never admitted by team", tm.NoHospAdmissionSinceEnrollmentByTeam),
		group("team.pressure_ulcer_rate", "Pressure ulcers per participant by team", tm.PressureUlcerRateByTeam),
	} {
		r.mustRegister(d)
	}
	for _, t := range utilization.Tables {
		r.mustRegister(group("team.admissions."+string(t), "Admissions by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) { return tm.AdmissionsByTeam(ctx, p, t) }))
		r.mustRegister(group("team.discharges."+string(t), "Discharges by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) { return tm.DischargesByTeam(ctx, p, t) }))
		r.mustRegister(group("team.alos."+string(t), "Average length of stay by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) { return tm.ALOSByTeam(ctx, p, t) }))
		r.mustRegister(group("team.readmits."+string(t), "30 day readmissions by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) {
				return tm.ReadmitsByTeam(ctx, p, t, ReadmitDays)
			}))
		r.mustRegister(group("team.days."+string(t), "Stay days by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) { return tm.DaysByTeam(ctx, p, t) }))
		r.mustRegister(group("team.ppts_in."+string(t), "Stays overlapping the period by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) {
				return tm.PptsInUtilizationByTeam(ctx, p, t)
			}))
	}
	for _, t := range incidents.Tables {
		r.mustRegister(group("team.incidents."+string(t), "Incidents by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) { return tm.TotalIncidentsByTeam(ctx, p, t) }))
		r.mustRegister(group("team.incidents_per_100_ppts."+string(t), "Incidents per 100 participants by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) {
				return tm.IncidentsPer100PptsByTeam(ctx, p, t)
			}))
		r.mustRegister(group("team.ppts_with_incident."+string(t), "Participants with an incident by team, "+string(t),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) {
				return tm.PptsWithIncidentByTeam(ctx, p, t)
			}))
	}
}

// =============================================================================
// CENTER
// =============================================================================

func registerCenter(r *Registry, c *center.Center) {
	group := func(name, desc string, fn generic.GroupIndicatorFunc) Definition {
		return Definition{Name: name, Description: desc, Kind: KindGroup, Group: fn, Groups: c.Centers}
	}
	for _, d := range []Definition{
		group("center.ppts", "Participants at center", c.PptsAtCenter),
		group("center.census_on_end_date", "Participants enrolled on the last day by center", c.CensusOnEndDateByCenter),
		group("center.enrolled", "New enrollments by center", c.EnrolledByCenter),
		group("center.disenrolled", "Disenrollments by center", c.DisenrolledByCenter),
		group("center.voluntary_disenrolled", "Voluntary disenrollments by center", c.VoluntaryDisenrolledByCenter),
		group("center.deaths", "Deaths by center", c.DeathsByCenter),
		group("center.net", "Enrolled minus disenrolled by center", c.NetEnrollmentByCenter),
		group("center.avg_years_enrolled", "Mean years enrolled by center", c.AvgYearsEnrolledByCenter),
		group("center.churn_rate", "Disenrollments over starting census by center", c.ChurnRateByCenter),
		group("center.growth_rate", "Census growth over the period by center", c.GrowthRateByCenter),
		group("center.avg_age", "Mean age by center", c.AvgAgeByCenter),
		group("center.percent_primary_non_english", "Primary language other than English by center", c.PercentPrimaryNonEnglishByCenter),
		group("center.percent_non_white", "Identifying other than white by center", c.PercentNonWhiteByCenter),
		group("center.percent_female", "Percent female by center", c.PercentFemaleByCenter),
	} {
		r.mustRegister(d)
	}
	for _, payer := range enrollment.Payers {
		r.mustRegister(group("center.enrolled."+string(payer), "New enrollments by center, "+string(payer),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) {
				return c.EnrolledByPayerByCenter(ctx, p, payer)
			}))
		r.mustRegister(group("center.disenrolled."+string(payer), "Disenrollments by center, "+string(payer),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) {
				return c.DisenrolledByPayerByCenter(ctx, p, payer)
			}))
		r.mustRegister(group("center.payer_percent."+string(payer), "Percent of participants by center, "+string(payer),
			func(ctx context.Context, p generic.Period) (*generic.Table, error) {
				return c.PayerPercentByCenter(ctx, p, payer)
			}))
	}
}
