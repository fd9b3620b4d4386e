package enrollment

import (
	"context"

	"github.com/whatscottcodes/paceutils/generic"
)

// =============================================================================
// REFERRAL FUNNEL
// =============================================================================

// Inquiries counts referrals received in p.
func (e *Enrollment) Inquiries(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM referrals
		WHERE referral_date BETWEEN :start AND :end`, p))
}

// AvgDaysToEnrollment averages referral-to-enrollment days for referrals
// whose enrollment took effect in p.
func (e *Enrollment) AvgDaysToEnrollment(ctx context.Context, p generic.Period) (float64, error) {
	return generic.Float(ctx, e.exec, generic.PeriodQuery(`
		SELECT ROUND(AVG(julianday(enrollment_effective) - julianday(referral_date)), 2)
		FROM referrals
		WHERE enrollment_effective BETWEEN :start AND :end`, p))
}

// ConversionRate180Days is the share of referrals from 180 days before
// p.Start through p.End that went on to enroll.
func (e *Enrollment) ConversionRate180Days(ctx context.Context, p generic.Period) (float64, error) {
	const window = `referral_date BETWEEN date(:start, '-180 days') AND :end`

	converted, err := generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM referrals
		WHERE `+window+`
		AND enrollment_effective IS NOT NULL`, p))
	if err != nil {
		return 0, err
	}
	referred, err := generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(*) FROM referrals
		WHERE `+window, p))
	if err != nil {
		return 0, err
	}
	return generic.Ratio(float64(converted), float64(referred), 2), nil
}

// ReferralSourceCount counts referrals in p by source, most first.
// Columns: referral_source, referrals.
func (e *Enrollment) ReferralSourceCount(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return e.exec.Table(ctx, generic.PeriodQuery(`
		SELECT referral_source, COUNT(*) AS referrals
		FROM referrals
		WHERE referral_date BETWEEN :start AND :end
		GROUP BY referral_source
		ORDER BY referrals DESC, referral_source`, p))
}

// MostCommonReferralSource returns the first row of ReferralSourceCount,
// or "" and 0 when there were no referrals.
func (e *Enrollment) MostCommonReferralSource(ctx context.Context, p generic.Period) (string, int, error) {
	t, err := e.ReferralSourceCount(ctx, p)
	if err != nil {
		return "", 0, err
	}
	return firstRow(t, func(v generic.Value) int { return v.Int() })
}

// ReferralEnrollmentRates is the share of each source's referrals in p
// that enrolled, highest first. Columns: referral_source, enrollment_rate.
func (e *Enrollment) ReferralEnrollmentRates(ctx context.Context, p generic.Period) (*generic.Table, error) {
	return e.exec.Table(ctx, generic.PeriodQuery(`
		SELECT referral_source,
			ROUND(COUNT(enrollment_effective) * 1.0 / COUNT(referral_date), 2) AS enrollment_rate
		FROM referrals
		WHERE referral_date BETWEEN :start AND :end
		GROUP BY referral_source
		ORDER BY enrollment_rate DESC, referral_source`, p))
}

// HighestEnrollmentRateReferralSource returns the first row of
// ReferralEnrollmentRates, or "" and 0.
func (e *Enrollment) HighestEnrollmentRateReferralSource(ctx context.Context, p generic.Period) (string, float64, error) {
	t, err := e.ReferralEnrollmentRates(ctx, p)
	if err != nil {
		return "", 0, err
	}
	return firstRow(t, func(v generic.Value) float64 { return v.Float64() })
}

func firstRow[T any](t *generic.Table, read func(generic.Value) T) (string, T, error) {
	var zero T
	if t.Len() == 0 {
		return "", zero, nil
	}
	return generic.NormalizeNull(t.Rows[0][0]).String(), read(generic.NormalizeNull(t.Rows[0][1])), nil
}
