package generic

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATIOS - Every rate in the catalog goes through these
// =============================================================================

// Round rounds half away from zero to places decimals.
// Non-finite input reads as 0.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Ratio returns num/den rounded to places. A zero denominator yields 0.
func Ratio(num, den float64, places int32) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) || math.IsInf(num, 0) || math.IsInf(den, 0) {
		return 0
	}
	q := decimal.NewFromFloat(num).Div(decimal.NewFromFloat(den))
	f, _ := q.Round(places).Float64()
	return f
}

// Percent returns num/den*100 rounded to places. A zero denominator yields 0.
func Percent(num, den float64, places int32) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) || math.IsInf(num, 0) || math.IsInf(den, 0) {
		return 0
	}
	q := decimal.NewFromFloat(num).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromFloat(den))
	f, _ := q.Round(places).Float64()
	return f
}

// Per100 is num/den*100, the per-100-member-months convention.
func Per100(num, den float64, places int32) float64 { return Percent(num, den, places) }
