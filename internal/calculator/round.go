package calculator

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places, halves away from zero.
// NaN and infinities are returned as 0.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 rounds to cents.
func Round2(v float64) float64 { return Round(v, 2) }

// SafeDiv returns a/b, or fallback when b is zero.
func SafeDiv(a, b, fallback float64) float64 {
	if b == 0 {
		return fallback
	}
	return a / b
}

// Percent returns part as a percentage of total, 0 when total is zero.
func Percent(part, total float64) float64 {
	return SafeDiv(part, total, 0) * 100
}
