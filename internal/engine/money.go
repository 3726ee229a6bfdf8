// Package engine implements the pure distribution computations: fees,
// allocations, tax withholding, reconciliation, impact projection, per-step
// validation and the wizard reducer. Nothing here performs I/O.
package engine

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)

	// MonetaryTolerance is the fixed reconciliation tolerance, one currency unit.
	MonetaryTolerance = decimal.NewFromInt(1)

	// ProRataTolerance is the allowed deviation of the pro-rata total from 100.
	ProRataTolerance = decimal.RequireFromString("0.5")
)

const moneyPlaces = 2

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

func divideOrZero(numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimal.Zero
	}
	return numerator.Div(denominator)
}

func differsBy(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(tolerance)
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}
