package engine

import (
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// TaxRateInRange reports whether rate is within [0, 100].
func TaxRateInRange(rate decimal.Decimal) bool {
	return !rate.IsNegative() && !rate.GreaterThan(hundred)
}

// OverrideTaxRate applies a manual withholding rate to one LP and marks it as an
// override. Out-of-range rates are stored as given and flagged by validation.
func OverrideTaxRate(allocs []domain.LPAllocation, lpID string, rate decimal.Decimal) ([]domain.LPAllocation, error) {
	return updateAllocation(allocs, lpID, func(a *domain.LPAllocation) {
		a.TaxWithholdingRate = rate
		a.IsTaxOverride = true
		applyGross(a, a.GrossAmount)
	})
}

// RevertTaxRate reverts an LP to its profile default rate, or keeps the
// current rate when no profile matches.
func RevertTaxRate(allocs []domain.LPAllocation, lpID string, profiles []domain.LPProfile) ([]domain.LPAllocation, error) {
	return updateAllocation(allocs, lpID, func(a *domain.LPAllocation) {
		for _, p := range profiles {
			if p.ID == lpID {
				a.TaxWithholdingRate = p.DefaultTaxRate
				break
			}
		}
		a.IsTaxOverride = false
		applyGross(a, a.GrossAmount)
	})
}
