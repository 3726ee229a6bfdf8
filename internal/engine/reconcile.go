package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// Reconcile cross-checks the draft totals against each other and against the
// selected waterfall results. Checks that compare against LP allocations are
// skipped until allocations exist; every other check runs on every call. The
// result is advisory and never blocks a transition. waterfallErr is the message of the
// last failed scenario resolution, empty when none failed.
func Reconcile(d domain.Distribution, waterfallErr string) []string {
	var warnings []string
	allocs := SumAllocations(d.LPAllocations)
	hasAllocations := len(d.LPAllocations) > 0
	results := d.WaterfallResults

	gpCarry := decimal.Zero
	if results != nil {
		gpCarry = results.GPCarry
	}

	feesAndExpenses := d.TotalFees.Add(d.TotalExpenses)
	if feesAndExpenses.GreaterThan(d.GrossProceeds) {
		warnings = append(warnings, fmt.Sprintf(
			"Fees and expenses (%s) exceed gross proceeds (%s)",
			formatMoney(feesAndExpenses), formatMoney(d.GrossProceeds)))
	}

	if hasAllocations {
		expected := d.NetProceeds.Sub(d.TotalTaxWithholding)
		if differsBy(allocs.Net, expected, MonetaryTolerance) {
			warnings = append(warnings, fmt.Sprintf(
				"LP net allocations (%s) do not match net proceeds less tax withholding (%s)",
				formatMoney(allocs.Net), formatMoney(expected)))
		}

		accounted := feesAndExpenses.Add(d.TotalTaxWithholding).Add(d.TotalDistributed).Add(gpCarry)
		if differsBy(accounted, d.GrossProceeds, MonetaryTolerance) {
			warnings = append(warnings, fmt.Sprintf(
				"Fees, expenses, tax, distributions and carry (%s) do not reconcile to gross proceeds (%s)",
				formatMoney(accounted), formatMoney(d.GrossProceeds)))
		}
	}

	if d.WaterfallScenarioID != "" {
		switch {
		case waterfallErr != "":
			warnings = append(warnings, fmt.Sprintf(
				"Waterfall scenario %s could not be resolved: %s", d.WaterfallScenarioID, waterfallErr))
		case results == nil:
			warnings = append(warnings, fmt.Sprintf(
				"Waterfall scenario %s returned no results", d.WaterfallScenarioID))
		}
	}

	if results != nil {
		if differsBy(results.ExitValue, d.GrossProceeds, MonetaryTolerance) {
			warnings = append(warnings, fmt.Sprintf(
				"Waterfall exit value (%s) differs from gross proceeds (%s)",
				formatMoney(results.ExitValue), formatMoney(d.GrossProceeds)))
		}
		if hasAllocations && differsBy(allocs.Gross, results.LPTotalReturn, MonetaryTolerance) {
			warnings = append(warnings, fmt.Sprintf(
				"LP gross allocations (%s) differ from waterfall LP total return (%s)",
				formatMoney(allocs.Gross), formatMoney(results.LPTotalReturn)))
		}
		if gpCarry.GreaterThan(d.NetProceeds) {
			warnings = append(warnings, fmt.Sprintf(
				"GP carry (%s) exceeds net proceeds (%s)",
				formatMoney(gpCarry), formatMoney(d.NetProceeds)))
		}
	}

	if !d.NetProceeds.IsPositive() {
		warnings = append(warnings, "Net proceeds are zero or negative")
	}

	return warnings
}
