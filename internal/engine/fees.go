package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// FeeTotals is the fee/expense partition of a line item list.
type FeeTotals struct {
	Fees     decimal.Decimal `json:"fees"`
	Expenses decimal.Decimal `json:"expenses"`
}

// Total returns fees plus expenses.
func (t FeeTotals) Total() decimal.Decimal {
	return t.Fees.Add(t.Expenses)
}

// FeeAmount resolves a line item to an absolute amount. A positive Amount
// wins; otherwise Percentage of gross proceeds applies.
func FeeAmount(item domain.FeeLineItem, grossProceeds decimal.Decimal) decimal.Decimal {
	if item.Amount.IsPositive() {
		return item.Amount
	}
	if item.Percentage == nil {
		return decimal.Zero
	}
	return roundMoney(percentOf(grossProceeds, *item.Percentage))
}

// CalculateFees partitions items into fees and expenses by type.
func CalculateFees(items []domain.FeeLineItem, grossProceeds decimal.Decimal) FeeTotals {
	totals := FeeTotals{Fees: decimal.Zero, Expenses: decimal.Zero}
	for _, item := range items {
		amount := FeeAmount(item, grossProceeds)
		switch item.Type.Class() {
		case domain.ClassFee:
			totals.Fees = totals.Fees.Add(amount)
		default:
			totals.Expenses = totals.Expenses.Add(amount)
		}
	}
	return totals
}

// NetProceeds is gross minus fees and expenses, floored at zero.
func NetProceeds(grossProceeds decimal.Decimal, totals FeeTotals) decimal.Decimal {
	return nonNegative(grossProceeds.Sub(totals.Total()))
}

// FeeItemErrors returns the blocking problems of one line item.
func FeeItemErrors(index int, item domain.FeeLineItem) []string {
	var errs []string
	label := fmt.Sprintf("Fee line %d (%s)", index+1, item.Type)
	if item.Type == "" {
		errs = append(errs, fmt.Sprintf("Fee line %d: type is required", index+1))
	}
	if item.Amount.IsNegative() {
		errs = append(errs, label+": amount cannot be negative")
	}
	if item.Percentage != nil && item.Percentage.IsNegative() {
		errs = append(errs, label+": percentage cannot be negative")
	}
	if item.Amount.IsZero() && item.Percentage == nil {
		errs = append(errs, label+": either an amount or a percentage is required")
	}
	return errs
}
