package domain

import "github.com/shopspring/decimal"

// FeeType identifies a fee or expense line.
type FeeType string

const (
	FeeManagement      FeeType = "management-fee"
	FeeTransactionCost FeeType = "transaction-cost"
	FeeLegal           FeeType = "legal-fee"
	FeeAudit           FeeType = "audit-fee"
	FeeAdmin           FeeType = "admin-fee"
	FeeOther           FeeType = "other"
)

// FeeClass is the bucket a fee type is totalled into.
type FeeClass string

const (
	ClassFee     FeeClass = "fee"
	ClassExpense FeeClass = "expense"
)

// feeClassification is the single source of truth for fee vs expense.
var feeClassification = map[FeeType]FeeClass{
	FeeManagement:      ClassFee,
	FeeAdmin:           ClassFee,
	FeeTransactionCost: ClassExpense,
	FeeLegal:           ClassExpense,
	FeeAudit:           ClassExpense,
	FeeOther:           ClassExpense,
}

// Class returns the bucket for t. Unknown types are expenses.
func (t FeeType) Class() FeeClass {
	if c, ok := feeClassification[t]; ok {
		return c
	}
	return ClassExpense
}

// FeeLineItem is one fee or expense applied to gross proceeds. A nonzero
// Amount takes precedence over Percentage.
type FeeLineItem struct {
	ID          string           `json:"id"`
	Type        FeeType          `json:"type"`
	Description string           `json:"description,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Percentage  *decimal.Decimal `json:"percentage,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// FeeTemplate is a named bundle of line items.
type FeeTemplate struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Items []FeeLineItem `json:"items"`
}
