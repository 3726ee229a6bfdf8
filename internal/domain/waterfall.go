package domain

import "github.com/shopspring/decimal"

// WaterfallScenario is an externally defined carry model.
type WaterfallScenario struct {
	ID         string          `json:"id"`
	FundID     string          `json:"fundId"`
	Name       string          `json:"name"`
	ExitValue  decimal.Decimal `json:"exitValue"`
	Parameters map[string]any  `json:"parameters,omitempty"`
}

// WaterfallTier is one tier of the external calculation, kept for display.
type WaterfallTier struct {
	Name     string          `json:"name"`
	LPAmount decimal.Decimal `json:"lpAmount"`
	GPAmount decimal.Decimal `json:"gpAmount"`
}

// WaterfallResults is consumed read-only for reconciliation.
type WaterfallResults struct {
	ScenarioID    string          `json:"scenarioId"`
	ExitValue     decimal.Decimal `json:"exitValue"`
	GPCarry       decimal.Decimal `json:"gpCarry"`
	LPTotalReturn decimal.Decimal `json:"lpTotalReturn"`
	Tiers         []WaterfallTier `json:"tiers,omitempty"`
}

// Clone returns a deep copy.
func (r WaterfallResults) Clone() WaterfallResults {
	out := r
	out.Tiers = append([]WaterfallTier(nil), r.Tiers...)
	return out
}
