package domain

import "github.com/shopspring/decimal"

// LPAllocation is one limited partner's share of a distribution.
type LPAllocation struct {
	ID                   string          `json:"id"`
	LPID                 string          `json:"lpId"`
	LPName               string          `json:"lpName"`
	Commitment           decimal.Decimal `json:"commitment"`
	OwnershipPercentage  decimal.Decimal `json:"ownershipPercentage"`
	ProRataPercentage    decimal.Decimal `json:"proRataPercentage"`
	GrossAmount          decimal.Decimal `json:"grossAmount"`
	TaxWithholdingRate   decimal.Decimal `json:"taxWithholdingRate"`
	TaxWithholdingAmount decimal.Decimal `json:"taxWithholdingAmount"`
	NetAmount            decimal.Decimal `json:"netAmount"`
	IsTaxOverride        bool            `json:"isTaxOverride"`
	IsConfirmed          bool            `json:"isConfirmed"`
	HasSpecialTerms      bool            `json:"hasSpecialTerms"`
	Notes                string          `json:"notes,omitempty"`
}

// LPProfile is the directory record an allocation is seeded from.
type LPProfile struct {
	ID              string          `json:"id"`
	FundID          string          `json:"fundId"`
	Name            string          `json:"name"`
	Commitment      decimal.Decimal `json:"commitment"`
	DefaultTaxRate  decimal.Decimal `json:"defaultTaxRate"`
	TaxFormType     string          `json:"taxFormType,omitempty"`
	Jurisdiction    string          `json:"jurisdiction,omitempty"`
	Email           string          `json:"email,omitempty"`
	HasSpecialTerms bool            `json:"hasSpecialTerms"`
}

// StatementTemplate is referenced by id only.
type StatementTemplate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
