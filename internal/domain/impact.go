package domain

import "github.com/shopspring/decimal"

// FundMetrics is the fund snapshot the impact projection starts from.
type FundMetrics struct {
	NAV                     decimal.Decimal `json:"nav"`
	PaidInCapital           decimal.Decimal `json:"paidInCapital"`
	CumulativeDistributions decimal.Decimal `json:"cumulativeDistributions"`
	UndrawnCapital          decimal.Decimal `json:"undrawnCapital"`
}

// CovenantMetric names a projected figure a covenant can watch.
type CovenantMetric string

const (
	MetricNAV     CovenantMetric = "nav"
	MetricDPI     CovenantMetric = "dpi"
	MetricTVPI    CovenantMetric = "tvpi"
	MetricUndrawn CovenantMetric = "undrawn"
)

// CovenantKind says which side of the threshold is a breach.
type CovenantKind string

const (
	CovenantMin CovenantKind = "min"
	CovenantMax CovenantKind = "max"
)

// Covenant is a fund-level limit checked against the projection.
type Covenant struct {
	Name      string          `json:"name"`
	Metric    CovenantMetric  `json:"metric"`
	Threshold decimal.Decimal `json:"threshold"`
	Kind      CovenantKind    `json:"kind"`
}

// Severity grades a covenant warning.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// CovenantWarning is an advisory produced by the projection.
type CovenantWarning struct {
	Covenant    string          `json:"covenant"`
	Metric      CovenantMetric  `json:"metric"`
	Threshold   decimal.Decimal `json:"threshold"`
	Current     decimal.Decimal `json:"current"`
	Projected   decimal.Decimal `json:"projected"`
	IsViolation bool            `json:"isViolation"`
	Severity    Severity        `json:"severity"`
}

// DistributionImpact projects fund metrics before and after the payment.
type DistributionImpact struct {
	NAVBefore            decimal.Decimal   `json:"navBefore"`
	NAVAfter             decimal.Decimal   `json:"navAfter"`
	NAVChange            decimal.Decimal   `json:"navChange"`
	DPIBefore            decimal.Decimal   `json:"dpiBefore"`
	DPIAfter             decimal.Decimal   `json:"dpiAfter"`
	DPIChange            decimal.Decimal   `json:"dpiChange"`
	TVPIBefore           decimal.Decimal   `json:"tvpiBefore"`
	TVPIAfter            decimal.Decimal   `json:"tvpiAfter"`
	TVPIChange           decimal.Decimal   `json:"tvpiChange"`
	UndrawnCapitalBefore decimal.Decimal   `json:"undrawnCapitalBefore"`
	UndrawnCapitalAfter  decimal.Decimal   `json:"undrawnCapitalAfter"`
	UndrawnCapitalChange decimal.Decimal   `json:"undrawnCapitalChange"`
	CovenantWarnings     []CovenantWarning `json:"covenantWarnings"`
}
