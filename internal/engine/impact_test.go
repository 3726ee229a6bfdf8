package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

func fundMetrics() domain.FundMetrics {
	return domain.FundMetrics{
		NAV:                     dec("100000000"),
		PaidInCapital:           dec("50000000"),
		CumulativeDistributions: dec("20000000"),
		UndrawnCapital:          dec("10000000"),
	}
}

func TestProjectImpact(t *testing.T) {
	d := domain.Distribution{
		EventType:           domain.EventDividend,
		TotalDistributed:    dec("5000000"),
		TotalTaxWithholding: dec("1000000"),
	}

	imp := ProjectImpact(d, fundMetrics(), nil)

	assertDecimal(t, "94000000", imp.NAVAfter)
	assertDecimal(t, "-6000000", imp.NAVChange)
	assertDecimal(t, "0.4", imp.DPIBefore)
	assertDecimal(t, "0.5", imp.DPIAfter)
	assertDecimal(t, "0.1", imp.DPIChange)
	assertDecimal(t, "2.4", imp.TVPIBefore)
	assertDecimal(t, "2.38", imp.TVPIAfter)
	assertDecimal(t, "10000000", imp.UndrawnCapitalAfter)
	assertDecimal(t, "0", imp.UndrawnCapitalChange)
	assert.Empty(t, imp.CovenantWarnings)
}

func TestProjectImpactReturnOfCapitalIsRecallable(t *testing.T) {
	d := domain.Distribution{EventType: domain.EventReturnOfCapital, TotalDistributed: dec("5000000")}

	imp := ProjectImpact(d, fundMetrics(), nil)

	assertDecimal(t, "15000000", imp.UndrawnCapitalAfter)
	assertDecimal(t, "5000000", imp.UndrawnCapitalChange)
}

func TestProjectImpactCovenants(t *testing.T) {
	d := domain.Distribution{
		EventType:           domain.EventDividend,
		TotalDistributed:    dec("5000000"),
		TotalTaxWithholding: dec("1000000"),
	}
	covenants := []domain.Covenant{
		{Name: "minimum NAV", Metric: domain.MetricNAV, Threshold: dec("95000000"), Kind: domain.CovenantMin},
		{Name: "TVPI floor", Metric: domain.MetricTVPI, Threshold: dec("2.2"), Kind: domain.CovenantMin},
		{Name: "DPI cap", Metric: domain.MetricDPI, Threshold: dec("1"), Kind: domain.CovenantMax},
	}

	imp := ProjectImpact(d, fundMetrics(), covenants)

	require.Len(t, imp.CovenantWarnings, 2)
	nav := imp.CovenantWarnings[0]
	assert.Equal(t, "minimum NAV", nav.Covenant)
	assert.True(t, nav.IsViolation)
	assert.Equal(t, domain.SeverityCritical, nav.Severity)
	assertDecimal(t, "100000000", nav.Current)
	assertDecimal(t, "94000000", nav.Projected)

	tvpi := imp.CovenantWarnings[1]
	assert.False(t, tvpi.IsViolation)
	assert.Equal(t, domain.SeverityWarning, tvpi.Severity)
}

func TestProjectImpactZeroPaidIn(t *testing.T) {
	m := fundMetrics()
	m.PaidInCapital = dec("0")

	imp := ProjectImpact(domain.Distribution{TotalDistributed: dec("1")}, m, nil)

	assertDecimal(t, "0", imp.DPIAfter)
	assertDecimal(t, "0", imp.TVPIAfter)
}

func TestImpactErrors(t *testing.T) {
	assert.Nil(t, ImpactErrors(nil))

	d := domain.Distribution{TotalDistributed: dec("150000000")}
	errs := ImpactErrors(ProjectImpact(d, fundMetrics(), nil))

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Projected NAV")
}
