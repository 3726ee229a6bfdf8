package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

const ratioPlaces = 4

// covenantBuffer is the share of the threshold treated as "close to breach".
var covenantBuffer = decimal.RequireFromString("0.10")

// ProjectImpact projects fund metrics after the distribution is paid.
func ProjectImpact(d domain.Distribution, m domain.FundMetrics, covenants []domain.Covenant) *domain.DistributionImpact {
	outflow := d.TotalDistributed.Add(d.TotalTaxWithholding)
	cumulativeAfter := m.CumulativeDistributions.Add(d.TotalDistributed)

	imp := &domain.DistributionImpact{
		NAVBefore:            m.NAV,
		NAVAfter:             m.NAV.Sub(outflow),
		DPIBefore:            ratio(m.CumulativeDistributions, m.PaidInCapital),
		DPIAfter:             ratio(cumulativeAfter, m.PaidInCapital),
		TVPIBefore:           ratio(m.NAV.Add(m.CumulativeDistributions), m.PaidInCapital),
		UndrawnCapitalBefore: m.UndrawnCapital,
		UndrawnCapitalAfter:  m.UndrawnCapital,
	}
	imp.TVPIAfter = ratio(imp.NAVAfter.Add(cumulativeAfter), m.PaidInCapital)
	if d.EventType == domain.EventReturnOfCapital {
		imp.UndrawnCapitalAfter = m.UndrawnCapital.Add(d.TotalDistributed)
	}

	imp.NAVChange = imp.NAVAfter.Sub(imp.NAVBefore)
	imp.DPIChange = imp.DPIAfter.Sub(imp.DPIBefore)
	imp.TVPIChange = imp.TVPIAfter.Sub(imp.TVPIBefore)
	imp.UndrawnCapitalChange = imp.UndrawnCapitalAfter.Sub(imp.UndrawnCapitalBefore)

	imp.CovenantWarnings = make([]domain.CovenantWarning, 0)
	for _, c := range covenants {
		if w, ok := checkCovenant(c, imp); ok {
			imp.CovenantWarnings = append(imp.CovenantWarnings, w)
		}
	}
	return imp
}

func ratio(numerator, denominator decimal.Decimal) decimal.Decimal {
	return divideOrZero(numerator, denominator).Round(ratioPlaces)
}

func metricValues(metric domain.CovenantMetric, imp *domain.DistributionImpact) (current, projected decimal.Decimal, ok bool) {
	switch metric {
	case domain.MetricNAV:
		return imp.NAVBefore, imp.NAVAfter, true
	case domain.MetricDPI:
		return imp.DPIBefore, imp.DPIAfter, true
	case domain.MetricTVPI:
		return imp.TVPIBefore, imp.TVPIAfter, true
	case domain.MetricUndrawn:
		return imp.UndrawnCapitalBefore, imp.UndrawnCapitalAfter, true
	}
	return decimal.Zero, decimal.Zero, false
}

func checkCovenant(c domain.Covenant, imp *domain.DistributionImpact) (domain.CovenantWarning, bool) {
	current, projected, ok := metricValues(c.Metric, imp)
	if !ok {
		return domain.CovenantWarning{}, false
	}

	buffer := c.Threshold.Abs().Mul(covenantBuffer)
	var violated, near bool
	switch c.Kind {
	case domain.CovenantMax:
		violated = projected.GreaterThan(c.Threshold)
		near = projected.GreaterThan(c.Threshold.Sub(buffer))
	default:
		violated = projected.LessThan(c.Threshold)
		near = projected.LessThan(c.Threshold.Add(buffer))
	}
	if !violated && !near {
		return domain.CovenantWarning{}, false
	}

	w := domain.CovenantWarning{
		Covenant:    c.Name,
		Metric:      c.Metric,
		Threshold:   c.Threshold,
		Current:     current,
		Projected:   projected,
		IsViolation: violated,
		Severity:    domain.SeverityWarning,
	}
	if violated {
		w.Severity = domain.SeverityCritical
	}
	return w, true
}

// ImpactErrors reports negative projected figures.
func ImpactErrors(imp *domain.DistributionImpact) []string {
	if imp == nil {
		return nil
	}
	var errs []string
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"NAV", imp.NAVAfter},
		{"DPI", imp.DPIAfter},
		{"TVPI", imp.TVPIAfter},
	} {
		if f.value.IsNegative() {
			errs = append(errs, fmt.Sprintf("Projected %s after distribution is negative (%s)", f.name, f.value.String()))
		}
	}
	return errs
}
