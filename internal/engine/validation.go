package engine

import (
	"fmt"
	"strings"

	"github.com/pesio-ai/be-fund-distributions/internal/approval"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// ValidateStep returns the blocking errors of one wizard step.
func ValidateStep(s WizardState, step WizardStep) []string {
	d := s.Distribution
	switch step {
	case StepEventDetails:
		return validateEventDetails(d)
	case StepFees:
		var errs []string
		for i, item := range d.FeeLineItems {
			errs = append(errs, FeeItemErrors(i, item)...)
		}
		return errs
	case StepWaterfall:
		if d.EventType.RequiresWaterfall() && d.WaterfallScenarioID == "" {
			return []string{fmt.Sprintf("A waterfall scenario is required for %s events", d.EventType)}
		}
	case StepAllocations:
		return validateAllocations(d.LPAllocations)
	case StepTax:
		var errs []string
		for _, a := range d.LPAllocations {
			if !TaxRateInRange(a.TaxWithholdingRate) {
				errs = append(errs, fmt.Sprintf("%s: tax withholding rate %s must be between 0 and 100",
					displayName(a), a.TaxWithholdingRate.String()))
			}
		}
		return errs
	case StepImpact:
		return ImpactErrors(d.Impact)
	case StepStatements:
		var errs []string
		if d.StatementTemplateID == "" {
			errs = append(errs, "A statement template is required")
		}
		if strings.TrimSpace(d.EmailSubject) == "" {
			errs = append(errs, "An email subject is required")
		}
		if strings.TrimSpace(d.EmailBody) == "" {
			errs = append(errs, "An email body is required")
		}
		return errs
	case StepReview:
		if _, err := approval.SelectRule(s.Directories.ApprovalRules, d.TotalDistributed); err != nil {
			return []string{fmt.Sprintf("No approval rule matches the total distributed of %s", formatMoney(d.TotalDistributed))}
		}
	}
	return nil
}

// ValidateAll validates every step and keeps only the steps with errors.
func ValidateAll(s WizardState) StepErrors {
	out := StepErrors{}
	for _, step := range WizardSteps {
		if errs := ValidateStep(s, step); len(errs) > 0 {
			out[step] = errs
		}
	}
	return out
}

func validateEventDetails(d domain.Distribution) []string {
	var errs []string
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, "Distribution name is required")
	}
	switch {
	case d.EventType == "":
		errs = append(errs, "Event type is required")
	case !d.EventType.Valid():
		errs = append(errs, fmt.Sprintf("Unknown event type %q", d.EventType))
	}
	if d.EventDate == nil || d.EventDate.IsZero() {
		errs = append(errs, "Event date is required")
	}
	if !d.GrossProceeds.IsPositive() {
		errs = append(errs, "Gross proceeds must be greater than zero")
	}
	return errs
}

func validateAllocations(allocs []domain.LPAllocation) []string {
	if len(allocs) == 0 {
		return []string{"At least one LP allocation is required"}
	}
	var errs []string
	for _, a := range allocs {
		errs = append(errs, AllocationIssues(a)...)
	}
	total := SumAllocations(allocs).ProRata
	if differsBy(total, hundred, ProRataTolerance) {
		errs = append(errs, fmt.Sprintf("Pro-rata percentages total %s%%, expected 100%%", total.StringFixed(2)))
	}
	return errs
}

func displayName(a domain.LPAllocation) string {
	if a.LPName != "" {
		return a.LPName
	}
	return a.LPID
}
