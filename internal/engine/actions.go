package engine

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// Action is one wizard state transition. The set is closed.
type Action interface {
	apply(s *WizardState) error
}

// SetEventDetails replaces the event fields of the draft.
type SetEventDetails struct {
	Name          string           `json:"name"`
	EventType     domain.EventType `json:"eventType"`
	EventDate     *time.Time       `json:"eventDate,omitempty"`
	PaymentDate   *time.Time       `json:"paymentDate,omitempty"`
	Description   string           `json:"description"`
	GrossProceeds decimal.Decimal  `json:"grossProceeds"`
	IsRecurring   bool             `json:"isRecurring"`
}

func (a SetEventDetails) apply(s *WizardState) error {
	d := &s.Distribution
	d.Name = a.Name
	d.EventType = a.EventType
	d.EventDate = a.EventDate
	d.PaymentDate = a.PaymentDate
	d.Description = a.Description
	d.GrossProceeds = a.GrossProceeds
	d.IsRecurring = a.IsRecurring
	return nil
}

// AddFeeLineItem appends a line item, assigning an id when missing.
type AddFeeLineItem struct {
	Item domain.FeeLineItem `json:"item"`
}

func (a AddFeeLineItem) apply(s *WizardState) error {
	item := a.Item
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	s.Distribution.FeeLineItems = append(s.Distribution.FeeLineItems, item)
	return nil
}

// UpdateFeeLineItem replaces the line item with the same id.
type UpdateFeeLineItem struct {
	Item domain.FeeLineItem `json:"item"`
}

func (a UpdateFeeLineItem) apply(s *WizardState) error {
	for i := range s.Distribution.FeeLineItems {
		if s.Distribution.FeeLineItems[i].ID == a.Item.ID {
			s.Distribution.FeeLineItems[i] = a.Item
			return nil
		}
	}
	return errors.NotFound("fee_line_item", a.Item.ID)
}

// RemoveFeeLineItem deletes a line item by id.
type RemoveFeeLineItem struct {
	ID string `json:"id"`
}

func (a RemoveFeeLineItem) apply(s *WizardState) error {
	items := s.Distribution.FeeLineItems
	for i := range items {
		if items[i].ID == a.ID {
			s.Distribution.FeeLineItems = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return errors.NotFound("fee_line_item", a.ID)
}

// ApplyFeeTemplate appends copies of a template's items with fresh ids.
type ApplyFeeTemplate struct {
	TemplateID string `json:"templateId"`
}

func (a ApplyFeeTemplate) apply(s *WizardState) error {
	for _, tpl := range s.Directories.FeeTemplates {
		if tpl.ID != a.TemplateID {
			continue
		}
		for _, item := range tpl.Items {
			copied := item
			copied.ID = uuid.NewString()
			if item.Percentage != nil {
				p := *item.Percentage
				copied.Percentage = &p
			}
			s.Distribution.FeeLineItems = append(s.Distribution.FeeLineItems, copied)
		}
		return nil
	}
	return errors.NotFound("fee_template", a.TemplateID)
}

// SelectWaterfallScenario picks a scenario and drops any previous results.
// An empty id clears the selection.
type SelectWaterfallScenario struct {
	ScenarioID string `json:"scenarioId"`
}

func (a SelectWaterfallScenario) apply(s *WizardState) error {
	s.Distribution.WaterfallScenarioID = a.ScenarioID
	s.Distribution.WaterfallResults = nil
	s.WaterfallError = ""
	return nil
}

// ResolveWaterfall records the outcome of resolving the selected scenario.
// Outcomes for a scenario that is no longer selected are ignored.
type ResolveWaterfall struct {
	ScenarioID string                   `json:"scenarioId"`
	Results    *domain.WaterfallResults `json:"results,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

func (a ResolveWaterfall) apply(s *WizardState) error {
	if a.ScenarioID != s.Distribution.WaterfallScenarioID {
		return nil
	}
	s.WaterfallError = a.Error
	s.Distribution.WaterfallResults = nil
	if a.Error == "" && a.Results != nil {
		r := a.Results.Clone()
		s.Distribution.WaterfallResults = &r
	}
	return nil
}

// SeedAllocations populates allocations from the LP profiles. It runs at most
// once per session: existing allocations are never replaced.
type SeedAllocations struct{}

func (SeedAllocations) apply(s *WizardState) error {
	if len(s.Distribution.LPAllocations) > 0 || len(s.Directories.Profiles) == 0 {
		return nil
	}
	// Net proceeds must reflect the current fee lines before weighting.
	s.settle()
	s.Distribution.LPAllocations = SeedFromProfiles(s.Directories.Profiles, s.Distribution.NetProceeds)
	return nil
}

// RecomputeAllocations re-derives every allocation from current net proceeds.
type RecomputeAllocations struct{}

func (RecomputeAllocations) apply(s *WizardState) error {
	s.settle()
	s.Distribution.LPAllocations = RecomputeAllocationAmounts(s.Distribution.LPAllocations, s.Distribution.NetProceeds)
	return nil
}

// EditAllocationGross overwrites one LP's gross amount.
type EditAllocationGross struct {
	LPID   string          `json:"lpId"`
	Amount decimal.Decimal `json:"amount"`
}

func (a EditAllocationGross) apply(s *WizardState) error {
	allocs, err := EditGrossAmount(s.Distribution.LPAllocations, a.LPID, a.Amount)
	if err != nil {
		return err
	}
	s.Distribution.LPAllocations = allocs
	return nil
}

// EditAllocationNet overwrites one LP's net amount.
type EditAllocationNet struct {
	LPID   string          `json:"lpId"`
	Amount decimal.Decimal `json:"amount"`
}

func (a EditAllocationNet) apply(s *WizardState) error {
	allocs, err := EditNetAmount(s.Distribution.LPAllocations, a.LPID, a.Amount)
	if err != nil {
		return err
	}
	s.Distribution.LPAllocations = allocs
	return nil
}

// ConfirmAllocation sets an LP's confirmation flag.
type ConfirmAllocation struct {
	LPID      string `json:"lpId"`
	Confirmed bool   `json:"confirmed"`
}

func (a ConfirmAllocation) apply(s *WizardState) error {
	allocs, err := ConfirmLPAllocation(s.Distribution.LPAllocations, a.LPID, a.Confirmed)
	if err != nil {
		return err
	}
	s.Distribution.LPAllocations = allocs
	return nil
}

// SetTaxRate overrides one LP's withholding rate.
type SetTaxRate struct {
	LPID string          `json:"lpId"`
	Rate decimal.Decimal `json:"rate"`
}

func (a SetTaxRate) apply(s *WizardState) error {
	allocs, err := OverrideTaxRate(s.Distribution.LPAllocations, a.LPID, a.Rate)
	if err != nil {
		return err
	}
	s.Distribution.LPAllocations = allocs
	return nil
}

// ClearTaxOverride reverts one LP to its profile default rate.
type ClearTaxOverride struct {
	LPID string `json:"lpId"`
}

func (a ClearTaxOverride) apply(s *WizardState) error {
	allocs, err := RevertTaxRate(s.Distribution.LPAllocations, a.LPID, s.Directories.Profiles)
	if err != nil {
		return err
	}
	s.Distribution.LPAllocations = allocs
	return nil
}

// SetStatementSettings sets the LP statement template and notice email.
type SetStatementSettings struct {
	TemplateID   string `json:"templateId"`
	EmailSubject string `json:"emailSubject"`
	EmailBody    string `json:"emailBody"`
}

func (a SetStatementSettings) apply(s *WizardState) error {
	s.Distribution.StatementTemplateID = a.TemplateID
	s.Distribution.EmailSubject = a.EmailSubject
	s.Distribution.EmailBody = a.EmailBody
	return nil
}

// SetFundMetrics replaces the metrics and covenants used for the projection.
type SetFundMetrics struct {
	Metrics   domain.FundMetrics `json:"metrics"`
	Covenants []domain.Covenant  `json:"covenants"`
}

func (a SetFundMetrics) apply(s *WizardState) error {
	m := a.Metrics
	s.Directories.FundMetrics = &m
	s.Directories.Covenants = append([]domain.Covenant(nil), a.Covenants...)
	return nil
}

// Advance validates the current step and moves forward when it is clean.
type Advance struct{}

func (Advance) apply(s *WizardState) error {
	s.settle()
	errs := ValidateStep(*s, s.Step)
	if len(errs) > 0 {
		s.Errors[s.Step] = errs
		return nil
	}
	delete(s.Errors, s.Step)
	if i := s.Step.Index(); i < len(WizardSteps)-1 {
		s.Step = WizardSteps[i+1]
	}
	return nil
}

// Back moves to the previous step without validating.
type Back struct{}

func (Back) apply(s *WizardState) error {
	if i := s.Step.Index(); i > 0 {
		s.Step = WizardSteps[i-1]
	}
	return nil
}

// GoTo jumps to any step without validating.
type GoTo struct {
	Step WizardStep `json:"step"`
}

func (a GoTo) apply(s *WizardState) error {
	if !a.Step.Valid() {
		return errors.InvalidInput("step", "unknown wizard step "+string(a.Step))
	}
	s.Step = a.Step
	return nil
}

var actionRegistry = map[string]func() Action{
	"set-event-details":         func() Action { return &SetEventDetails{} },
	"add-fee-line-item":         func() Action { return &AddFeeLineItem{} },
	"update-fee-line-item":      func() Action { return &UpdateFeeLineItem{} },
	"remove-fee-line-item":      func() Action { return &RemoveFeeLineItem{} },
	"apply-fee-template":        func() Action { return &ApplyFeeTemplate{} },
	"select-waterfall-scenario": func() Action { return &SelectWaterfallScenario{} },
	"resolve-waterfall":         func() Action { return &ResolveWaterfall{} },
	"seed-allocations":          func() Action { return &SeedAllocations{} },
	"recompute-allocations":     func() Action { return &RecomputeAllocations{} },
	"edit-allocation-gross":     func() Action { return &EditAllocationGross{} },
	"edit-allocation-net":       func() Action { return &EditAllocationNet{} },
	"confirm-allocation":        func() Action { return &ConfirmAllocation{} },
	"set-tax-rate":              func() Action { return &SetTaxRate{} },
	"clear-tax-override":        func() Action { return &ClearTaxOverride{} },
	"set-statement-settings":    func() Action { return &SetStatementSettings{} },
	"set-fund-metrics":          func() Action { return &SetFundMetrics{} },
	"advance":                   func() Action { return &Advance{} },
	"back":                      func() Action { return &Back{} },
	"go-to":                     func() Action { return &GoTo{} },
}

// DecodeAction builds an action from its wire name and JSON payload.
func DecodeAction(kind string, payload json.RawMessage) (Action, error) {
	factory, ok := actionRegistry[kind]
	if !ok {
		return nil, errors.InvalidInput("type", "unknown action "+kind)
	}
	action := factory()
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, action); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid action payload")
		}
	}
	return action, nil
}
