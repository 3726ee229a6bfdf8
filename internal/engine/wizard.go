package engine

import (
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// WizardStep identifies one page of the distribution wizard.
type WizardStep string

const (
	StepEventDetails WizardStep = "event-details"
	StepFees         WizardStep = "fees"
	StepWaterfall    WizardStep = "waterfall"
	StepAllocations  WizardStep = "allocations"
	StepTax          WizardStep = "tax"
	StepImpact       WizardStep = "impact"
	StepStatements   WizardStep = "statements"
	StepReview       WizardStep = "review"
)

// WizardSteps lists the steps in navigation order.
var WizardSteps = []WizardStep{
	StepEventDetails,
	StepFees,
	StepWaterfall,
	StepAllocations,
	StepTax,
	StepImpact,
	StepStatements,
	StepReview,
}

// Index returns the position of s in WizardSteps, or -1.
func (s WizardStep) Index() int {
	for i, step := range WizardSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known step.
func (s WizardStep) Valid() bool {
	return s.Index() >= 0
}

// StepErrors holds blocking validation messages per wizard step.
type StepErrors map[WizardStep][]string

// Empty reports whether no step has errors.
func (e StepErrors) Empty() bool {
	for _, msgs := range e {
		if len(msgs) > 0 {
			return false
		}
	}
	return true
}

func (e StepErrors) clone() StepErrors {
	out := make(StepErrors, len(e))
	for k, v := range e {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Directories are the read-only inputs fetched once per wizard session.
type Directories struct {
	Profiles           []domain.LPProfile         `json:"profiles"`
	FeeTemplates       []domain.FeeTemplate       `json:"feeTemplates"`
	StatementTemplates []domain.StatementTemplate `json:"statementTemplates,omitempty"`
	ApprovalRules      []domain.ApprovalRule      `json:"approvalRules"`
	Scenarios          []domain.WaterfallScenario `json:"scenarios"`
	FundMetrics        *domain.FundMetrics        `json:"fundMetrics,omitempty"`
	Covenants          []domain.Covenant          `json:"covenants,omitempty"`
	History            []domain.Distribution      `json:"-"`
}

// WizardState is the complete in-memory state of one editing session.
type WizardState struct {
	Step            WizardStep                 `json:"step"`
	Distribution    domain.Distribution        `json:"distribution"`
	Directories     Directories                `json:"directories"`
	WaterfallError  string                     `json:"waterfallError,omitempty"`
	PriorNetAmounts map[string]decimal.Decimal `json:"priorNetAmounts,omitempty"`
	Errors          StepErrors                 `json:"errors,omitempty"`
	Warnings        []string                   `json:"warnings"`
}

// NewWizardState opens a session over d, which may be a fresh draft or a
// previously saved one.
func NewWizardState(d domain.Distribution, dirs Directories) WizardState {
	s := WizardState{
		Step:         StepEventDetails,
		Distribution: d.Clone(),
		Directories:  dirs,
		Errors:       StepErrors{},
	}
	if s.Distribution.Status == "" {
		s.Distribution.Status = domain.StatusDraft
		s.Distribution.IsDraft = true
	}
	if s.Distribution.RevisionNumber == 0 {
		s.Distribution.RevisionNumber = 1
	}
	s.PriorNetAmounts = PriorNetAmounts(dirs.History, d.FundID, d.ID)
	s.settle()
	return s
}

func (s WizardState) clone() WizardState {
	out := s
	out.Distribution = s.Distribution.Clone()
	out.Errors = s.Errors.clone()
	out.Warnings = append([]string(nil), s.Warnings...)
	return out
}

// Reduce applies action to a copy of state and returns the settled result.
// The input is never modified. On error the original state is returned.
func Reduce(state WizardState, action Action) (WizardState, error) {
	next := state.clone()
	if err := action.apply(&next); err != nil {
		return state, err
	}
	next.settle()
	return next, nil
}

// Settle returns a copy of state with every derived figure recomputed. Use it
// on states received from outside the reducer before validating them.
func Settle(state WizardState) WizardState {
	next := state.clone()
	next.settle()
	return next
}

// settle recomputes every derived figure, then runs reconciliation, so the
// validator always observes the outputs of the same action.
func (s *WizardState) settle() {
	d := &s.Distribution

	fees := CalculateFees(d.FeeLineItems, d.GrossProceeds)
	d.TotalFees = fees.Fees
	d.TotalExpenses = fees.Expenses
	d.NetProceeds = NetProceeds(d.GrossProceeds, fees)

	allocs := SumAllocations(d.LPAllocations)
	d.TotalTaxWithholding = allocs.Tax
	d.TotalDistributed = allocs.Net

	if m := s.Directories.FundMetrics; m != nil {
		d.Impact = ProjectImpact(*d, *m, s.Directories.Covenants)
	}

	s.Warnings = Reconcile(*d, s.WaterfallError)
	if s.Warnings == nil {
		s.Warnings = []string{}
	}
}
