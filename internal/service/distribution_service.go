package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pesio-ai/be-fund-distributions/internal/approval"
	"github.com/pesio-ai/be-fund-distributions/internal/client"
	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/common/logger"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
	"github.com/pesio-ai/be-fund-distributions/internal/engine"
)

// historyLimit bounds how many prior distributions feed the prior-amount
// lookup of a new session.
const historyLimit = 50

// DistributionService drives wizard sessions and commits their results.
// Sessions are carried by the caller; the service only loads directories,
// reduces actions and persists aggregates.
type DistributionService struct {
	distributions DistributionStore
	rules         RuleStore
	audit         AuditStore
	tx            Transactor
	directories   DirectoryReader
	waterfall     WaterfallCalculator
	notifier      Notifier
	log           *logger.Logger
	now           func() time.Time

	previews previewTracker
}

// NewDistributionService creates a new DistributionService. tx, waterfall
// and notifier may be nil; without tx a submission's writes are not atomic.
func NewDistributionService(
	distributions DistributionStore,
	rules RuleStore,
	audit AuditStore,
	tx Transactor,
	directories DirectoryReader,
	waterfall WaterfallCalculator,
	notifier Notifier,
	log *logger.Logger,
) *DistributionService {
	return &DistributionService{
		distributions: distributions,
		rules:         rules,
		audit:         audit,
		tx:            tx,
		directories:   directories,
		waterfall:     waterfall,
		notifier:      notifier,
		log:           log,
		now:           time.Now,
		previews:      previewTracker{latest: map[string]uint64{}},
	}
}

// ── Sessions ──────────────────────────────────────────────────────────────────

// StartSession opens a wizard over a new draft for fundID, or over the stored
// draft distributionID when it is set.
func (s *DistributionService) StartSession(ctx context.Context, fundID, distributionID string) (engine.WizardState, error) {
	d := domain.Distribution{FundID: fundID}
	if distributionID != "" {
		stored, err := s.distributions.GetByID(ctx, distributionID)
		if err != nil {
			return engine.WizardState{}, err
		}
		if stored.Status != domain.StatusDraft {
			return engine.WizardState{}, errors.Conflict(
				fmt.Sprintf("distribution is not editable (status: %s)", stored.Status))
		}
		d = *stored
	}
	if d.FundID == "" {
		return engine.WizardState{}, errors.InvalidInput("fund_id", "fund id is required")
	}

	dirs, err := s.loadDirectories(ctx, d.FundID)
	if err != nil {
		return engine.WizardState{}, err
	}

	state := engine.NewWizardState(d, dirs)
	s.log.Debug().
		Str("fund_id", d.FundID).
		Str("distribution_id", d.ID).
		Int("lp_profiles", len(dirs.Profiles)).
		Msg("Wizard session started")
	return state, nil
}

// loadDirectories fetches every read-only input of a session.
func (s *DistributionService) loadDirectories(ctx context.Context, fundID string) (engine.Directories, error) {
	var (
		dirs engine.Directories
		err  error
	)
	if dirs.Profiles, err = s.directories.ListLPProfiles(ctx, fundID); err != nil {
		return dirs, err
	}
	if dirs.FeeTemplates, err = s.directories.ListFeeTemplates(ctx, fundID); err != nil {
		return dirs, err
	}
	if dirs.StatementTemplates, err = s.directories.ListStatementTemplates(ctx, fundID); err != nil {
		return dirs, err
	}
	if dirs.Scenarios, err = s.directories.ListWaterfallScenarios(ctx, fundID); err != nil {
		return dirs, err
	}
	if dirs.FundMetrics, err = s.directories.GetFundMetrics(ctx, fundID); err != nil {
		return dirs, err
	}
	if dirs.Covenants, err = s.directories.ListCovenants(ctx, fundID); err != nil {
		return dirs, err
	}
	if dirs.ApprovalRules, err = s.activeRules(ctx, fundID); err != nil {
		return dirs, err
	}
	if dirs.History, err = s.distributions.ListByFund(ctx, fundID, historyLimit); err != nil {
		return dirs, err
	}
	return dirs, nil
}

// activeRules lists the fund's active rules in selection order.
func (s *DistributionService) activeRules(ctx context.Context, fundID string) ([]domain.ApprovalRule, error) {
	rules, err := s.rules.List(ctx, fundID, true)
	if err != nil {
		return nil, err
	}
	return approval.SortRules(rules), nil
}

// Apply decodes and reduces one wizard action. Selecting a scenario also
// resolves it against the waterfall service.
func (s *DistributionService) Apply(ctx context.Context, state engine.WizardState, kind string, payload json.RawMessage) (engine.WizardState, error) {
	action, err := engine.DecodeAction(kind, payload)
	if err != nil {
		return state, err
	}
	next, err := engine.Reduce(state, action)
	if err != nil {
		return state, err
	}
	if _, ok := action.(*engine.SelectWaterfallScenario); ok {
		return s.ResolveScenario(ctx, next)
	}
	return next, nil
}

// Advance validates the current step and moves forward when it is clean.
func (s *DistributionService) Advance(_ context.Context, state engine.WizardState) (engine.WizardState, error) {
	return engine.Reduce(state, engine.Advance{})
}

// ResolveScenario runs the selected scenario through the waterfall service
// and records the results. Failures are stored on the session as a
// resolution error, not returned.
func (s *DistributionService) ResolveScenario(ctx context.Context, state engine.WizardState) (engine.WizardState, error) {
	scenarioID := state.Distribution.WaterfallScenarioID
	if scenarioID == "" {
		return state, nil
	}

	resolution := engine.ResolveWaterfall{ScenarioID: scenarioID}
	results, err := s.calculate(ctx, state, scenarioID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("scenario_id", scenarioID).
			Str("fund_id", state.Distribution.FundID).
			Msg("Waterfall scenario could not be resolved")
		resolution.Error = err.Error()
	} else {
		resolution.Results = results
	}
	return engine.Reduce(state, resolution)
}

func (s *DistributionService) calculate(ctx context.Context, state engine.WizardState, scenarioID string) (*domain.WaterfallResults, error) {
	if s.waterfall == nil {
		return nil, errors.New(errors.ErrCodeUnavailable, "waterfall service is not configured")
	}
	scenario, err := s.scenario(ctx, state, scenarioID)
	if err != nil {
		return nil, err
	}
	return s.waterfall.PerformWaterfallCalculation(ctx, *scenario)
}

func (s *DistributionService) scenario(ctx context.Context, state engine.WizardState, id string) (*domain.WaterfallScenario, error) {
	for i := range state.Directories.Scenarios {
		if state.Directories.Scenarios[i].ID == id {
			sc := state.Directories.Scenarios[i]
			return &sc, nil
		}
	}
	return s.directories.GetWaterfallScenario(ctx, id)
}

// ── Waterfall preview ─────────────────────────────────────────────────────────

// PreviewResult is the outcome of an ad-hoc waterfall preview. Stale is set
// when a newer preview was started for the same session while this one ran;
// callers should discard stale results.
type PreviewResult struct {
	Results *domain.WaterfallResults `json:"results,omitempty"`
	Stale   bool                     `json:"stale"`
}

// previewTracker remembers the most recently started preview per session.
type previewTracker struct {
	mu     sync.Mutex
	seq    uint64
	latest map[string]uint64
}

func (t *previewTracker) start(sessionID string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.latest[sessionID] = t.seq
	return t.seq
}

// finish reports whether ticket is still the latest preview of the session.
func (t *previewTracker) finish(sessionID string, ticket uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest[sessionID] != ticket {
		return false
	}
	delete(t.latest, sessionID)
	return true
}

// PreviewWaterfall runs an unsaved what-if scenario. Superseded calls are not
// cancelled; their results come back marked stale.
func (s *DistributionService) PreviewWaterfall(ctx context.Context, sessionID string, scenario domain.WaterfallScenario) (*PreviewResult, error) {
	if sessionID == "" {
		return nil, errors.InvalidInput("session_id", "session id is required")
	}
	if s.waterfall == nil {
		return nil, errors.New(errors.ErrCodeUnavailable, "waterfall service is not configured")
	}

	ticket := s.previews.start(sessionID)
	results, err := s.waterfall.PerformWaterfallCalculation(ctx, scenario)
	latest := s.previews.finish(sessionID, ticket)
	if err != nil {
		return nil, err
	}
	if !latest {
		s.log.Debug().Str("session_id", sessionID).Msg("Discarding superseded waterfall preview")
		return &PreviewResult{Stale: true}, nil
	}
	return &PreviewResult{Results: results}, nil
}

// ── Commit ────────────────────────────────────────────────────────────────────

// SaveDraft persists the session as a draft. The in-memory session is left
// as it was when the save fails.
func (s *DistributionService) SaveDraft(ctx context.Context, state engine.WizardState, actor string) (*domain.Distribution, error) {
	existing, err := s.editable(ctx, state.Distribution.ID)
	if err != nil {
		return nil, err
	}

	d := engine.BuildAggregate(state, engine.Submission{
		Status: domain.StatusDraft,
		Actor:  actor,
		Now:    s.now(),
	}, existing)

	if err := s.persist(ctx, &d, existing); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("distribution_id", d.ID).
		Str("fund_id", d.FundID).
		Msg("Distribution draft saved")
	return &d, nil
}

// SubmitResult carries either the submitted distribution or the blocking
// validation errors that prevented submission.
type SubmitResult struct {
	Distribution *domain.Distribution `json:"distribution,omitempty"`
	Errors       engine.StepErrors    `json:"errors,omitempty"`
}

// Submit validates every wizard step against freshly loaded approval rules,
// routes the distribution to the matching approval chain and persists it as
// pending-approval together with its submitted audit record. Nothing is
// persisted when any step has errors.
func (s *DistributionService) Submit(ctx context.Context, state engine.WizardState, actor, comment string) (*SubmitResult, error) {
	rules, err := s.activeRules(ctx, state.Distribution.FundID)
	if err != nil {
		return nil, err
	}
	state.Directories.ApprovalRules = rules
	state = engine.Settle(state)

	if stepErrs := engine.ValidateAll(state); !stepErrs.Empty() {
		return &SubmitResult{Errors: stepErrs}, nil
	}

	existing, err := s.editable(ctx, state.Distribution.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d := engine.BuildAggregate(state, engine.Submission{
		Status:  domain.StatusPendingApproval,
		Actor:   actor,
		Comment: comment,
		Now:     now,
	}, existing)

	rule, err := approval.SelectRule(rules, d.TotalDistributed)
	if err != nil {
		return nil, err
	}
	d.ApprovalChainID = rule.ID
	d.ApprovalSteps = approval.BuildSteps(*rule, now)
	d.CurrentApprovalStep = approval.FirstOrder(d.ApprovalSteps)

	entry := &domain.AuditEntry{
		Action:       approval.ActionSubmitted,
		PerformedBy:  actor,
		StatusBefore: domain.StatusDraft,
		StatusAfter:  domain.StatusPendingApproval,
		Comment:      comment,
		Metadata: map[string]any{
			"rule_id":           rule.ID,
			"total_distributed": d.TotalDistributed.StringFixed(2),
			"revision_number":   d.RevisionNumber,
		},
	}
	err = s.atomically(ctx, func(ctx context.Context) error {
		if err := s.persist(ctx, &d, existing); err != nil {
			return err
		}
		entry.DistributionID = d.ID
		if err := s.audit.Append(ctx, entry); err != nil {
			s.log.Error().Err(err).
				Str("distribution_id", d.ID).
				Msg("Failed to record submission audit entry")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"name":              d.Name,
		"total_distributed": d.TotalDistributed.StringFixed(2),
	}
	s.notify(ctx, client.EventDistributionSubmitted, &d, actor, approverIDs(d.ApprovalSteps, nil), payload)
	s.notify(ctx, client.EventApprovalRequired, &d, actor,
		approverIDs(d.ApprovalSteps, d.CurrentApprovalStep), payload)

	s.log.Info().
		Str("distribution_id", d.ID).
		Str("rule_id", rule.ID).
		Int("approval_steps", len(d.ApprovalSteps)).
		Msg("Distribution submitted for approval")
	return &SubmitResult{Distribution: &d}, nil
}

// editable loads the stored version of id, if any, and checks it is a draft.
func (s *DistributionService) editable(ctx context.Context, id string) (*domain.Distribution, error) {
	if id == "" {
		return nil, nil
	}
	existing, err := s.distributions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != domain.StatusDraft {
		return nil, errors.Conflict(fmt.Sprintf("distribution is not editable (status: %s)", existing.Status))
	}
	return existing, nil
}

func (s *DistributionService) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTransaction(ctx, fn)
}

func (s *DistributionService) persist(ctx context.Context, d *domain.Distribution, existing *domain.Distribution) error {
	var err error
	if existing == nil {
		err = s.distributions.Create(ctx, d)
	} else {
		err = s.distributions.Update(ctx, d)
	}
	if err != nil {
		s.log.Error().Err(err).
			Str("distribution_id", d.ID).
			Str("status", string(d.Status)).
			Msg("Failed to persist distribution")
	}
	return err
}

func (s *DistributionService) notify(ctx context.Context, event string, d *domain.Distribution, actor string, recipients []string, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishDistributionEvent(ctx, event, d.ID, d.FundID, actor, recipients, payload)
}

// GetDistribution returns a stored distribution.
func (s *DistributionService) GetDistribution(ctx context.Context, id string) (*domain.Distribution, error) {
	return s.distributions.GetByID(ctx, id)
}
