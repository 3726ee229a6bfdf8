package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pesio-ai/be-fund-distributions/internal/approval"
	"github.com/pesio-ai/be-fund-distributions/internal/client"
	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/common/logger"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// ApprovalRoutingService orchestrates the multi-step approval workflow of
// submitted distributions and administers the approval rules.
type ApprovalRoutingService struct {
	distributions DistributionStore
	rules         RuleStore
	audit         AuditStore
	notifier      Notifier
	log           *logger.Logger
	now           func() time.Time
}

// NewApprovalRoutingService creates a new ApprovalRoutingService.
func NewApprovalRoutingService(
	distributions DistributionStore,
	rules RuleStore,
	audit AuditStore,
	notifier Notifier,
	log *logger.Logger,
) *ApprovalRoutingService {
	return &ApprovalRoutingService{
		distributions: distributions,
		rules:         rules,
		audit:         audit,
		notifier:      notifier,
		log:           log,
		now:           time.Now,
	}
}

// ── Decisions ─────────────────────────────────────────────────────────────────

var decisionAction = map[approval.Action]string{
	approval.ActionApprove: "approved",
	approval.ActionReject:  "rejected",
	approval.ActionReturn:  "returned",
}

// DecideStep records an approver's decision. When every step is approved the
// distribution becomes approved. Reject and return halt the chain but leave
// the distribution pending-approval until ApplyOutcome is called.
func (s *ApprovalRoutingService) DecideStep(ctx context.Context, distributionID string, dec approval.Decision) (*domain.Distribution, approval.Outcome, error) {
	d, err := s.distributions.GetByID(ctx, distributionID)
	if err != nil {
		return nil, "", err
	}
	if step := findStep(d.ApprovalSteps, dec.StepID); step != nil {
		if err := assertCanAct(step, dec.Actor); err != nil {
			return nil, "", err
		}
	}

	dec.At = s.now()
	next, outcome, err := approval.Decide(*d, dec)
	if err != nil {
		return nil, "", err
	}
	if outcome == approval.OutcomeApproved {
		next.Status = domain.StatusApproved
	}

	if err := s.distributions.Update(ctx, &next); err != nil {
		s.log.Error().Err(err).
			Str("distribution_id", distributionID).
			Str("step_id", dec.StepID).
			Msg("Failed to persist approval decision")
		return nil, "", err
	}

	appendAudit(ctx, s.audit, s.log, &domain.AuditEntry{
		DistributionID: next.ID,
		StepID:         dec.StepID,
		Action:         decisionAction[dec.Action],
		PerformedBy:    dec.Actor,
		StatusBefore:   d.Status,
		StatusAfter:    next.Status,
		Comment:        dec.Comment,
		Metadata:       map[string]any{"outcome": string(outcome)},
	})

	submitter := []string{next.SubmittedBy}
	switch outcome {
	case approval.OutcomeApproved:
		s.notify(ctx, client.EventDistributionApproved, &next, dec.Actor, submitter, nil)
	case approval.OutcomeRejected:
		s.notify(ctx, client.EventDistributionRejected, &next, dec.Actor, submitter,
			map[string]any{"comment": dec.Comment})
	case approval.OutcomeReturned:
		s.notify(ctx, client.EventDistributionReturned, &next, dec.Actor, submitter,
			map[string]any{"comment": dec.Comment})
	default:
		if cursorMoved(d.CurrentApprovalStep, next.CurrentApprovalStep) {
			s.notify(ctx, client.EventApprovalRequired, &next, dec.Actor,
				approverIDs(next.ApprovalSteps, next.CurrentApprovalStep), nil)
		}
	}

	s.log.Info().
		Str("distribution_id", next.ID).
		Str("step_id", dec.StepID).
		Str("action", string(dec.Action)).
		Str("outcome", string(outcome)).
		Msg("Approval decision recorded")
	return &next, outcome, nil
}

// ApplyOutcome moves a halted distribution to rejected or returned.
func (s *ApprovalRoutingService) ApplyOutcome(ctx context.Context, distributionID, actor string) (*domain.Distribution, error) {
	d, err := s.distributions.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.StatusPendingApproval {
		return nil, errors.Conflict(fmt.Sprintf("distribution is not pending approval (status: %s)", d.Status))
	}

	var target domain.DistributionStatus
	switch approval.OutcomeOf(d.ApprovalSteps) {
	case approval.OutcomeRejected:
		target = domain.StatusRejected
	case approval.OutcomeReturned:
		target = domain.StatusReturned
	default:
		return nil, errors.Conflict("approval chain has not been halted")
	}
	return s.transition(ctx, d, target, actor, "outcome_applied", nil)
}

// Reopen moves a returned distribution back to draft for revision. Its
// approval steps are rebuilt on the next submission.
func (s *ApprovalRoutingService) Reopen(ctx context.Context, distributionID, actor string) (*domain.Distribution, error) {
	d, err := s.distributions.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.StatusReturned {
		return nil, errors.Conflict(fmt.Sprintf("only returned distributions can be reopened (status: %s)", d.Status))
	}
	return s.transition(ctx, d, domain.StatusDraft, actor, "reopened", func(next *domain.Distribution) {
		next.IsDraft = true
		next.RevisionNumber++
	})
}

// Complete marks an approved distribution as paid out.
func (s *ApprovalRoutingService) Complete(ctx context.Context, distributionID, actor string) (*domain.Distribution, error) {
	d, err := s.distributions.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.StatusApproved {
		return nil, errors.Conflict(fmt.Sprintf("only approved distributions can be completed (status: %s)", d.Status))
	}

	now := s.now()
	next, err := s.transition(ctx, d, domain.StatusCompleted, actor, "completed", func(next *domain.Distribution) {
		next.CompletedAt = &now
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, client.EventDistributionCompleted, next, actor, []string{next.CreatedBy}, nil)
	return next, nil
}

// transition persists a status change of d and records it in the audit log.
func (s *ApprovalRoutingService) transition(
	ctx context.Context,
	d *domain.Distribution,
	target domain.DistributionStatus,
	actor, action string,
	mutate func(*domain.Distribution),
) (*domain.Distribution, error) {
	next := d.Clone()
	next.Status = target
	next.IsDraft = false
	next.UpdatedAt = s.now()
	if mutate != nil {
		mutate(&next)
	}

	if err := s.distributions.Update(ctx, &next); err != nil {
		s.log.Error().Err(err).
			Str("distribution_id", d.ID).
			Str("status", string(target)).
			Msg("Failed to persist distribution status")
		return nil, err
	}

	appendAudit(ctx, s.audit, s.log, &domain.AuditEntry{
		DistributionID: next.ID,
		Action:         action,
		PerformedBy:    actor,
		StatusBefore:   d.Status,
		StatusAfter:    target,
	})

	s.log.Info().
		Str("distribution_id", next.ID).
		Str("status_before", string(d.Status)).
		Str("status_after", string(target)).
		Msg("Distribution status changed")
	return &next, nil
}

// ── Query helpers ─────────────────────────────────────────────────────────────

// AuditTrail is the chronological trail derived from the step snapshot plus
// the persisted append-only log.
type AuditTrail struct {
	Events []approval.TrailEvent `json:"events"`
	Log    []domain.AuditEntry   `json:"log"`
}

// GetAuditTrail returns the full audit trail of a distribution.
func (s *ApprovalRoutingService) GetAuditTrail(ctx context.Context, distributionID string) (*AuditTrail, error) {
	d, err := s.distributions.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.audit.GetByDistributionID(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return &AuditTrail{Events: approval.AuditTrail(*d), Log: entries}, nil
}

// GetActionableSteps returns the steps currently awaiting a decision.
func (s *ApprovalRoutingService) GetActionableSteps(ctx context.Context, distributionID string) ([]domain.ApprovalStep, error) {
	d, err := s.distributions.GetByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.StatusPendingApproval {
		return []domain.ApprovalStep{}, nil
	}
	idx := approval.ActionableSteps(d.ApprovalSteps, d.CurrentApprovalStep)
	steps := make([]domain.ApprovalStep, 0, len(idx))
	for _, i := range idx {
		steps = append(steps, d.ApprovalSteps[i])
	}
	return steps, nil
}

// ── Rule administration ───────────────────────────────────────────────────────

// ListRules returns the rules of a fund in selection order.
func (s *ApprovalRoutingService) ListRules(ctx context.Context, fundID string, activeOnly bool) ([]domain.ApprovalRule, error) {
	rules, err := s.rules.List(ctx, fundID, activeOnly)
	if err != nil {
		return nil, err
	}
	return approval.SortRules(rules), nil
}

// CreateRule validates and stores a new rule. An active rule may not overlap
// another active rule of the same fund.
func (s *ApprovalRoutingService) CreateRule(ctx context.Context, rule *domain.ApprovalRule) error {
	if err := s.checkRule(ctx, *rule); err != nil {
		return err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return err
	}
	s.log.Info().Str("rule_id", rule.ID).Str("fund_id", rule.FundID).Msg("Approval rule created")
	return nil
}

// UpdateRule validates and replaces an existing rule.
func (s *ApprovalRoutingService) UpdateRule(ctx context.Context, rule *domain.ApprovalRule) error {
	current, err := s.rules.GetByID(ctx, rule.ID)
	if err != nil {
		return err
	}
	rule.FundID = current.FundID
	if err := s.checkRule(ctx, *rule); err != nil {
		return err
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		return err
	}
	s.log.Info().Str("rule_id", rule.ID).Msg("Approval rule updated")
	return nil
}

// DeleteRule removes a rule. Submitted distributions keep their step snapshot.
func (s *ApprovalRoutingService) DeleteRule(ctx context.Context, id string) error {
	return s.rules.Delete(ctx, id)
}

func (s *ApprovalRoutingService) checkRule(ctx context.Context, rule domain.ApprovalRule) error {
	if err := approval.ValidateRule(rule); err != nil {
		return err
	}
	if !rule.IsActive {
		return nil
	}
	existing, err := s.rules.List(ctx, rule.FundID, true)
	if err != nil {
		return err
	}
	return approval.CheckOverlap(existing, rule)
}

func (s *ApprovalRoutingService) notify(ctx context.Context, event string, d *domain.Distribution, actor string, recipients []string, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishDistributionEvent(ctx, event, d.ID, d.FundID, actor, nonEmpty(recipients), payload)
}

// ── Authorization helper ──────────────────────────────────────────────────────

// assertCanAct checks that userID is the approver assigned to a step.
// Steps without an assigned approver can be acted on by anyone.
func assertCanAct(step *domain.ApprovalStep, userID string) error {
	if step.ApproverID == "" || step.ApproverID == userID {
		return nil
	}
	return errors.New(errors.ErrCodeUnauthorized, "user is not authorized to act on this approval step")
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// appendAudit writes an audit entry and logs a warning on failure (never returns error).
func appendAudit(ctx context.Context, store AuditStore, log *logger.Logger, entry *domain.AuditEntry) {
	if err := store.Append(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("distribution_id", entry.DistributionID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}

func findStep(steps []domain.ApprovalStep, id string) *domain.ApprovalStep {
	for i := range steps {
		if steps[i].ID == id {
			return &steps[i]
		}
	}
	return nil
}

// approverIDs lists the distinct approvers of the pending steps of order, or
// of every step when order is nil.
func approverIDs(steps []domain.ApprovalStep, order *int) []string {
	seen := map[string]bool{}
	var ids []string
	for _, st := range steps {
		if order != nil && (st.Order != *order || st.Status != domain.StepPending) {
			continue
		}
		if st.ApproverID == "" || seen[st.ApproverID] {
			continue
		}
		seen[st.ApproverID] = true
		ids = append(ids, st.ApproverID)
	}
	return ids
}

func cursorMoved(before, after *int) bool {
	if before == nil || after == nil {
		return before != after
	}
	return *before != *after
}

func nonEmpty(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
