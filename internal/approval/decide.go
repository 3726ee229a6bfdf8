package approval

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// Action is an approver's decision on a step.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReturn  Action = "return"
)

var actionStatus = map[Action]domain.StepStatus{
	ActionApprove: domain.StepApproved,
	ActionReject:  domain.StepRejected,
	ActionReturn:  domain.StepReturned,
}

// Decision is a single approver response.
type Decision struct {
	StepID  string    `json:"stepId"`
	Action  Action    `json:"action"`
	Comment string    `json:"comment"`
	Actor   string    `json:"actor"`
	At      time.Time `json:"at"`
}

// Outcome summarizes the step snapshot.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeReturned Outcome = "returned"
)

// OutcomeOf derives the chain outcome from its steps.
func OutcomeOf(steps []domain.ApprovalStep) Outcome {
	if len(steps) == 0 {
		return OutcomePending
	}
	approved := 0
	for _, s := range steps {
		switch s.Status {
		case domain.StepRejected:
			return OutcomeRejected
		case domain.StepReturned:
			return OutcomeReturned
		case domain.StepApproved:
			approved++
		}
	}
	if approved == len(steps) {
		return OutcomeApproved
	}
	return OutcomePending
}

// Decide applies a decision to a copy of d. Only a pending step of the
// current order can be decided, and a comment is mandatory. Reject and return
// halt the chain without moving the cursor; approving advances the cursor
// once every step of the current order is approved.
func Decide(d domain.Distribution, dec Decision) (domain.Distribution, Outcome, error) {
	if d.Status != domain.StatusPendingApproval {
		return d, "", errors.Conflict(fmt.Sprintf("distribution is %s, not pending approval", d.Status))
	}
	status, ok := actionStatus[dec.Action]
	if !ok {
		return d, "", errors.InvalidInput("action", fmt.Sprintf("unknown action %q", dec.Action))
	}
	comment := strings.TrimSpace(dec.Comment)
	if comment == "" {
		return d, "", errors.InvalidInput("comment", "a comment is required")
	}

	idx := -1
	for i, s := range d.ApprovalSteps {
		if s.ID == dec.StepID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return d, "", errors.NotFound("approval_step", dec.StepID)
	}
	if d.ApprovalSteps[idx].Status.Terminal() {
		return d, "", errors.Conflict(fmt.Sprintf("step %s is already %s", dec.StepID, d.ApprovalSteps[idx].Status))
	}
	actionable := false
	for _, i := range ActionableSteps(d.ApprovalSteps, d.CurrentApprovalStep) {
		if i == idx {
			actionable = true
			break
		}
	}
	if !actionable {
		return d, "", errors.Conflict(fmt.Sprintf("step %s is not awaiting a decision", dec.StepID))
	}

	out := d.Clone()
	at := dec.At
	step := &out.ApprovalSteps[idx]
	step.Status = status
	step.Comment = comment
	step.RespondedAt = &at

	order := step.Order
	out.Comments = append(out.Comments, domain.Comment{
		ID:        uuid.NewString(),
		Kind:      domain.CommentApproval,
		Author:    dec.Actor,
		Body:      comment,
		StepOrder: &order,
		CreatedAt: at,
	})

	if status == domain.StepApproved && groupApproved(out.ApprovalSteps, order) {
		if next, ok := nextOrder(out.ApprovalSteps, order); ok {
			out.CurrentApprovalStep = &next
		}
	}
	out.UpdatedAt = at

	return out, OutcomeOf(out.ApprovalSteps), nil
}

// TrailEvent is one entry of the derived audit trail.
type TrailEvent struct {
	Action    string    `json:"action"`
	StepID    string    `json:"stepId,omitempty"`
	Order     int       `json:"order,omitempty"`
	Actor     string    `json:"actor"`
	Role      string    `json:"role,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ActionSubmitted labels the opening event of every trail.
const ActionSubmitted = "submitted"

// AuditTrail derives the chronological trail of a distribution: the
// submission event followed by every decided step, ordered by response time
// falling back to assignment time. It always returns a fresh slice.
func AuditTrail(d domain.Distribution) []TrailEvent {
	trail := make([]TrailEvent, 0, len(d.ApprovalSteps)+1)
	if d.SubmittedAt != nil {
		trail = append(trail, TrailEvent{
			Action:    ActionSubmitted,
			Actor:     d.SubmittedBy,
			Timestamp: *d.SubmittedAt,
		})
	}

	var decided []TrailEvent
	for _, s := range d.ApprovalSteps {
		if s.Status == domain.StepPending {
			continue
		}
		at := s.AssignedAt
		if s.RespondedAt != nil {
			at = *s.RespondedAt
		}
		decided = append(decided, TrailEvent{
			Action:    string(s.Status),
			StepID:    s.ID,
			Order:     s.Order,
			Actor:     s.ApproverName,
			Role:      s.ApproverRole,
			Comment:   s.Comment,
			Timestamp: at,
		})
	}
	sort.SliceStable(decided, func(i, j int) bool { return decided[i].Timestamp.Before(decided[j].Timestamp) })

	return append(trail, decided...)
}
