package approval

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// BuildSteps materializes one pending step per approver, ordered by Order.
// Approvers sharing an order form a parallel group.
func BuildSteps(rule domain.ApprovalRule, now time.Time) []domain.ApprovalStep {
	approvers := append([]domain.Approver(nil), rule.Approvers...)
	sort.SliceStable(approvers, func(i, j int) bool { return approvers[i].Order < approvers[j].Order })

	groupSize := make(map[int]int, len(approvers))
	for _, a := range approvers {
		groupSize[a.Order]++
	}

	steps := make([]domain.ApprovalStep, 0, len(approvers))
	for _, a := range approvers {
		steps = append(steps, domain.ApprovalStep{
			ID:            uuid.NewString(),
			Order:         a.Order,
			ApproverID:    a.ID,
			ApproverName:  a.Name,
			ApproverRole:  a.Role,
			ApproverEmail: a.Email,
			IsParallel:    a.IsParallel || groupSize[a.Order] > 1,
			Status:        domain.StepPending,
			AssignedAt:    now,
		})
	}
	return steps
}

// FirstOrder returns the lowest step order, or nil when there are no steps.
func FirstOrder(steps []domain.ApprovalStep) *int {
	if len(steps) == 0 {
		return nil
	}
	lowest := steps[0].Order
	for _, s := range steps[1:] {
		if s.Order < lowest {
			lowest = s.Order
		}
	}
	return &lowest
}

// ActionableSteps returns the indexes of the steps that can be decided now.
// With a cursor these are the pending steps of that order; without one only
// the first pending step qualifies.
func ActionableSteps(steps []domain.ApprovalStep, cursor *int) []int {
	if Halted(steps) {
		return nil
	}
	var idx []int
	for i, s := range steps {
		if s.Status != domain.StepPending {
			continue
		}
		if cursor == nil {
			return []int{i}
		}
		if s.Order == *cursor {
			idx = append(idx, i)
		}
	}
	return idx
}

// Halted reports whether a step was rejected or returned.
func Halted(steps []domain.ApprovalStep) bool {
	for _, s := range steps {
		if s.Status == domain.StepRejected || s.Status == domain.StepReturned {
			return true
		}
	}
	return false
}

func nextOrder(steps []domain.ApprovalStep, after int) (int, bool) {
	next, found := 0, false
	for _, s := range steps {
		if s.Order > after && (!found || s.Order < next) {
			next, found = s.Order, true
		}
	}
	return next, found
}

func groupApproved(steps []domain.ApprovalStep, order int) bool {
	for _, s := range steps {
		if s.Order == order && s.Status != domain.StepApproved {
			return false
		}
	}
	return true
}
