// Package approval routes a distribution through its approval chain: rule
// selection by amount, step materialization and the per-step decision state
// machine. All functions are pure; persistence lives in the service layer.
package approval

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// ErrNoMatchingRule is returned when no active rule covers the amount.
var ErrNoMatchingRule = errors.New(errors.ErrCodeInvalidInput, "no approval rule matches the distribution amount")

// SelectRule returns the first active rule, in list order, whose
// [MinAmount, MaxAmount) band contains amount.
func SelectRule(rules []domain.ApprovalRule, amount decimal.Decimal) (*domain.ApprovalRule, error) {
	for i := range rules {
		if rules[i].IsActive && rules[i].Contains(amount) {
			rule := rules[i]
			return &rule, nil
		}
	}
	return nil, ErrNoMatchingRule
}

// SortRules orders rules by priority, keeping insertion order on ties.
func SortRules(rules []domain.ApprovalRule) []domain.ApprovalRule {
	out := append([]domain.ApprovalRule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Overlaps reports whether two rule bands share at least one amount.
func Overlaps(a, b domain.ApprovalRule) bool {
	// [aMin, aMax) and [bMin, bMax) intersect iff each starts before the other ends.
	if a.MaxAmount != nil && !b.MinAmount.LessThan(*a.MaxAmount) {
		return false
	}
	if b.MaxAmount != nil && !a.MinAmount.LessThan(*b.MaxAmount) {
		return false
	}
	return true
}

// ValidateRule checks a single rule's shape.
func ValidateRule(r domain.ApprovalRule) error {
	if r.Name == "" {
		return errors.InvalidInput("name", "rule name is required")
	}
	if r.MinAmount.IsNegative() {
		return errors.InvalidInput("minAmount", "minimum amount cannot be negative")
	}
	if r.MaxAmount != nil && !r.MaxAmount.GreaterThan(r.MinAmount) {
		return errors.InvalidInput("maxAmount", "maximum amount must be greater than minimum amount")
	}
	if len(r.Approvers) == 0 {
		return errors.InvalidInput("approvers", "at least one approver is required")
	}
	for _, a := range r.Approvers {
		if a.ID == "" {
			return errors.InvalidInput("approvers", "approver id is required")
		}
		if a.Order < 1 {
			return errors.InvalidInput("approvers", fmt.Sprintf("approver %s has invalid order %d", a.ID, a.Order))
		}
	}
	return nil
}

// CheckOverlap rejects an active candidate whose band overlaps another active
// rule of the same fund. The candidate itself (same id) is skipped.
func CheckOverlap(existing []domain.ApprovalRule, candidate domain.ApprovalRule) error {
	if !candidate.IsActive {
		return nil
	}
	for _, r := range existing {
		if !r.IsActive || r.ID == candidate.ID || r.FundID != candidate.FundID {
			continue
		}
		if Overlaps(r, candidate) {
			return errors.Conflict(fmt.Sprintf("approval rule %q overlaps active rule %q", candidate.Name, r.Name))
		}
	}
	return nil
}
