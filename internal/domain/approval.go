package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StepStatus is the state of a single approval step.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
	StepReturned StepStatus = "returned"
)

// Terminal reports whether the step has been decided.
func (s StepStatus) Terminal() bool {
	return s == StepApproved || s == StepRejected || s == StepReturned
}

// Approver is one entry of an approval rule.
type Approver struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Order      int    `json:"order"`
	IsParallel bool   `json:"isParallel"`
}

// ApprovalRule maps a [MinAmount, MaxAmount) band of total distributed to an
// approver chain. A nil MaxAmount is unbounded.
type ApprovalRule struct {
	ID        string           `json:"id"`
	FundID    string           `json:"fundId,omitempty"`
	Name      string           `json:"name"`
	MinAmount decimal.Decimal  `json:"minAmount"`
	MaxAmount *decimal.Decimal `json:"maxAmount,omitempty"`
	IsActive  bool             `json:"isActive"`
	Approvers []Approver       `json:"approvers"`
	Priority  int              `json:"priority"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Contains reports whether amount falls in the rule's half-open interval.
func (r ApprovalRule) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && amount.GreaterThanOrEqual(*r.MaxAmount) {
		return false
	}
	return true
}

// ApprovalStep is a frozen, per-approver snapshot built at submission.
type ApprovalStep struct {
	ID            string     `json:"id"`
	Order         int        `json:"order"`
	ApproverID    string     `json:"approverId"`
	ApproverName  string     `json:"approverName"`
	ApproverRole  string     `json:"approverRole"`
	ApproverEmail string     `json:"approverEmail"`
	IsParallel    bool       `json:"isParallel"`
	Status        StepStatus `json:"status"`
	AssignedAt    time.Time  `json:"assignedAt"`
	RespondedAt   *time.Time `json:"respondedAt,omitempty"`
	Comment       string     `json:"comment,omitempty"`
}

// AuditEntry is one immutable record of an approval event.
type AuditEntry struct {
	ID             string             `json:"id"`
	DistributionID string             `json:"distributionId"`
	StepID         string             `json:"stepId,omitempty"`
	Action         string             `json:"action"`
	PerformedBy    string             `json:"performedBy"`
	PerformedAt    time.Time          `json:"performedAt"`
	StatusBefore   DistributionStatus `json:"statusBefore,omitempty"`
	StatusAfter    DistributionStatus `json:"statusAfter,omitempty"`
	Comment        string             `json:"comment,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
}
