// Package domain holds the fund distribution data model.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DistributionStatus is the lifecycle state of a distribution.
type DistributionStatus string

const (
	StatusDraft           DistributionStatus = "draft"
	StatusPendingApproval DistributionStatus = "pending-approval"
	StatusApproved        DistributionStatus = "approved"
	StatusRejected        DistributionStatus = "rejected"
	StatusCompleted       DistributionStatus = "completed"
	StatusReturned        DistributionStatus = "returned"
)

// EventType is the cash event that produced the proceeds.
type EventType string

const (
	EventExit             EventType = "exit"
	EventPartialExit      EventType = "partial-exit"
	EventDividend         EventType = "dividend"
	EventRecapitalization EventType = "recapitalization"
	EventInterest         EventType = "interest"
	EventReturnOfCapital  EventType = "return-of-capital"
	EventOther            EventType = "other"
)

var knownEventTypes = map[EventType]bool{
	EventExit:             true,
	EventPartialExit:      true,
	EventDividend:         true,
	EventRecapitalization: true,
	EventInterest:         true,
	EventReturnOfCapital:  true,
	EventOther:            true,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return knownEventTypes[t]
}

// RequiresWaterfall reports whether carry must be computed for this event.
func (t EventType) RequiresWaterfall() bool {
	return t == EventExit || t == EventPartialExit
}

// Distribution is the aggregate root.
type Distribution struct {
	ID          string             `json:"id"`
	FundID      string             `json:"fundId"`
	Name        string             `json:"name"`
	EventType   EventType          `json:"eventType"`
	EventDate   *time.Time         `json:"eventDate,omitempty"`
	PaymentDate *time.Time         `json:"paymentDate,omitempty"`
	Description string             `json:"description,omitempty"`
	Status      DistributionStatus `json:"status"`
	IsDraft     bool               `json:"isDraft"`
	IsRecurring bool               `json:"isRecurring"`

	GrossProceeds       decimal.Decimal `json:"grossProceeds"`
	TotalFees           decimal.Decimal `json:"totalFees"`
	TotalExpenses       decimal.Decimal `json:"totalExpenses"`
	NetProceeds         decimal.Decimal `json:"netProceeds"`
	TotalTaxWithholding decimal.Decimal `json:"totalTaxWithholding"`
	TotalDistributed    decimal.Decimal `json:"totalDistributed"`

	FeeLineItems  []FeeLineItem  `json:"feeLineItems"`
	LPAllocations []LPAllocation `json:"lpAllocations"`

	WaterfallScenarioID string              `json:"waterfallScenarioId,omitempty"`
	WaterfallResults    *WaterfallResults   `json:"waterfallResults,omitempty"`
	Impact              *DistributionImpact `json:"impact,omitempty"`

	StatementTemplateID string `json:"statementTemplateId,omitempty"`
	EmailSubject        string `json:"emailSubject,omitempty"`
	EmailBody           string `json:"emailBody,omitempty"`

	ApprovalChainID     string         `json:"approvalChainId,omitempty"`
	ApprovalSteps       []ApprovalStep `json:"approvalSteps"`
	CurrentApprovalStep *int           `json:"currentApprovalStep,omitempty"`

	RevisionNumber int       `json:"revisionNumber"`
	Comments       []Comment `json:"comments"`

	CreatedBy   string     `json:"createdBy,omitempty"`
	SubmittedBy string     `json:"submittedBy,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (d Distribution) Clone() Distribution {
	out := d
	out.FeeLineItems = append([]FeeLineItem(nil), d.FeeLineItems...)
	for i := range out.FeeLineItems {
		if p := d.FeeLineItems[i].Percentage; p != nil {
			v := *p
			out.FeeLineItems[i].Percentage = &v
		}
	}
	out.LPAllocations = append([]LPAllocation(nil), d.LPAllocations...)
	out.ApprovalSteps = append([]ApprovalStep(nil), d.ApprovalSteps...)
	for i := range out.ApprovalSteps {
		if t := d.ApprovalSteps[i].RespondedAt; t != nil {
			v := *t
			out.ApprovalSteps[i].RespondedAt = &v
		}
	}
	out.Comments = append([]Comment(nil), d.Comments...)
	if d.CurrentApprovalStep != nil {
		v := *d.CurrentApprovalStep
		out.CurrentApprovalStep = &v
	}
	if d.WaterfallResults != nil {
		r := d.WaterfallResults.Clone()
		out.WaterfallResults = &r
	}
	if d.Impact != nil {
		imp := *d.Impact
		imp.CovenantWarnings = append([]CovenantWarning(nil), d.Impact.CovenantWarnings...)
		out.Impact = &imp
	}
	return out
}

// CommentKind separates submitter notes from approver decisions.
type CommentKind string

const (
	CommentInternal CommentKind = "internal"
	CommentApproval CommentKind = "approval"
)

// Comment is one entry in a distribution's comment thread.
type Comment struct {
	ID        string      `json:"id"`
	Kind      CommentKind `json:"kind"`
	Author    string      `json:"author"`
	Body      string      `json:"body"`
	StepOrder *int        `json:"stepOrder,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
