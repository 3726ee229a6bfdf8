package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// Submission is the metadata attached when a draft is committed.
type Submission struct {
	Status  domain.DistributionStatus
	Actor   string
	Comment string
	Now     time.Time
}

// BuildAggregate assembles the record handed to persistence. existing is the
// stored version, nil on first save; its id and creation time are kept.
func BuildAggregate(s WizardState, sub Submission, existing *domain.Distribution) domain.Distribution {
	st := s.clone()
	st.settle()
	d := st.Distribution

	d.Status = sub.Status
	d.IsDraft = sub.Status == domain.StatusDraft
	d.UpdatedAt = sub.Now

	switch {
	case existing != nil:
		d.ID = existing.ID
		d.CreatedAt = existing.CreatedAt
		if d.CreatedBy == "" {
			d.CreatedBy = existing.CreatedBy
		}
	case d.CreatedAt.IsZero():
		d.CreatedAt = sub.Now
	}
	if d.CreatedBy == "" {
		d.CreatedBy = sub.Actor
	}
	if d.RevisionNumber == 0 {
		d.RevisionNumber = 1
	}

	if sub.Status == domain.StatusPendingApproval {
		at := sub.Now
		d.SubmittedAt = &at
		d.SubmittedBy = sub.Actor
	}

	if body := strings.TrimSpace(sub.Comment); body != "" {
		d.Comments = append(d.Comments, domain.Comment{
			ID:        uuid.NewString(),
			Kind:      domain.CommentInternal,
			Author:    sub.Actor,
			Body:      body,
			CreatedAt: sub.Now,
		})
	}
	return d
}
