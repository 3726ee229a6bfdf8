package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-fund-distributions/internal/common/database"
	apperrors "github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// DistributionRepository persists the distribution aggregate. Line items,
// allocations, approval steps and comments are stored as JSONB on the row so
// a save is always a single atomic statement.
type DistributionRepository struct {
	db *database.DB
}

// NewDistributionRepository creates a new DistributionRepository.
func NewDistributionRepository(db *database.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

const distributionColumns = `
	id, fund_id, name, event_type, event_date, payment_date, description,
	status, is_draft, is_recurring,
	gross_proceeds, total_fees, total_expenses, net_proceeds,
	total_tax_withholding, total_distributed,
	fee_line_items, lp_allocations, waterfall_scenario_id, waterfall_results, impact,
	statement_template_id, email_subject, email_body,
	approval_chain_id, approval_steps, current_approval_step, revision_number, comments,
	created_by, submitted_by, submitted_at, completed_at, created_at, updated_at`

type distributionJSON struct {
	feeLineItems     []byte
	lpAllocations    []byte
	waterfallResults []byte
	impact           []byte
	approvalSteps    []byte
	comments         []byte
}

func marshalDistribution(d *domain.Distribution) (distributionJSON, error) {
	var (
		out distributionJSON
		err error
	)
	if out.feeLineItems, err = marshalList(d.FeeLineItems); err != nil {
		return out, err
	}
	if out.lpAllocations, err = marshalList(d.LPAllocations); err != nil {
		return out, err
	}
	if out.approvalSteps, err = marshalList(d.ApprovalSteps); err != nil {
		return out, err
	}
	if out.comments, err = marshalList(d.Comments); err != nil {
		return out, err
	}
	if d.WaterfallResults != nil {
		if out.waterfallResults, err = json.Marshal(d.WaterfallResults); err != nil {
			return out, err
		}
	}
	if d.Impact != nil {
		if out.impact, err = json.Marshal(d.Impact); err != nil {
			return out, err
		}
	}
	return out, nil
}

// marshalList encodes nil slices as an empty JSON array.
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

// Create inserts a new distribution, assigning its id and timestamps.
func (r *DistributionRepository) Create(ctx context.Context, d *domain.Distribution) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	payload, err := marshalDistribution(d)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal distribution")
	}

	query := `
		INSERT INTO distributions (` + distributionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
		        $8, $9, $10,
		        $11, $12, $13, $14,
		        $15, $16,
		        $17, $18, $19, $20, $21,
		        $22, $23, $24,
		        $25, $26, $27, $28, $29,
		        $30, $31, $32, $33, $34, NOW())
		RETURNING updated_at
	`

	err = r.db.QueryRow(ctx, query,
		d.ID, d.FundID, d.Name, d.EventType, d.EventDate, d.PaymentDate, d.Description,
		d.Status, d.IsDraft, d.IsRecurring,
		d.GrossProceeds, d.TotalFees, d.TotalExpenses, d.NetProceeds,
		d.TotalTaxWithholding, d.TotalDistributed,
		payload.feeLineItems, payload.lpAllocations, d.WaterfallScenarioID, payload.waterfallResults, payload.impact,
		d.StatementTemplateID, d.EmailSubject, d.EmailBody,
		d.ApprovalChainID, payload.approvalSteps, d.CurrentApprovalStep, d.RevisionNumber, payload.comments,
		d.CreatedBy, d.SubmittedBy, d.SubmittedAt, d.CompletedAt, d.CreatedAt,
	).Scan(&d.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create distribution")
	}
	return nil
}

// Update overwrites every mutable column. The id and created_at are never
// changed and updated_at is refreshed. Concurrent saves are last-write-wins.
func (r *DistributionRepository) Update(ctx context.Context, d *domain.Distribution) error {
	payload, err := marshalDistribution(d)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal distribution")
	}

	query := `
		UPDATE distributions
		SET name                  = $2,
		    event_type            = $3,
		    event_date            = $4,
		    payment_date          = $5,
		    description           = $6,
		    status                = $7,
		    is_draft              = $8,
		    is_recurring          = $9,
		    gross_proceeds        = $10,
		    total_fees            = $11,
		    total_expenses        = $12,
		    net_proceeds          = $13,
		    total_tax_withholding = $14,
		    total_distributed     = $15,
		    fee_line_items        = $16,
		    lp_allocations        = $17,
		    waterfall_scenario_id = $18,
		    waterfall_results     = $19,
		    impact                = $20,
		    statement_template_id = $21,
		    email_subject         = $22,
		    email_body            = $23,
		    approval_chain_id     = $24,
		    approval_steps        = $25,
		    current_approval_step = $26,
		    revision_number       = $27,
		    comments              = $28,
		    submitted_by          = $29,
		    submitted_at          = $30,
		    completed_at          = $31,
		    updated_at            = NOW()
		WHERE id = $1
		RETURNING fund_id, created_by, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		d.ID, d.Name, d.EventType, d.EventDate, d.PaymentDate, d.Description,
		d.Status, d.IsDraft, d.IsRecurring,
		d.GrossProceeds, d.TotalFees, d.TotalExpenses, d.NetProceeds,
		d.TotalTaxWithholding, d.TotalDistributed,
		payload.feeLineItems, payload.lpAllocations, d.WaterfallScenarioID, payload.waterfallResults, payload.impact,
		d.StatementTemplateID, d.EmailSubject, d.EmailBody,
		d.ApprovalChainID, payload.approvalSteps, d.CurrentApprovalStep, d.RevisionNumber, payload.comments,
		d.SubmittedBy, d.SubmittedAt, d.CompletedAt,
	).Scan(&d.FundID, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("distribution", d.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update distribution")
	}
	return nil
}

// GetByID retrieves a distribution by primary key.
func (r *DistributionRepository) GetByID(ctx context.Context, id string) (*domain.Distribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM distributions WHERE id = $1`

	d, err := scanDistribution(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("distribution", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get distribution")
	}
	return d, nil
}

// ListByFund returns a fund's distributions, most recently updated first.
func (r *DistributionRepository) ListByFund(ctx context.Context, fundID string, limit int) ([]domain.Distribution, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + distributionColumns + `
		FROM distributions
		WHERE fund_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, fundID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list distributions")
	}
	defer rows.Close()

	out := make([]domain.Distribution, 0)
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan distribution")
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list distributions")
	}
	return out, nil
}

func scanDistribution(row rowScanner) (*domain.Distribution, error) {
	d := &domain.Distribution{}
	var (
		payload     distributionJSON
		currentStep *int32
	)

	err := row.Scan(
		&d.ID, &d.FundID, &d.Name, &d.EventType, &d.EventDate, &d.PaymentDate, &d.Description,
		&d.Status, &d.IsDraft, &d.IsRecurring,
		&d.GrossProceeds, &d.TotalFees, &d.TotalExpenses, &d.NetProceeds,
		&d.TotalTaxWithholding, &d.TotalDistributed,
		&payload.feeLineItems, &payload.lpAllocations, &d.WaterfallScenarioID, &payload.waterfallResults, &payload.impact,
		&d.StatementTemplateID, &d.EmailSubject, &d.EmailBody,
		&d.ApprovalChainID, &payload.approvalSteps, &currentStep, &d.RevisionNumber, &payload.comments,
		&d.CreatedBy, &d.SubmittedBy, &d.SubmittedAt, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if currentStep != nil {
		v := int(*currentStep)
		d.CurrentApprovalStep = &v
	}

	for _, col := range []struct {
		raw  []byte
		dest any
	}{
		{payload.feeLineItems, &d.FeeLineItems},
		{payload.lpAllocations, &d.LPAllocations},
		{payload.approvalSteps, &d.ApprovalSteps},
		{payload.comments, &d.Comments},
		{payload.waterfallResults, &d.WaterfallResults},
		{payload.impact, &d.Impact},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to unmarshal distribution")
		}
	}
	return d, nil
}
