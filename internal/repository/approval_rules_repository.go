package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/common/database"
	apperrors "github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// ApprovalRulesRepository handles CRUD for distribution_approval_rules.
type ApprovalRulesRepository struct {
	db *database.DB
}

// NewApprovalRulesRepository creates a new ApprovalRulesRepository.
func NewApprovalRulesRepository(db *database.DB) *ApprovalRulesRepository {
	return &ApprovalRulesRepository{db: db}
}

const ruleColumns = `
	id, fund_id, name, min_amount, max_amount, is_active,
	approvers, priority, created_at, updated_at`

// Create inserts a new approval rule.
func (r *ApprovalRulesRepository) Create(ctx context.Context, rule *domain.ApprovalRule) error {
	approversJSON, err := json.Marshal(rule.Approvers)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal approvers")
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	query := `
		INSERT INTO distribution_approval_rules
		    (id, fund_id, name, min_amount, max_amount, is_active, approvers, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		rule.ID,
		rule.FundID,
		rule.Name,
		rule.MinAmount,
		nullableDecimal(rule.MaxAmount),
		rule.IsActive,
		approversJSON,
		rule.Priority,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create approval rule")
	}
	return nil
}

// GetByID retrieves a rule by primary key.
func (r *ApprovalRulesRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM distribution_approval_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval_rule", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get approval rule")
	}
	return rule, nil
}

// List returns a fund's rules in priority order, optionally active only.
func (r *ApprovalRulesRepository) List(ctx context.Context, fundID string, activeOnly bool) ([]domain.ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM distribution_approval_rules WHERE fund_id = $1`
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY priority ASC, created_at ASC"

	rows, err := r.db.Query(ctx, query, fundID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list approval rules")
	}
	defer rows.Close()

	rules := make([]domain.ApprovalRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan approval rule")
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list approval rules")
	}
	return rules, nil
}

// Update persists changes to an existing rule.
func (r *ApprovalRulesRepository) Update(ctx context.Context, rule *domain.ApprovalRule) error {
	approversJSON, err := json.Marshal(rule.Approvers)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal approvers")
	}

	query := `
		UPDATE distribution_approval_rules
		SET name       = $2,
		    min_amount = $3,
		    max_amount = $4,
		    is_active  = $5,
		    approvers  = $6,
		    priority   = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING fund_id, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		rule.ID,
		rule.Name,
		rule.MinAmount,
		nullableDecimal(rule.MaxAmount),
		rule.IsActive,
		approversJSON,
		rule.Priority,
	).Scan(&rule.FundID, &rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("approval_rule", rule.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update approval rule")
	}
	return nil
}

// Delete removes an approval rule. Submitted distributions keep their frozen
// step snapshot, so deleting a rule never affects them.
func (r *ApprovalRulesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM distribution_approval_rules WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete approval rule")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("approval_rule", id)
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.ApprovalRule, error) {
	rule := &domain.ApprovalRule{}
	var (
		maxAmount     decimal.NullDecimal
		approversJSON []byte
	)

	err := row.Scan(
		&rule.ID,
		&rule.FundID,
		&rule.Name,
		&rule.MinAmount,
		&maxAmount,
		&rule.IsActive,
		&approversJSON,
		&rule.Priority,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if maxAmount.Valid {
		v := maxAmount.Decimal
		rule.MaxAmount = &v
	}
	if err := json.Unmarshal(approversJSON, &rule.Approvers); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to unmarshal approvers")
	}
	return rule, nil
}

func nullableDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
