package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-fund-distributions/internal/common/database"
	apperrors "github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// DirectoryRepository reads the per-fund reference data a wizard session
// loads once: LP profiles, fee and statement templates, waterfall scenarios,
// fund metrics and covenants.
type DirectoryRepository struct {
	db *database.DB
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(db *database.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// ListLPProfiles returns the fund's LPs in a stable order.
func (r *DirectoryRepository) ListLPProfiles(ctx context.Context, fundID string) ([]domain.LPProfile, error) {
	query := `
		SELECT id, fund_id, name, commitment, default_tax_rate,
		       tax_form_type, jurisdiction, email, has_special_terms
		FROM lp_profiles
		WHERE fund_id = $1
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, fundID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list LP profiles")
	}
	defer rows.Close()

	profiles := make([]domain.LPProfile, 0)
	for rows.Next() {
		var p domain.LPProfile
		if err := rows.Scan(&p.ID, &p.FundID, &p.Name, &p.Commitment, &p.DefaultTaxRate,
			&p.TaxFormType, &p.Jurisdiction, &p.Email, &p.HasSpecialTerms); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan LP profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ListFeeTemplates returns the fund's templates plus the shared ones.
func (r *DirectoryRepository) ListFeeTemplates(ctx context.Context, fundID string) ([]domain.FeeTemplate, error) {
	query := `
		SELECT id, name, items
		FROM fee_templates
		WHERE fund_id = $1 OR fund_id = ''
		ORDER BY name ASC
	`
	rows, err := r.db.Query(ctx, query, fundID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list fee templates")
	}
	defer rows.Close()

	templates := make([]domain.FeeTemplate, 0)
	for rows.Next() {
		var (
			t     domain.FeeTemplate
			items []byte
		)
		if err := rows.Scan(&t.ID, &t.Name, &items); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan fee template")
		}
		if err := json.Unmarshal(items, &t.Items); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to unmarshal fee template items")
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// ListStatementTemplates returns the fund's statement templates plus the shared ones.
func (r *DirectoryRepository) ListStatementTemplates(ctx context.Context, fundID string) ([]domain.StatementTemplate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name FROM statement_templates WHERE fund_id = $1 OR fund_id = '' ORDER BY name ASC`, fundID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list statement templates")
	}
	defer rows.Close()

	templates := make([]domain.StatementTemplate, 0)
	for rows.Next() {
		var t domain.StatementTemplate
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan statement template")
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// ListWaterfallScenarios returns the scenarios defined for a fund.
func (r *DirectoryRepository) ListWaterfallScenarios(ctx context.Context, fundID string) ([]domain.WaterfallScenario, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, fund_id, name, exit_value, parameters FROM waterfall_scenarios WHERE fund_id = $1 ORDER BY name ASC`, fundID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list waterfall scenarios")
	}
	defer rows.Close()

	scenarios := make([]domain.WaterfallScenario, 0)
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan waterfall scenario")
		}
		scenarios = append(scenarios, *s)
	}
	return scenarios, rows.Err()
}

// GetWaterfallScenario retrieves one scenario by id.
func (r *DirectoryRepository) GetWaterfallScenario(ctx context.Context, id string) (*domain.WaterfallScenario, error) {
	s, err := scanScenario(r.db.QueryRow(ctx,
		`SELECT id, fund_id, name, exit_value, parameters FROM waterfall_scenarios WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("waterfall_scenario", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get waterfall scenario")
	}
	return s, nil
}

func scanScenario(row rowScanner) (*domain.WaterfallScenario, error) {
	s := &domain.WaterfallScenario{}
	var params []byte
	if err := row.Scan(&s.ID, &s.FundID, &s.Name, &s.ExitValue, &params); err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &s.Parameters); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetFundMetrics returns the fund's current metrics, or nil when none are
// recorded. Impact projection is skipped without them.
func (r *DirectoryRepository) GetFundMetrics(ctx context.Context, fundID string) (*domain.FundMetrics, error) {
	m := &domain.FundMetrics{}
	err := r.db.QueryRow(ctx, `
		SELECT nav, paid_in_capital, cumulative_distributions, undrawn_capital
		FROM fund_metrics
		WHERE fund_id = $1
	`, fundID).Scan(&m.NAV, &m.PaidInCapital, &m.CumulativeDistributions, &m.UndrawnCapital)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get fund metrics")
	}
	return m, nil
}

// ListCovenants returns the fund's covenants.
func (r *DirectoryRepository) ListCovenants(ctx context.Context, fundID string) ([]domain.Covenant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name, metric, threshold, kind FROM fund_covenants WHERE fund_id = $1 ORDER BY name ASC`, fundID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list covenants")
	}
	defer rows.Close()

	covenants := make([]domain.Covenant, 0)
	for rows.Next() {
		var c domain.Covenant
		if err := rows.Scan(&c.Name, &c.Metric, &c.Threshold, &c.Kind); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan covenant")
		}
		covenants = append(covenants, c)
	}
	return covenants, rows.Err()
}
