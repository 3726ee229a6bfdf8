package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/approval"
	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/common/logger"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
	"github.com/pesio-ai/be-fund-distributions/internal/service"
)

type distStore struct {
	mu   sync.Mutex
	rows map[string]domain.Distribution
}

func (s *distStore) Create(_ context.Context, d *domain.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	s.rows[d.ID] = d.Clone()
	return nil
}

func (s *distStore) Update(_ context.Context, d *domain.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[d.ID]; !ok {
		return errors.NotFound("distribution", d.ID)
	}
	s.rows[d.ID] = d.Clone()
	return nil
}

func (s *distStore) GetByID(_ context.Context, id string) (*domain.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rows[id]
	if !ok {
		return nil, errors.NotFound("distribution", id)
	}
	out := d.Clone()
	return &out, nil
}

func (s *distStore) ListByFund(context.Context, string, int) ([]domain.Distribution, error) {
	return nil, nil
}

type ruleStore struct {
	rows []domain.ApprovalRule
}

func (s *ruleStore) Create(_ context.Context, r *domain.ApprovalRule) error {
	r.ID = uuid.NewString()
	s.rows = append(s.rows, *r)
	return nil
}

func (s *ruleStore) GetByID(_ context.Context, id string) (*domain.ApprovalRule, error) {
	for _, r := range s.rows {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, errors.NotFound("approval_rule", id)
}

func (s *ruleStore) List(_ context.Context, fundID string, activeOnly bool) ([]domain.ApprovalRule, error) {
	var out []domain.ApprovalRule
	for _, r := range s.rows {
		if r.FundID == fundID && (!activeOnly || r.IsActive) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ruleStore) Update(context.Context, *domain.ApprovalRule) error { return nil }

func (s *ruleStore) Delete(context.Context, string) error { return nil }

type auditStore struct {
	entries []domain.AuditEntry
}

func (s *auditStore) Append(_ context.Context, e *domain.AuditEntry) error {
	e.ID = uuid.NewString()
	e.PerformedAt = time.Now()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *auditStore) GetByDistributionID(_ context.Context, id string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range s.entries {
		if e.DistributionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type dirStore struct{}

func (dirStore) ListLPProfiles(context.Context, string) ([]domain.LPProfile, error) {
	return []domain.LPProfile{
		{ID: "lp-1", FundID: "fund-1", Name: "Pension A", Commitment: decimal.NewFromInt(6000000)},
		{ID: "lp-2", FundID: "fund-1", Name: "Endowment B", Commitment: decimal.NewFromInt(4000000)},
	}, nil
}

func (dirStore) ListFeeTemplates(context.Context, string) ([]domain.FeeTemplate, error) {
	return nil, nil
}

func (dirStore) ListStatementTemplates(context.Context, string) ([]domain.StatementTemplate, error) {
	return nil, nil
}

func (dirStore) ListWaterfallScenarios(context.Context, string) ([]domain.WaterfallScenario, error) {
	return nil, nil
}

func (dirStore) GetWaterfallScenario(_ context.Context, id string) (*domain.WaterfallScenario, error) {
	return nil, errors.NotFound("waterfall_scenario", id)
}

func (dirStore) GetFundMetrics(context.Context, string) (*domain.FundMetrics, error) {
	return nil, nil
}

func (dirStore) ListCovenants(context.Context, string) ([]domain.Covenant, error) {
	return nil, nil
}

type fixture struct {
	dists         *distStore
	distributions *service.DistributionService
	routing       *service.ApprovalRoutingService
}

func newFixture(stored ...domain.Distribution) *fixture {
	dists := &distStore{rows: map[string]domain.Distribution{}}
	for _, d := range stored {
		dists.rows[d.ID] = d
	}
	rules := &ruleStore{rows: []domain.ApprovalRule{{
		ID: "all", FundID: "fund-1", Name: "All amounts", IsActive: true, MinAmount: decimal.Zero,
		Approvers: []domain.Approver{{ID: "cfo", Name: "CFO", Order: 1}, {ID: "ic-chair", Name: "IC Chair", Order: 2}},
	}}}
	audit := &auditStore{}
	log := logger.Nop()
	return &fixture{
		dists:         dists,
		distributions: service.NewDistributionService(dists, rules, audit, nil, dirStore{}, nil, nil, log),
		routing:       service.NewApprovalRoutingService(dists, rules, audit, nil, log),
	}
}

func pendingDistribution() domain.Distribution {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	rule := domain.ApprovalRule{ID: "all", Approvers: []domain.Approver{
		{ID: "cfo", Name: "CFO", Order: 1},
		{ID: "ic-chair", Name: "IC Chair", Order: 2},
	}}
	steps := approval.BuildSteps(rule, now)
	return domain.Distribution{
		ID:                  "dist-1",
		FundID:              "fund-1",
		Name:                "Q1 dividend",
		Status:              domain.StatusPendingApproval,
		ApprovalSteps:       steps,
		CurrentApprovalStep: approval.FirstOrder(steps),
		SubmittedBy:         "alice",
		SubmittedAt:         &now,
		CreatedAt:           now,
	}
}
