package service

import (
	"context"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// DistributionStore persists distribution aggregates.
type DistributionStore interface {
	Create(ctx context.Context, d *domain.Distribution) error
	Update(ctx context.Context, d *domain.Distribution) error
	GetByID(ctx context.Context, id string) (*domain.Distribution, error)
	ListByFund(ctx context.Context, fundID string, limit int) ([]domain.Distribution, error)
}

// RuleStore persists approval rules.
type RuleStore interface {
	Create(ctx context.Context, rule *domain.ApprovalRule) error
	GetByID(ctx context.Context, id string) (*domain.ApprovalRule, error)
	List(ctx context.Context, fundID string, activeOnly bool) ([]domain.ApprovalRule, error)
	Update(ctx context.Context, rule *domain.ApprovalRule) error
	Delete(ctx context.Context, id string) error
}

// AuditStore is the append-only approval audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	GetByDistributionID(ctx context.Context, distributionID string) ([]domain.AuditEntry, error)
}

// DirectoryReader serves the read-only directories a wizard session needs.
// Implemented by the repository and by its Redis cache.
type DirectoryReader interface {
	ListLPProfiles(ctx context.Context, fundID string) ([]domain.LPProfile, error)
	ListFeeTemplates(ctx context.Context, fundID string) ([]domain.FeeTemplate, error)
	ListStatementTemplates(ctx context.Context, fundID string) ([]domain.StatementTemplate, error)
	ListWaterfallScenarios(ctx context.Context, fundID string) ([]domain.WaterfallScenario, error)
	GetWaterfallScenario(ctx context.Context, id string) (*domain.WaterfallScenario, error)
	GetFundMetrics(ctx context.Context, fundID string) (*domain.FundMetrics, error)
	ListCovenants(ctx context.Context, fundID string) ([]domain.Covenant, error)
}

// Transactor runs fn so that every store call made with the context it
// receives commits or rolls back together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// WaterfallCalculator runs a scenario through the external waterfall model.
type WaterfallCalculator interface {
	PerformWaterfallCalculation(ctx context.Context, scenario domain.WaterfallScenario) (*domain.WaterfallResults, error)
}

// Notifier delivers approval workflow events. Implementations must not fail
// the caller.
type Notifier interface {
	PublishDistributionEvent(ctx context.Context, eventType, distributionID, fundID, actorID string, recipients []string, payload map[string]any)
}
