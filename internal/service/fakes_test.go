package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

type memDistributions struct {
	mu      sync.Mutex
	rows    map[string]domain.Distribution
	creates int
	updates int
	failErr error
}

func newMemDistributions(rows ...domain.Distribution) *memDistributions {
	m := &memDistributions{rows: map[string]domain.Distribution{}}
	for _, d := range rows {
		m.rows[d.ID] = d.Clone()
	}
	return m
}

func (m *memDistributions) Create(_ context.Context, d *domain.Distribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	m.creates++
	m.rows[d.ID] = d.Clone()
	return nil
}

func (m *memDistributions) Update(_ context.Context, d *domain.Distribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	stored, ok := m.rows[d.ID]
	if !ok {
		return errors.NotFound("distribution", d.ID)
	}
	d.CreatedAt = stored.CreatedAt
	m.updates++
	m.rows[d.ID] = d.Clone()
	return nil
}

func (m *memDistributions) GetByID(_ context.Context, id string) (*domain.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return nil, errors.NotFound("distribution", id)
	}
	out := d.Clone()
	return &out, nil
}

func (m *memDistributions) ListByFund(_ context.Context, fundID string, _ int) ([]domain.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Distribution
	for _, d := range m.rows {
		if d.FundID == fundID {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

type memRules struct {
	rows []domain.ApprovalRule
}

func (m *memRules) Create(_ context.Context, rule *domain.ApprovalRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	m.rows = append(m.rows, *rule)
	return nil
}

func (m *memRules) GetByID(_ context.Context, id string) (*domain.ApprovalRule, error) {
	for _, r := range m.rows {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, errors.NotFound("approval_rule", id)
}

func (m *memRules) List(_ context.Context, fundID string, activeOnly bool) ([]domain.ApprovalRule, error) {
	var out []domain.ApprovalRule
	for _, r := range m.rows {
		if r.FundID != fundID || (activeOnly && !r.IsActive) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memRules) Update(_ context.Context, rule *domain.ApprovalRule) error {
	for i, r := range m.rows {
		if r.ID == rule.ID {
			m.rows[i] = *rule
			return nil
		}
	}
	return errors.NotFound("approval_rule", rule.ID)
}

func (m *memRules) Delete(_ context.Context, id string) error {
	for i, r := range m.rows {
		if r.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return errors.NotFound("approval_rule", id)
}

type memAudit struct {
	entries []domain.AuditEntry
	failErr error
	inTx    []bool
}

func (m *memAudit) Append(ctx context.Context, entry *domain.AuditEntry) error {
	m.inTx = append(m.inTx, inTx(ctx))
	if m.failErr != nil {
		return m.failErr
	}
	entry.ID = uuid.NewString()
	entry.PerformedAt = testNow
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memAudit) GetByDistributionID(_ context.Context, id string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if e.DistributionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memAudit) actions() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type memDirectories struct {
	profiles  []domain.LPProfile
	templates []domain.StatementTemplate
	scenarios []domain.WaterfallScenario
	metrics   *domain.FundMetrics
}

func (m *memDirectories) ListLPProfiles(context.Context, string) ([]domain.LPProfile, error) {
	return m.profiles, nil
}

func (m *memDirectories) ListFeeTemplates(context.Context, string) ([]domain.FeeTemplate, error) {
	return nil, nil
}

func (m *memDirectories) ListStatementTemplates(context.Context, string) ([]domain.StatementTemplate, error) {
	return m.templates, nil
}

func (m *memDirectories) ListWaterfallScenarios(context.Context, string) ([]domain.WaterfallScenario, error) {
	return m.scenarios, nil
}

func (m *memDirectories) GetWaterfallScenario(_ context.Context, id string) (*domain.WaterfallScenario, error) {
	for _, s := range m.scenarios {
		if s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, errors.NotFound("waterfall_scenario", id)
}

func (m *memDirectories) GetFundMetrics(context.Context, string) (*domain.FundMetrics, error) {
	return m.metrics, nil
}

func (m *memDirectories) ListCovenants(context.Context, string) ([]domain.Covenant, error) {
	return nil, nil
}

type waterfallFunc func(ctx context.Context, scenario domain.WaterfallScenario) (*domain.WaterfallResults, error)

func (f waterfallFunc) PerformWaterfallCalculation(ctx context.Context, scenario domain.WaterfallScenario) (*domain.WaterfallResults, error) {
	return f(ctx, scenario)
}

type sentEvent struct {
	eventType      string
	distributionID string
	recipients     []string
}

type recordingNotifier struct {
	events []sentEvent
}

func (n *recordingNotifier) PublishDistributionEvent(_ context.Context, eventType, distributionID, _, _ string, recipients []string, _ map[string]any) {
	n.events = append(n.events, sentEvent{eventType: eventType, distributionID: distributionID, recipients: recipients})
}

func (n *recordingNotifier) types() []string {
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.eventType)
	}
	return out
}

type txKey struct{}

// memTx snapshots the in-memory stores and restores them when fn fails.
type memTx struct {
	dists     *memDistributions
	audit     *memAudit
	commits   int
	rollbacks int
}

func (m *memTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.dists.mu.Lock()
	rows := make(map[string]domain.Distribution, len(m.dists.rows))
	for id, d := range m.dists.rows {
		rows[id] = d
	}
	creates, updates := m.dists.creates, m.dists.updates
	m.dists.mu.Unlock()
	entries := append([]domain.AuditEntry(nil), m.audit.entries...)

	if err := fn(context.WithValue(ctx, txKey{}, m)); err != nil {
		m.dists.mu.Lock()
		m.dists.rows, m.dists.creates, m.dists.updates = rows, creates, updates
		m.dists.mu.Unlock()
		m.audit.entries = entries
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}
