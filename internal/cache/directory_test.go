package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

type countingSource struct {
	calls    map[string]int
	profiles []domain.LPProfile
	metrics  *domain.FundMetrics
}

func newCountingSource() *countingSource {
	return &countingSource{
		calls: map[string]int{},
		profiles: []domain.LPProfile{
			{ID: "lp-1", FundID: "fund-1", Name: "Pension A", Commitment: decimal.RequireFromString("6000000"), DefaultTaxRate: decimal.RequireFromString("15")},
		},
	}
}

func (s *countingSource) ListLPProfiles(_ context.Context, _ string) ([]domain.LPProfile, error) {
	s.calls["profiles"]++
	return s.profiles, nil
}

func (s *countingSource) ListFeeTemplates(_ context.Context, _ string) ([]domain.FeeTemplate, error) {
	s.calls["fees"]++
	return []domain.FeeTemplate{}, nil
}

func (s *countingSource) ListStatementTemplates(_ context.Context, _ string) ([]domain.StatementTemplate, error) {
	s.calls["statements"]++
	return []domain.StatementTemplate{{ID: "tpl-1", Name: "Quarterly"}}, nil
}

func (s *countingSource) ListWaterfallScenarios(_ context.Context, _ string) ([]domain.WaterfallScenario, error) {
	s.calls["scenarios"]++
	return nil, nil
}

func (s *countingSource) GetWaterfallScenario(_ context.Context, id string) (*domain.WaterfallScenario, error) {
	s.calls["scenario"]++
	return nil, errors.NotFound("waterfall_scenario", id)
}

func (s *countingSource) GetFundMetrics(_ context.Context, _ string) (*domain.FundMetrics, error) {
	s.calls["metrics"]++
	return s.metrics, nil
}

func (s *countingSource) ListCovenants(_ context.Context, _ string) ([]domain.Covenant, error) {
	s.calls["covenants"]++
	return []domain.Covenant{}, nil
}

func newTestCache(t *testing.T) (*DirectoryCache, *countingSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = store.Close() })

	src := newCountingSource()
	return NewDirectoryCache(store, src, time.Minute, zerolog.Nop()), src, mr
}

func TestDirectoryCacheReadThrough(t *testing.T) {
	c, src, mr := newTestCache(t)
	ctx := context.Background()

	first, err := c.ListLPProfiles(ctx, "fund-1")
	require.NoError(t, err)
	second, err := c.ListLPProfiles(ctx, "fund-1")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls["profiles"])
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, first[0].DefaultTaxRate.Equal(second[0].DefaultTaxRate))
	assert.True(t, mr.Exists("distributions:dir:lp-profiles:fund-1"))

	mr.FastForward(2 * time.Minute)
	_, err = c.ListLPProfiles(ctx, "fund-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls["profiles"])
}

func TestDirectoryCacheDoesNotCacheErrors(t *testing.T) {
	c, src, mr := newTestCache(t)
	ctx := context.Background()

	for range 2 {
		_, err := c.GetWaterfallScenario(ctx, "wf-1")
		assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	}
	assert.Equal(t, 2, src.calls["scenario"])
	assert.False(t, mr.Exists("distributions:dir:scenario:wf-1"))
}

func TestDirectoryCacheMissingMetrics(t *testing.T) {
	c, src, _ := newTestCache(t)
	ctx := context.Background()

	m, err := c.GetFundMetrics(ctx, "fund-1")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = c.GetFundMetrics(ctx, "fund-1")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 1, src.calls["metrics"])
}

func TestDirectoryCacheDropsUndecodableEntry(t *testing.T) {
	c, src, mr := newTestCache(t)
	ctx := context.Background()
	k := key("scenario", "wf-missing")
	require.NoError(t, mr.Set(k, "{not json"))

	_, err := c.GetWaterfallScenario(ctx, "wf-missing")

	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	assert.Equal(t, 1, src.calls["scenario"])
	assert.False(t, mr.Exists(k), "corrupt entry must not outlive a failed reload")
}

func TestDirectoryCacheSurvivesRedisOutage(t *testing.T) {
	c, src, mr := newTestCache(t)
	mr.Close()

	profiles, err := c.ListLPProfiles(context.Background(), "fund-1")

	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	assert.Equal(t, 1, src.calls["profiles"])
}
