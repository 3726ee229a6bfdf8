package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

const keyPrefix = "distributions:dir"

// DirectorySource is the authoritative store behind the cache.
type DirectorySource interface {
	ListLPProfiles(ctx context.Context, fundID string) ([]domain.LPProfile, error)
	ListFeeTemplates(ctx context.Context, fundID string) ([]domain.FeeTemplate, error)
	ListStatementTemplates(ctx context.Context, fundID string) ([]domain.StatementTemplate, error)
	ListWaterfallScenarios(ctx context.Context, fundID string) ([]domain.WaterfallScenario, error)
	GetWaterfallScenario(ctx context.Context, id string) (*domain.WaterfallScenario, error)
	GetFundMetrics(ctx context.Context, fundID string) (*domain.FundMetrics, error)
	ListCovenants(ctx context.Context, fundID string) ([]domain.Covenant, error)
}

// DirectoryCache serves directory reads from Redis, falling back to the
// source on a miss. Cache errors are logged and never fail a read.
type DirectoryCache struct {
	store  *RedisStore
	source DirectorySource
	ttl    time.Duration
	log    zerolog.Logger
}

// NewDirectoryCache wraps source with a Redis read-through layer.
func NewDirectoryCache(store *RedisStore, source DirectorySource, ttl time.Duration, log zerolog.Logger) *DirectoryCache {
	return &DirectoryCache{store: store, source: source, ttl: ttl, log: log}
}

func key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, id)
}

func readThrough[T any](ctx context.Context, c *DirectoryCache, k string, load func() (T, error)) (T, error) {
	if raw, ok, err := c.store.Get(ctx, k); err != nil {
		c.log.Warn().Err(err).Str("key", k).Msg("Directory cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.log.Warn().Str("key", k).Msg("Discarding undecodable directory cache entry")
		if err := c.store.Delete(ctx, k); err != nil {
			c.log.Warn().Err(err).Str("key", k).Msg("Directory cache delete failed")
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Str("key", k).Msg("Directory cache encode failed")
		return v, nil
	}
	if err := c.store.Set(ctx, k, raw, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", k).Msg("Directory cache write failed")
	}
	return v, nil
}

func (c *DirectoryCache) ListLPProfiles(ctx context.Context, fundID string) ([]domain.LPProfile, error) {
	return readThrough(ctx, c, key("lp-profiles", fundID), func() ([]domain.LPProfile, error) {
		return c.source.ListLPProfiles(ctx, fundID)
	})
}

func (c *DirectoryCache) ListFeeTemplates(ctx context.Context, fundID string) ([]domain.FeeTemplate, error) {
	return readThrough(ctx, c, key("fee-templates", fundID), func() ([]domain.FeeTemplate, error) {
		return c.source.ListFeeTemplates(ctx, fundID)
	})
}

func (c *DirectoryCache) ListStatementTemplates(ctx context.Context, fundID string) ([]domain.StatementTemplate, error) {
	return readThrough(ctx, c, key("statement-templates", fundID), func() ([]domain.StatementTemplate, error) {
		return c.source.ListStatementTemplates(ctx, fundID)
	})
}

func (c *DirectoryCache) ListWaterfallScenarios(ctx context.Context, fundID string) ([]domain.WaterfallScenario, error) {
	return readThrough(ctx, c, key("scenarios", fundID), func() ([]domain.WaterfallScenario, error) {
		return c.source.ListWaterfallScenarios(ctx, fundID)
	})
}

func (c *DirectoryCache) GetWaterfallScenario(ctx context.Context, id string) (*domain.WaterfallScenario, error) {
	return readThrough(ctx, c, key("scenario", id), func() (*domain.WaterfallScenario, error) {
		return c.source.GetWaterfallScenario(ctx, id)
	})
}

func (c *DirectoryCache) GetFundMetrics(ctx context.Context, fundID string) (*domain.FundMetrics, error) {
	return readThrough(ctx, c, key("metrics", fundID), func() (*domain.FundMetrics, error) {
		return c.source.GetFundMetrics(ctx, fundID)
	})
}

func (c *DirectoryCache) ListCovenants(ctx context.Context, fundID string) ([]domain.Covenant, error) {
	return readThrough(ctx, c, key("covenants", fundID), func() ([]domain.Covenant, error) {
		return c.source.ListCovenants(ctx, fundID)
	})
}
