package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"crypto-trading-agent/internal/domain"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const analysisKeyPrefix = "analysis:"

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// AnalysisCache keeps the latest analysis per asset in process memory and,
// when configured, in redis so other processes can read it.
type AnalysisCache struct {
	tracer trace.Tracer
	local  *gocache.Cache
	redis  RedisClient
	ttl    time.Duration
}

// NewAnalysisCache accepts a nil redis client for a local only cache.
func NewAnalysisCache(tracer trace.Tracer, redisClient RedisClient, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &AnalysisCache{
		tracer: tracer,
		local:  gocache.New(ttl, 2*ttl),
		redis:  redisClient,
		ttl:    ttl,
	}
}

func (c *AnalysisCache) StoreAnalysis(ctx context.Context, analysis domain.AssetAnalysis) error {
	ctx, span := c.tracer.Start(ctx, "analysis-cache.store")
	defer span.End()

	key := analysisKeyPrefix + strings.ToUpper(analysis.Symbol)
	c.local.SetDefault(key, analysis)
	if c.redis == nil {
		return nil
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, c.ttl).Err()
}

// Get returns the cached analysis for symbol. A miss is not an error.
func (c *AnalysisCache) Get(ctx context.Context, symbol string) (domain.AssetAnalysis, bool, error) {
	ctx, span := c.tracer.Start(ctx, "analysis-cache.get")
	defer span.End()

	key := analysisKeyPrefix + strings.ToUpper(strings.TrimSpace(symbol))
	if v, ok := c.local.Get(key); ok {
		return v.(domain.AssetAnalysis), true, nil
	}
	if c.redis == nil {
		return domain.AssetAnalysis{}, false, nil
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AssetAnalysis{}, false, nil
	}
	if err != nil {
		return domain.AssetAnalysis{}, false, err
	}
	var analysis domain.AssetAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return domain.AssetAnalysis{}, false, err
	}
	c.local.SetDefault(key, analysis)
	return analysis, true, nil
}

// Latest returns the locally cached analyses ordered by symbol.
func (c *AnalysisCache) Latest() []domain.AssetAnalysis {
	items := c.local.Items()
	out := make([]domain.AssetAnalysis, 0, len(items))
	for key, item := range items {
		if !strings.HasPrefix(key, analysisKeyPrefix) {
			continue
		}
		if a, ok := item.Object.(domain.AssetAnalysis); ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
