package score

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marmos91/tollgate/internal/logger"
	"github.com/marmos91/tollgate/internal/telemetry"
)

// CachedProvider layers a TTL cache over another provider.
//
// Cache failures never fail a lookup: a failed read falls through to the
// source and a failed write is logged and dropped. Concurrent misses for
// the same principal collapse into a single source lookup.
type CachedProvider struct {
	source Provider
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
}

// NewCachedProvider wraps source with the given cache. A non-positive TTL
// selects the default.
func NewCachedProvider(source Provider, cache Cache, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedProvider{
		source: source,
		cache:  cache,
		ttl:    ttl,
	}
}

// GetScore returns the cached score for the principal, consulting the
// source on a miss and populating the cache with the result. Absent
// records cache as 0 like any other score.
func (p *CachedProvider) GetScore(ctx context.Context, principalID string) (int, error) {
	lookupCtx, lookupSpan := telemetry.StartStageSpan(ctx, telemetry.SpanCacheLookup)
	cached, hit, err := p.cache.Get(lookupCtx, principalID)
	telemetry.SetAttributes(lookupCtx, telemetry.CacheHit(hit))
	if err != nil {
		telemetry.RecordError(lookupCtx, err)
	}
	lookupSpan.End()

	if err != nil {
		logger.Warn("Score cache read failed, falling back to source",
			"principal_hash", HashPrincipal(principalID),
			"error", err)
	} else if hit {
		return normalize(cached), nil
	}

	value, err, _ := p.group.Do(principalID, func() (any, error) {
		score, err := p.source.GetScore(ctx, principalID)
		if err != nil {
			return nil, err
		}
		if setErr := p.cache.Set(ctx, principalID, score, p.ttl); setErr != nil {
			logger.Warn("Score cache write failed",
				"principal_hash", HashPrincipal(principalID),
				"error", setErr)
		}
		return score, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(int), nil
}

// Close releases the cache and the underlying provider.
func (p *CachedProvider) Close() error {
	return errors.Join(p.cache.Close(), p.source.Close())
}
