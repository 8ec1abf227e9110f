// Package score resolves trust scores for authenticated principals.
//
// A score is an integer in [0, 100] describing how much the deployment
// trusts a principal. Scores live outside the credential on purpose: a
// credential proves who is asking, not how much they are trusted, so
// nothing in its payload can influence the value returned here.
//
// Three providers are selectable by configuration:
//
//   - direct: every lookup reads the record store.
//   - cached: lookups consult a TTL cache (memory, redis, or badger)
//     before the record store; concurrent misses for the same principal
//     collapse into a single store read.
//   - remote: lookups call an external scoring API with a hard deadline,
//     behind a circuit breaker.
//
// All providers fail closed: an error, an absent record, or an
// out-of-range value resolves to score 0.
package score

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Score bounds. Values outside this range resolve to zero.
const (
	minScore = 0
	maxScore = 100
)

// Provider resolves the trust score for a principal.
type Provider interface {
	// GetScore returns the trust score for the given principal.
	//
	// A principal with no recorded score resolves to (0, nil): that is a
	// normal outcome, not an error. When err != nil the returned score is
	// always 0, so callers may decide on the zero score rather than
	// aborting the request.
	GetScore(ctx context.Context, principalID string) (int, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ScoreStore is the persistence surface the direct provider reads from.
type ScoreStore interface {
	GetScore(ctx context.Context, principalID string) (int, error)
}

// ProviderType defines the supported score provider backends.
type ProviderType string

const (
	// ProviderTypeDirect reads the record store on every lookup (default).
	ProviderTypeDirect ProviderType = "direct"

	// ProviderTypeCached layers a TTL cache over the record store.
	ProviderTypeCached ProviderType = "cached"

	// ProviderTypeRemote queries an external scoring API.
	ProviderTypeRemote ProviderType = "remote"
)

// IsValid reports whether t names a known provider type.
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderTypeDirect, ProviderTypeCached, ProviderTypeRemote:
		return true
	}
	return false
}

// Config selects and configures a score provider.
type Config struct {
	// Type selects the provider backend. Empty selects direct.
	Type ProviderType

	// Cache configures the caching layer. Used only by the cached provider.
	Cache CacheConfig

	// Remote configures the upstream scoring API. Used only by the remote
	// provider.
	Remote RemoteConfig
}

// NewProvider builds the score provider selected by cfg.
//
// The record store is required by the direct and cached providers and
// ignored by the remote provider.
func NewProvider(ctx context.Context, cfg Config, st ScoreStore) (Provider, error) {
	switch cfg.Type {
	case ProviderTypeDirect, "":
		if st == nil {
			return nil, fmt.Errorf("direct score provider requires a record store")
		}
		return NewDirectProvider(st), nil

	case ProviderTypeCached:
		if st == nil {
			return nil, fmt.Errorf("cached score provider requires a record store")
		}
		cache, err := newCache(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("build score cache: %w", err)
		}
		return NewCachedProvider(NewDirectProvider(st), cache, cfg.Cache.TTL), nil

	case ProviderTypeRemote:
		return NewRemoteProvider(cfg.Remote)

	default:
		return nil, fmt.Errorf("unknown score provider type: %q", cfg.Type)
	}
}

// HashPrincipal returns the SHA-256 digest of a principal identifier as
// lowercase hex. Telemetry and logs carry the digest so raw identifiers
// never leave the process.
func HashPrincipal(principalID string) string {
	sum := sha256.Sum256([]byte(principalID))
	return hex.EncodeToString(sum[:])
}

// normalize maps values outside [minScore, maxScore] to zero. An
// out-of-range record grants nothing.
func normalize(score int) int {
	if score < minScore || score > maxScore {
		return minScore
	}
	return score
}
