package score

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// defaultCacheTTL applies when no TTL is configured.
	defaultCacheTTL = 5 * time.Minute

	// defaultMaxEntries bounds the memory backend when no limit is
	// configured.
	defaultMaxEntries = 100_000

	// janitorInterval is the sweep cadence for the memory backend.
	janitorInterval = time.Minute
)

// CacheBackend defines the supported score cache backends.
type CacheBackend string

const (
	// CacheBackendMemory keeps scores in an in-process map (default).
	CacheBackendMemory CacheBackend = "memory"

	// CacheBackendRedis keeps scores in a shared redis instance.
	CacheBackendRedis CacheBackend = "redis"

	// CacheBackendBadger keeps scores in an embedded on-disk store.
	CacheBackendBadger CacheBackend = "badger"
)

// IsValid reports whether b names a known cache backend.
func (b CacheBackend) IsValid() bool {
	switch b {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendBadger:
		return true
	}
	return false
}

// CacheConfig configures the caching layer of the cached provider.
type CacheConfig struct {
	// Backend selects the cache implementation. Empty selects memory.
	Backend CacheBackend

	// TTL is how long a cached score stays valid. Zero selects the default.
	TTL time.Duration

	// MaxEntries bounds the memory backend. Zero selects the default.
	MaxEntries int

	// RedisURL is the redis connection URL. Required by the redis backend.
	RedisURL string

	// BadgerPath is the cache directory. Required by the badger backend.
	BadgerPath string
}

// Cache is a TTL score cache. Implementations are best-effort: a failed
// write must not fail the lookup that triggered it.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached score for key and whether it was present.
	Get(ctx context.Context, key string) (int, bool, error)

	// Set stores score under key for the given TTL.
	Set(ctx context.Context, key string, score int, ttl time.Duration) error

	// Close releases backend resources.
	Close() error
}

// newCache builds the cache backend selected by cfg.
func newCache(ctx context.Context, cfg CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case CacheBackendMemory, "":
		return newMemoryCache(cfg.MaxEntries, nil), nil
	case CacheBackendRedis:
		return newRedisCache(ctx, cfg.RedisURL)
	case CacheBackendBadger:
		return newBadgerCache(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown score cache backend: %q", cfg.Backend)
	}
}

// memoryCache is the in-process backend. Expired entries are skipped on
// read and removed by a background janitor.
type memoryCache struct {
	clock      clockwork.Clock
	maxEntries int

	mu      sync.RWMutex
	entries map[string]memoryEntry

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	score     int
	expiresAt time.Time
}

// newMemoryCache creates the memory backend and starts its janitor. A nil
// clock selects a real clock.
func newMemoryCache(maxEntries int, clock clockwork.Clock) *memoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &memoryCache{
		clock:      clock,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *memoryCache) Get(ctx context.Context, key string) (int, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.clock.Now().After(entry.expiresAt) {
		return 0, false, nil
	}
	return entry.score, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, score int, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		c.sweepLocked()
		if len(c.entries) >= c.maxEntries {
			// Full of live entries. Dropping the write is fine: the cache
			// is best-effort and the source remains authoritative.
			return nil
		}
	}

	c.entries[key] = memoryEntry{
		score:     score,
		expiresAt: c.clock.Now().Add(ttl),
	}
	return nil
}

// Close stops the janitor and discards all entries.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.doneCh

	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// size reports the number of entries, expired ones included.
func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) janitor() {
	defer close(c.doneCh)

	ticker := c.clock.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.mu.Lock()
			c.sweepLocked()
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// sweepLocked removes expired entries. Callers must hold mu.
func (c *memoryCache) sweepLocked() {
	now := c.clock.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
