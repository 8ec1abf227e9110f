// Package replay suppresses credential replay. Each credential ID is
// admitted exactly once per process and refused on every subsequent
// presentation until its expiry passes.
package replay

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/marmos91/tollgate/internal/logger"
)

const (
	// defaultMaxSize bounds the tracked IDs when no limit is configured.
	defaultMaxSize = 1_000_000

	// defaultPurgeInterval is the background purge cadence when none is
	// configured.
	defaultPurgeInterval = 5 * time.Minute
)

// Config holds replay cache settings.
type Config struct {
	// MaxSize bounds the number of tracked IDs. Zero selects the default;
	// the bound is enforced on insert.
	MaxSize int

	// PurgeInterval is the background purge cadence. Zero selects the
	// default; negative disables the background purge entirely.
	PurgeInterval time.Duration

	// Clock is used for expiry comparisons. If omitted, a real clock is used.
	Clock clockwork.Clock
}

// Cache is an in-memory set of seen credential IDs with their expirations.
//
// Expired entries are purged in the background and opportunistically when
// the cache hits its size bound. An entry is only removed once its expiry
// is in the past: by then the credential itself no longer verifies, so
// re-admitting the ID cannot enable a replay.
//
// Safe for concurrent use.
type Cache struct {
	clock   clockwork.Clock
	maxSize int

	mu   sync.Mutex
	seen map[string]time.Time

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a replay cache and starts its background purge.
func New(cfg Config) *Cache {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &Cache{
		clock:   clock,
		maxSize: maxSize,
		seen:    make(map[string]time.Time),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	interval := cfg.PurgeInterval
	if interval == 0 {
		interval = defaultPurgeInterval
	}
	if interval > 0 {
		go c.purgeLoop(interval)
	} else {
		close(c.doneCh)
	}

	return c
}

// CheckAndRecord reports whether tokenID is a replay, recording it when it
// is not. The check and the record are a single atomic step: of any number
// of concurrent presentations of the same ID, exactly one is admitted.
//
// An empty tokenID is treated as a replay. So is any insert that cannot be
// honored because the cache is full even after purging expired entries:
// refusing is the safe failure mode here.
func (c *Cache) CheckAndRecord(tokenID string, expiresAt time.Time) bool {
	if tokenID == "" {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[tokenID]; ok {
		return true
	}

	if len(c.seen) >= c.maxSize {
		c.purgeLocked(c.clock.Now())
		if len(c.seen) >= c.maxSize {
			logger.Warn("Replay cache full, refusing credential",
				"cache_size", len(c.seen),
				"jti", tokenID,
			)
			return true
		}
	}

	c.seen[tokenID] = expiresAt
	return false
}

// Purge removes entries whose expiry has passed and returns how many were
// evicted.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(c.clock.Now())
}

// purgeLocked removes expired entries. Entries expiring exactly now, or
// later, are kept. Caller must hold the mutex.
func (c *Cache) purgeLocked(now time.Time) int {
	evicted := 0
	for id, expiresAt := range c.seen {
		if expiresAt.Before(now) {
			delete(c.seen, id)
			evicted++
		}
	}
	return evicted
}

// Size returns the number of tracked credential IDs.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Close stops the background purge. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.doneCh
}

func (c *Cache) purgeLoop(interval time.Duration) {
	defer close(c.doneCh)

	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if evicted := c.Purge(); evicted > 0 {
				logger.Debug("Replay cache purged",
					"evicted", evicted,
					"cache_size", c.Size(),
				)
			}
		case <-c.stopCh:
			return
		}
	}
}
