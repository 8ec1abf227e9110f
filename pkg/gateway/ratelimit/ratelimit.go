// Package ratelimit provides a keyed token-bucket admission gate for the
// validation pipeline.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// KeyGlobal is the bucket shared by every request when per-principal keying
// is not in use.
const KeyGlobal = "global"

const (
	// idleTTL is how long an untouched bucket survives before eviction.
	idleTTL = 10 * time.Minute

	// sweepEvery is the number of lookups between eviction sweeps.
	sweepEvery = 4096
)

// Config holds the token-bucket parameters.
type Config struct {
	// RequestsPerMinute is the sustained refill quota. Non-positive values
	// disable limiting entirely.
	RequestsPerMinute float64

	// Burst is the bucket capacity. Non-positive values default to 1.2x the
	// per-minute quota.
	Burst int

	// Clock is used for token accounting. If omitted, a real clock is used.
	Clock clockwork.Clock
}

// bucket pairs a limiter with the last time it was used, so idle buckets can
// be evicted.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a keyed token-bucket rate limiter. Buckets are created on
// demand and evicted after sitting idle, so per-principal keying stays
// bounded in memory.
//
// The limiter is a capacity control, not an authorization mechanism: it
// never refuses a request due to internal failure.
//
// Safe for concurrent use.
type Limiter struct {
	limit rate.Limit
	burst int
	clock clockwork.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
}

// New creates a limiter from cfg, applying defaults for unset fields.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RequestsPerMinute / 60)
	if cfg.RequestsPerMinute <= 0 {
		limit = rate.Inf
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RequestsPerMinute * 1.2)
	}
	if burst <= 0 {
		burst = 1
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Limiter{
		limit:   limit,
		burst:   burst,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Admit reports whether the request keyed by key may proceed, consuming one
// token when it does.
func (l *Limiter) Admit(key string) bool {
	now := l.clock.Now()
	return l.bucket(key, now).AllowN(now, 1)
}

// bucket returns the limiter for key, creating it if absent. Idle buckets
// are swept opportunistically, before the lookup so a stale entry for the
// requested key is also evicted.
func (l *Limiter) bucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lookups++
	if l.lookups >= sweepEvery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lookups = 0
	}

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	b := &bucket{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.buckets[key] = b
	return b.limiter
}

// Size returns the number of live buckets.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
