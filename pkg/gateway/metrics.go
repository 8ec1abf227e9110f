package gateway

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pipeline counters. Counters are atomic with no
// cross-counter consistency guarantee; a snapshot is a set of individually
// consistent reads.
//
// A nil *Metrics is a valid no-op collector, so callers never guard their
// increments.
type Metrics struct {
	clock     clockwork.Clock
	startedAt time.Time

	totalRequests    atomic.Int64
	allowCount       atomic.Int64
	monitorCount     atomic.Int64
	denyCount        atomic.Int64
	rateLimitHits    atomic.Int64
	replayDetections atomic.Int64
	latencyMicros    atomic.Int64

	registry *prometheus.Registry
	prom     *promCollectors
}

// promCollectors mirrors the counters into a private Prometheus registry for
// scraping.
type promCollectors struct {
	requests         prometheus.Counter
	decisions        *prometheus.CounterVec
	rateLimitHits    prometheus.Counter
	replayDetections prometheus.Counter
	latency          prometheus.Histogram
}

// MetricsSnapshot is a point-in-time read of the counters with derived
// values.
type MetricsSnapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	AllowCount       int64   `json:"allow_count"`
	MonitorCount     int64   `json:"monitor_count"`
	DenyCount        int64   `json:"deny_count"`
	RateLimitHits    int64   `json:"rate_limit_hits"`
	ReplayDetections int64   `json:"replay_detections"`
	LatencyMsSum     float64 `json:"latency_ms_sum"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector. A nil clock selects a real one.
func NewMetrics(clock clockwork.Clock) *Metrics {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	registry := prometheus.NewRegistry()

	return &Metrics{
		clock:     clock,
		startedAt: clock.Now(),
		registry:  registry,
		prom: &promCollectors{
			requests: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "tollgate_requests_total",
				Help: "Total number of validation requests received",
			}),
			decisions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "tollgate_decisions_total",
				Help: "Validation outcomes by verdict",
			}, []string{"verdict"}),
			rateLimitHits: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "tollgate_rate_limit_hits_total",
				Help: "Requests refused by the rate limiter",
			}),
			replayDetections: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "tollgate_replay_detections_total",
				Help: "Credentials refused as replays",
			}),
			latency: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
				Name:    "tollgate_request_duration_milliseconds",
				Help:    "Validation latency in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 2000},
			}),
		},
	}
}

// Registry exposes the Prometheus registry for scrape handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WatchReplayCacheSize registers a gauge reading the replay cache entry
// count at scrape time.
func (m *Metrics) WatchReplayCacheSize(size func() int) {
	if m == nil || size == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tollgate_replay_cache_entries",
		Help: "Credential IDs currently tracked by the replay cache",
	}, func() float64 { return float64(size()) })
}

// RecordRequest counts an inbound validation request.
func (m *Metrics) RecordRequest() {
	if m == nil {
		return
	}
	m.totalRequests.Add(1)
	m.prom.requests.Inc()
}

// RecordVerdict counts the outcome of a validation.
func (m *Metrics) RecordVerdict(v Verdict) {
	if m == nil {
		return
	}
	switch v {
	case VerdictAllow:
		m.allowCount.Add(1)
	case VerdictMonitor:
		m.monitorCount.Add(1)
	case VerdictDeny:
		m.denyCount.Add(1)
	}
	m.prom.decisions.WithLabelValues(string(v)).Inc()
}

// RecordRateLimitHit counts a refusal by the rate limiter.
func (m *Metrics) RecordRateLimitHit() {
	if m == nil {
		return
	}
	m.rateLimitHits.Add(1)
	m.prom.rateLimitHits.Inc()
}

// RecordReplayDetection counts a credential refused as a replay.
func (m *Metrics) RecordReplayDetection() {
	if m == nil {
		return
	}
	m.replayDetections.Add(1)
	m.prom.replayDetections.Inc()
}

// RecordLatency accumulates one request's pipeline latency.
func (m *Metrics) RecordLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.latencyMicros.Add(d.Microseconds())
	m.prom.latency.Observe(float64(d.Microseconds()) / 1000)
}

// Snapshot reads the counters and derives averages and uptime.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}

	total := m.totalRequests.Load()
	latencyMs := float64(m.latencyMicros.Load()) / 1000

	divisor := total
	if divisor < 1 {
		divisor = 1
	}

	return MetricsSnapshot{
		TotalRequests:    total,
		AllowCount:       m.allowCount.Load(),
		MonitorCount:     m.monitorCount.Load(),
		DenyCount:        m.denyCount.Load(),
		RateLimitHits:    m.rateLimitHits.Load(),
		ReplayDetections: m.replayDetections.Load(),
		LatencyMsSum:     latencyMs,
		AvgLatencyMs:     latencyMs / float64(divisor),
		UptimeSeconds:    m.clock.Since(m.startedAt).Seconds(),
	}
}

// Uptime returns how long this collector has been alive.
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return m.clock.Since(m.startedAt)
}
