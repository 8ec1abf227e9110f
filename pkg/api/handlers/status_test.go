package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tollgate/pkg/gateway"
)

func testInfo() ServiceInfo {
	return ServiceInfo{
		AppName:     "tollgate",
		Version:     "0.1.0",
		Environment: "development",
	}
}

// newStatusHarness builds a StatusHandler over a fake gateway whose metrics
// run on a fake clock, so uptime and timestamps are deterministic.
func newStatusHarness(t *testing.T) (*StatusHandler, *fakeGateway, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	fake := &fakeGateway{
		metrics:    gateway.NewMetrics(clock),
		replaySize: 7,
	}

	return NewStatusHandler(fake, testInfo(), clock), fake, clock
}

func getJSON(t *testing.T, handler http.HandlerFunc, path string) map[string]any {
	t.Helper()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, path, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthShape(t *testing.T) {
	h, _, clock := newStatusHarness(t)
	clock.Advance(90 * time.Second)

	body := getJSON(t, h.Health, "/health")

	// The health payload is a fixed contract; nothing extra sneaks in.
	assert.Len(t, body, 5)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "0.1.0", body["version"])
	assert.Equal(t, float64(90), body["uptime_seconds"])
	assert.Equal(t, float64(7), body["replay_cache_size"])

	timestamp, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	require.NoError(t, err)
	assert.Equal(t, clock.Now().UTC(), timestamp.UTC())
}

func TestMetricsSnapshotPassthrough(t *testing.T) {
	h, fake, _ := newStatusHarness(t)

	for i := 0; i < 3; i++ {
		fake.metrics.RecordRequest()
	}
	fake.metrics.RecordVerdict(gateway.VerdictAllow)
	fake.metrics.RecordVerdict(gateway.VerdictAllow)
	fake.metrics.RecordVerdict(gateway.VerdictDeny)
	fake.metrics.RecordLatency(6 * time.Millisecond)

	body := getJSON(t, h.Metrics, "/metrics")

	assert.Equal(t, float64(3), body["total_requests"])
	assert.Equal(t, float64(2), body["allow_count"])
	assert.Equal(t, float64(1), body["deny_count"])
	assert.Equal(t, float64(0), body["monitor_count"])
	assert.Equal(t, float64(0), body["rate_limit_hits"])
	assert.Equal(t, float64(0), body["replay_detections"])
	assert.InDelta(t, 6.0, body["latency_ms_sum"], 0.001)
	assert.InDelta(t, 2.0, body["avg_latency_ms"], 0.001)
	assert.Contains(t, body, "uptime_seconds")
}

func TestStatusShape(t *testing.T) {
	h, fake, clock := newStatusHarness(t)

	fake.metrics.RecordRequest()
	fake.metrics.RecordVerdict(gateway.VerdictMonitor)
	clock.Advance(2 * time.Minute)

	body := getJSON(t, h.Status, "/status")

	assert.Len(t, body, 6)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "tollgate", body["app_name"])
	assert.Equal(t, "0.1.0", body["version"])
	assert.Equal(t, "development", body["environment"])
	assert.Equal(t, float64(120), body["uptime_seconds"])

	counters, ok := body["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, counters, 4)
	assert.Equal(t, float64(1), counters["total_requests"])
	assert.Equal(t, float64(0), counters["allow"])
	assert.Equal(t, float64(0), counters["deny"])
	assert.Equal(t, float64(1), counters["monitor"])
}

func TestRootDirectory(t *testing.T) {
	h, _, _ := newStatusHarness(t)

	body := getJSON(t, h.Root, "/")

	assert.Equal(t, "Welcome to tollgate", body["message"])
	assert.Equal(t, "0.1.0", body["version"])

	endpoints, ok := body["endpoints"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "POST /validate", endpoints["validate"])
	assert.Equal(t, "GET /health", endpoints["health"])
	assert.Equal(t, "GET /metrics", endpoints["metrics"])
	assert.Equal(t, "GET /status", endpoints["status"])
}
