package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

// ServiceInfo identifies the running service in status responses.
type ServiceInfo struct {
	AppName     string
	Version     string
	Environment string
}

// StatusHandler handles the read-only status endpoints.
//
// Status endpoints are unauthenticated and provide:
//   - Health probe: gateway liveness plus replay-cache occupancy
//   - Metrics snapshot: the full counter set
//   - Service status: identity and a condensed counter block
//   - Root: an endpoint directory for humans poking at the API
type StatusHandler struct {
	gateway Gateway
	info    ServiceInfo
	clock   clockwork.Clock
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(gw Gateway, info ServiceInfo, clock clockwork.Clock) *StatusHandler {
	return &StatusHandler{
		gateway: gw,
		info:    info,
		clock:   clock,
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status          string    `json:"status"`
	Version         string    `json:"version"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	ReplayCacheSize int       `json:"replay_cache_size"`
	Timestamp       time.Time `json:"timestamp"`
}

// Health handles GET /health - liveness probe.
//
// Always returns 200 OK while the process is serving. The replay cache size
// is included so operators can watch memory pressure without scraping the
// full metrics snapshot.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, HealthResponse{
		Status:          "healthy",
		Version:         h.info.Version,
		UptimeSeconds:   int64(h.gateway.Metrics().Uptime().Seconds()),
		ReplayCacheSize: h.gateway.ReplayCacheSize(),
		Timestamp:       h.clock.Now().UTC(),
	})
}

// Metrics handles GET /metrics - full counter snapshot.
func (h *StatusHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.gateway.Metrics().Snapshot())
}

// StatusMetrics is the condensed counter block inside StatusResponse.
type StatusMetrics struct {
	TotalRequests int64 `json:"total_requests"`
	Allow         int64 `json:"allow"`
	Deny          int64 `json:"deny"`
	Monitor       int64 `json:"monitor"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Status        string        `json:"status"`
	AppName       string        `json:"app_name"`
	Version       string        `json:"version"`
	Environment   string        `json:"environment"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Metrics       StatusMetrics `json:"metrics"`
}

// Status handles GET /status - service identity and verdict counts.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.gateway.Metrics().Snapshot()

	WriteJSONOK(w, StatusResponse{
		Status:        "running",
		AppName:       h.info.AppName,
		Version:       h.info.Version,
		Environment:   h.info.Environment,
		UptimeSeconds: int64(snap.UptimeSeconds),
		Metrics: StatusMetrics{
			TotalRequests: snap.TotalRequests,
			Allow:         snap.AllowCount,
			Deny:          snap.DenyCount,
			Monitor:       snap.MonitorCount,
		},
	})
}

// RootResponse is the response body for GET /.
type RootResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Root handles GET / - endpoint directory.
func (h *StatusHandler) Root(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, RootResponse{
		Message: fmt.Sprintf("Welcome to %s", h.info.AppName),
		Version: h.info.Version,
		Endpoints: map[string]string{
			"validate": "POST /validate",
			"health":   "GET /health",
			"metrics":  "GET /metrics",
			"status":   "GET /status",
		},
	})
}
