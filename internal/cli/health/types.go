// Package health provides shared types for health check responses.
package health

import "time"

// Response mirrors the gateway's GET /health response body.
type Response struct {
	Status          string    `json:"status"`
	Version         string    `json:"version"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	ReplayCacheSize int       `json:"replay_cache_size"`
	Timestamp       time.Time `json:"timestamp"`
}

// Healthy reports whether the response indicates a serving gateway.
func (r *Response) Healthy() bool {
	return r.Status == "healthy"
}
