package score

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/marmos91/tollgate/internal/logger"
	"github.com/marmos91/tollgate/internal/telemetry"
)

const (
	// remoteTimeout is the hard deadline for a scoring API request. A
	// scoring backend slower than this is treated as down.
	remoteTimeout = 2 * time.Second

	// breakerTimeout is how long the circuit stays open before probing
	// the scoring API again.
	breakerTimeout = 30 * time.Second

	// breakerFailureThreshold is the consecutive-failure count that opens
	// the circuit.
	breakerFailureThreshold = 5
)

// RemoteConfig configures the remote score provider.
type RemoteConfig struct {
	// APIURL is the base URL of the scoring API. Required.
	APIURL string

	// APIKey is presented to the API as a bearer credential.
	APIKey string

	// Timeout bounds each API request. Zero selects the default.
	Timeout time.Duration
}

// RemoteProvider queries an external scoring API.
//
// Lookups run behind a circuit breaker: once the API fails repeatedly the
// circuit opens and lookups fail immediately without touching the network,
// so a dead scoring backend degrades requests to score 0 instead of
// stalling them.
type RemoteProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRemoteProvider creates a provider for the scoring API described by
// cfg.
func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("remote score provider requires an API URL")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("parse score API URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = remoteTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "score-api",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Score API circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return &RemoteProvider{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}, nil
}

// GetScore queries the scoring API for the principal's score. Timeouts,
// connection failures, non-2xx responses, malformed bodies, and an open
// circuit all return an error with score 0.
func (p *RemoteProvider) GetScore(ctx context.Context, principalID string) (int, error) {
	value, err := p.breaker.Execute(func() (any, error) {
		score, err := p.fetch(ctx, principalID)
		if err != nil {
			return nil, err
		}
		return score, nil
	})
	if err != nil {
		return 0, fmt.Errorf("remote score lookup: %w", err)
	}
	return value.(int), nil
}

func (p *RemoteProvider) fetch(ctx context.Context, principalID string) (int, error) {
	// The endpoint embeds the raw principal, so it stays off the span.
	endpoint := fmt.Sprintf("%s/users/%s/score", p.baseURL, url.PathEscape(principalID))

	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanRemoteFetch)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return 0, fmt.Errorf("score request: %w", err)
	}
	defer resp.Body.Close()

	telemetry.SetAttributes(ctx, telemetry.HTTPStatus(resp.StatusCode))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, fmt.Errorf("score API returned status %d", resp.StatusCode)
	}

	var body struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}

	return normalize(body.Score), nil
}

// Close releases idle connections to the scoring API.
func (p *RemoteProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
