package gateway

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tollgate/internal/telemetry"
	"github.com/marmos91/tollgate/pkg/gateway/ratelimit"
	"github.com/marmos91/tollgate/pkg/gateway/replay"
	"github.com/marmos91/tollgate/pkg/gateway/score"
	"github.com/marmos91/tollgate/pkg/gateway/token"
)

// ============================================================================
// Test Helpers
// ============================================================================

// stubScores is an in-memory score.Provider. Absent principals resolve to
// zero, like the real direct provider.
type stubScores struct {
	mu     sync.Mutex
	scores map[string]int
	err    error
	closed bool
}

func (s *stubScores) GetScore(ctx context.Context, principalID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.scores[principalID], nil
}

func (s *stubScores) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// panickyScores blows up on every lookup.
type panickyScores struct{}

func (panickyScores) GetScore(context.Context, string) (int, error) {
	panic("score backend exploded")
}

func (panickyScores) Close() error { return nil }

// captureSink collects emitted telemetry lines.
type captureSink struct {
	mu    sync.Mutex
	lines [][]byte
}

func (s *captureSink) Write(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, append([]byte(nil), line...))
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) Lines() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

type harnessOptions struct {
	rpm      float64
	burst    int
	emitter  *telemetry.Emitter
	provider score.Provider
}

type engineHarness struct {
	clock   *clockwork.FakeClock
	key     *rsa.PrivateKey
	scores  *stubScores
	metrics *Metrics
	engine  *Engine
}

func newEngineHarness(t *testing.T, opts harnessOptions) *engineHarness {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "public.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	require.NoError(t, os.WriteFile(keyPath, pemBytes, 0o600))

	verifier, err := token.NewVerifier(token.Config{
		PublicKeyPath: keyPath,
		Algorithm:     "RS256",
		ClockDrift:    30 * time.Second,
		Clock:         clock,
	})
	require.NoError(t, err)

	rpm := opts.rpm
	if rpm == 0 {
		rpm = 600
	}
	burst := opts.burst
	if burst == 0 {
		burst = 1000
	}

	h := &engineHarness{
		clock:   clock,
		key:     key,
		scores:  &stubScores{scores: map[string]int{}},
		metrics: NewMetrics(clock),
	}

	provider := opts.provider
	if provider == nil {
		provider = h.scores
	}

	engine, err := NewEngine(EngineConfig{
		Verifier: verifier,
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerMinute: rpm,
			Burst:             burst,
			Clock:             clock,
		}),
		Replays: replay.New(replay.Config{
			PurgeInterval: -1,
			Clock:         clock,
		}),
		Scores:  provider,
		Metrics: h.metrics,
		Emitter: opts.emitter,
		Clock:   clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	h.engine = engine
	return h
}

func (h *engineHarness) signClaims(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(h.key)
	require.NoError(t, err)
	return signed
}

func (h *engineHarness) signedCredential(t *testing.T, sub, jti string) string {
	t.Helper()

	now := h.clock.Now()
	return h.signClaims(t, jwt.RegisteredClaims{
		Subject:   sub,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
}

func assertWellFormed(t *testing.T, resp Response) {
	t.Helper()

	assert.True(t, resp.Decision.IsValid())
	assert.Equal(t, resp.Decision == VerdictDeny, resp.Reason != nil,
		"reason must be present exactly when the verdict is DENY")
	if resp.Score != nil {
		assert.GreaterOrEqual(t, *resp.Score, 0)
		assert.LessOrEqual(t, *resp.Score, 100)
	}
	assert.False(t, resp.Timestamp.IsZero())
	assert.Equal(t, time.UTC, resp.Timestamp.Location())
}

// ============================================================================
// Verdict Paths
// ============================================================================

func TestValidateAllowsHighScore(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})
	h.scores.scores["high_user"] = 95

	resp := h.engine.Validate(context.Background(), h.signedCredential(t, "high_user", "jti-1"), "req-1")

	assertWellFormed(t, resp)
	assert.Equal(t, VerdictAllow, resp.Decision)
	assert.Nil(t, resp.Reason)
	require.NotNil(t, resp.Score)
	assert.Equal(t, 95, *resp.Score)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestValidateMonitorsMediumScore(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})
	h.scores.scores["med_user"] = 60

	resp := h.engine.Validate(context.Background(), h.signedCredential(t, "med_user", "jti-1"), "req-1")

	assertWellFormed(t, resp)
	assert.Equal(t, VerdictMonitor, resp.Decision)
	assert.Nil(t, resp.Reason)
	require.NotNil(t, resp.Score)
	assert.Equal(t, 60, *resp.Score)
}

func TestValidateDeniesLowScore(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})
	h.scores.scores["low_user"] = 5

	resp := h.engine.Validate(context.Background(), h.signedCredential(t, "low_user", "jti-1"), "req-1")

	assertWellFormed(t, resp)
	assert.Equal(t, VerdictDeny, resp.Decision)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, ReasonLowScore, *resp.Reason)
	require.NotNil(t, resp.Score)
	assert.Equal(t, 5, *resp.Score)
}

func TestValidateDeniesUnknownPrincipal(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})

	resp := h.engine.Validate(context.Background(), h.signedCredential(t, "stranger", "jti-1"), "req-1")

	assertWellFormed(t, resp)
	assert.Equal(t, VerdictDeny, resp.Decision)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, ReasonLowScore, *resp.Reason)
	require.NotNil(t, resp.Score)
	assert.Equal(t, 0, *resp.Score)
}

// ============================================================================
// Verification Failures
// ============================================================================

func TestValidateDeniesExpiredCredential(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})
	h.scores.scores["high_user"] = 95

	now := h.clock.Now()
	credential := h.signClaims(t, jwt.RegisteredClaims{
		Subject:   "high_user",
		ID:        "jti-1",
		IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
	})

	resp := h.engine.Validate(context.Background(), credential, "req-1")

	assertWellFormed(t, resp)
	assert.Equal(t, VerdictDeny, resp.Decision)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, ReasonExpiredToken, *resp.Reason)
	assert.Nil(t, resp.Score, "score is never fetched for a failed verification")
}

func TestValidateDeniesNotYetValidCredential(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})

	now := h.clock.Now()
	credential := h.signClaims(t, jwt.RegisteredClaims{
		Subject:   "high_user",
		ID:        "jti-1",
		NotBefore: jwt.NewNumericDate(now.Add(time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Hour)),
	})

	resp := h.engine.Validate(context.Background(), credential, "req-1")

	assertWellFormed(t, resp)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, ReasonNotYetValid, *resp.Reason)
}

func TestValidateDeniesWrongKeySignature(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	now := h.clock.Now()
	credential, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "high_user",
		ID:        "jti-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(otherKey)
	require.NoError(t, err)

	resp := h.engine.Validate(context.Background(), credential, "req-1")

	assertWellFormed(t, resp)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, ReasonInvalidSignature, *resp.Reason)
}

func TestValidateDeniesMalformedCredential(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})

	for _, credential := range []string{"", "garbage", "a.b"} {
		resp := h.engine.Validate(context.Background(), credential, "req-1")

		assertWellFormed(t, resp)
		assert.Equal(t, VerdictDeny, resp.Decision)
		require.NotNil(t, resp.Reason)
		assert.Equal(t, ReasonMalformedToken, *resp.Reason)
		assert.Nil(t, resp.Score)
	}
}

// ============================================================================
// Replay Suppression
// ============================================================================

func TestValidateDeniesReplayedCredential(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})
	h.scores.scores["high_user"] = 95

	credential := h.signedCredential(t, "high_user", "jti-1")

	first := h.engine.Validate(context.Background(), credential, "req-1")
	assert.Equal(t, VerdictAllow, first.Decision)

	second := h.engine.Validate(context.Background(), credential, "req-2")

	assertWellFormed(t, second)
	assert.Equal(t, VerdictDeny, second.Decision)
	require.NotNil(t, second.Reason)
	assert.Equal(t, ReasonReplayDetected, *second.Reason)
	assert.Nil(t, second.Score, "a replay never reaches the score backend")

	assert.Equal(t, int64(1), h.metrics.Snapshot().ReplayDetections)
	assert.Equal(t, 1, h.engine.ReplayCacheSize())
}

func TestValidateConcurrentIdenticalCredentials(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})
	h.scores.scores["high_user"] = 95

	credential := h.signedCredential(t, "high_user", "jti-contested")

	const callers = 8
	responses := make(chan Response, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			responses <- h.engine.Validate(context.Background(), credential, fmt.Sprintf("req-%d", n))
		}(i)
	}
	wg.Wait()
	close(responses)

	admitted := 0
	for resp := range responses {
		assertWellFormed(t, resp)
		if resp.Reason == nil || *resp.Reason != ReasonReplayDetected {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one presentation of a jti gets past the replay check")
}

// ============================================================================
// Rate Limiting
// ============================================================================

func TestValidateRateLimitsBurst(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{rpm: 100, burst: 3})
	h.scores.scores["high_user"] = 95

	var limited int
	for i := 0; i < 5; i++ {
		credential := h.signedCredential(t, "high_user", fmt.Sprintf("jti-%d", i))
		resp := h.engine.Validate(context.Background(), credential, fmt.Sprintf("req-%d", i))

		assertWellFormed(t, resp)
		if resp.Reason != nil && *resp.Reason == ReasonRateLimitExceeded {
			limited++
			assert.Nil(t, resp.Score)
		}
	}

	assert.Equal(t, 2, limited, "everything past the burst is refused")
	assert.Equal(t, int64(2), h.metrics.Snapshot().RateLimitHits)
}

// ============================================================================
// Failure Containment
// ============================================================================

func TestValidateScoreLookupFailureDecidesOnZero(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})
	h.scores.err = errors.New("backend unreachable")

	resp := h.engine.Validate(context.Background(), h.signedCredential(t, "high_user", "jti-1"), "req-1")

	assertWellFormed(t, resp)
	assert.Equal(t, VerdictDeny, resp.Decision)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, ReasonLowScore, *resp.Reason, "a score backend failure is a low score, not an internal error")
	require.NotNil(t, resp.Score)
	assert.Equal(t, 0, *resp.Score)
}

func TestValidatePanicBecomesInternalError(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{provider: panickyScores{}})

	resp := h.engine.Validate(context.Background(), h.signedCredential(t, "high_user", "jti-1"), "req-1")

	assertWellFormed(t, resp)
	assert.Equal(t, VerdictDeny, resp.Decision)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, ReasonInternalError, *resp.Reason)
	assert.Nil(t, resp.Score)
	assert.Equal(t, "req-1", resp.RequestID)

	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.DenyCount)
}

// ============================================================================
// Accounting and Telemetry
// ============================================================================

func TestValidateMetricsAccounting(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})
	h.scores.scores["high_user"] = 95
	h.scores.scores["med_user"] = 60

	credential := h.signedCredential(t, "high_user", "jti-1")
	h.engine.Validate(context.Background(), credential, "req-1")
	h.engine.Validate(context.Background(), credential, "req-2") // replay
	h.engine.Validate(context.Background(), h.signedCredential(t, "med_user", "jti-2"), "req-3")

	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.AllowCount)
	assert.Equal(t, int64(1), snap.MonitorCount)
	assert.Equal(t, int64(1), snap.DenyCount)
	assert.Equal(t, int64(1), snap.ReplayDetections)
	assert.Equal(t, int64(0), snap.RateLimitHits)
}

func TestValidateEmitsDecisionEvents(t *testing.T) {
	sink := &captureSink{}
	emitter := telemetry.NewEmitter(telemetry.EmitterConfig{
		Enabled: true,
		Version: "1.0.0",
		Sink:    sink,
	})

	h := newEngineHarness(t, harnessOptions{emitter: emitter})
	h.scores.scores["high_user"] = 95
	h.scores.scores["low_user"] = 5

	h.engine.Validate(context.Background(), h.signedCredential(t, "high_user", "jti-1"), "req-1")
	h.engine.Validate(context.Background(), h.signedCredential(t, "low_user", "jti-2"), "req-2")

	require.NoError(t, emitter.Close(context.Background()))

	lines := sink.Lines()
	require.Len(t, lines, 2)

	var allow map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &allow))
	assert.Equal(t, "1.0.0", allow["version"])
	assert.Equal(t, telemetry.EventDecisionMade, allow["event_type"])
	assert.Equal(t, "req-1", allow["request_id"])
	assert.Equal(t, "ALLOW", allow["verdict"])
	assert.Equal(t, float64(95), allow["score"])
	assert.Equal(t, score.HashPrincipal("high_user"), allow["principal_hash"])
	assert.NotContains(t, allow, "reason")

	var deny map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &deny))
	assert.Equal(t, "DENY", deny["verdict"])
	assert.Equal(t, "LOW_SCORE", deny["reason"])
	assert.Equal(t, float64(5), deny["score"])
}

func TestValidateEmitsErrorEventOnPanic(t *testing.T) {
	sink := &captureSink{}
	emitter := telemetry.NewEmitter(telemetry.EmitterConfig{
		Enabled: true,
		Version: "1.0.0",
		Sink:    sink,
	})

	h := newEngineHarness(t, harnessOptions{emitter: emitter, provider: panickyScores{}})

	h.engine.Validate(context.Background(), h.signedCredential(t, "high_user", "jti-1"), "req-1")

	require.NoError(t, emitter.Close(context.Background()))

	lines := sink.Lines()
	require.Len(t, lines, 1)

	var event map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &event))
	assert.Equal(t, telemetry.EventError, event["event_type"])
	assert.Equal(t, "panic", event["error_kind"])
	assert.Contains(t, event["error_message"], "score backend exploded")
	assert.Equal(t, "req-1", event["request_id"])
}

// ============================================================================
// Construction and Shutdown
// ============================================================================

func TestNewEngineRequiresComponents(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})

	base := EngineConfig{
		Verifier: h.engine.verifier,
		Limiter:  h.engine.limiter,
		Replays:  h.engine.replays,
		Scores:   h.engine.scores,
	}

	missingVerifier := base
	missingVerifier.Verifier = nil
	_, err := NewEngine(missingVerifier)
	assert.Error(t, err)

	missingLimiter := base
	missingLimiter.Limiter = nil
	_, err = NewEngine(missingLimiter)
	assert.Error(t, err)

	missingReplays := base
	missingReplays.Replays = nil
	_, err = NewEngine(missingReplays)
	assert.Error(t, err)

	missingScores := base
	missingScores.Scores = nil
	_, err = NewEngine(missingScores)
	assert.Error(t, err)
}

func TestEngineCloseReleasesComponents(t *testing.T) {
	h := newEngineHarness(t, harnessOptions{})

	require.NoError(t, h.engine.Close())
	assert.True(t, h.scores.closed)
}
