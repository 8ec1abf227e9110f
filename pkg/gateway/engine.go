package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/marmos91/tollgate/internal/logger"
	"github.com/marmos91/tollgate/internal/telemetry"
	"github.com/marmos91/tollgate/pkg/gateway/ratelimit"
	"github.com/marmos91/tollgate/pkg/gateway/replay"
	"github.com/marmos91/tollgate/pkg/gateway/score"
	"github.com/marmos91/tollgate/pkg/gateway/token"
)

// EngineConfig carries the engine's collaborators. Verifier, Limiter,
// Replays, and Scores are required; Metrics and Emitter may be nil to
// disable counters or telemetry.
type EngineConfig struct {
	Verifier *token.Verifier
	Limiter  *ratelimit.Limiter
	Replays  *replay.Cache
	Scores   score.Provider
	Metrics  *Metrics
	Emitter  *telemetry.Emitter

	// Clock is used for latency and response timestamps. If omitted, a
	// real clock is used.
	Clock clockwork.Clock
}

// Engine runs the validation pipeline: rate limit, verify, replay check,
// score lookup, decision. Every call produces a well-formed Response;
// failures inside the pipeline collapse to a DENY instead of propagating.
type Engine struct {
	verifier *token.Verifier
	limiter  *ratelimit.Limiter
	replays  *replay.Cache
	scores   score.Provider
	metrics  *Metrics
	emitter  *telemetry.Emitter
	clock    clockwork.Clock
}

// NewEngine wires the pipeline together.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("engine requires a credential verifier")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("engine requires a rate limiter")
	}
	if cfg.Replays == nil {
		return nil, fmt.Errorf("engine requires a replay cache")
	}
	if cfg.Scores == nil {
		return nil, fmt.Errorf("engine requires a score provider")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Engine{
		verifier: cfg.Verifier,
		limiter:  cfg.Limiter,
		replays:  cfg.Replays,
		scores:   cfg.Scores,
		metrics:  cfg.Metrics,
		emitter:  cfg.Emitter,
		clock:    clock,
	}, nil
}

// Validate runs one credential through the pipeline and returns the
// verdict. It never panics out: any failure the pipeline does not handle
// explicitly becomes DENY with reason INTERNAL_ERROR.
//
// The stage order is deliberate. Rate limiting runs before signature
// verification so floods cannot buy CPU; verification runs before replay
// recording so unverified callers cannot pollute the replay set; the
// replay check runs before the score lookup so replays never reach the
// score backend.
func (e *Engine) Validate(ctx context.Context, credential, requestID string) (resp Response) {
	start := e.clock.Now()

	ctx, span := telemetry.StartValidateSpan(ctx, requestID)
	defer span.End()

	ctx = telemetry.InjectTraceContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "Validation pipeline panicked", "panic", r)
			resp = e.internalError(ctx, start, requestID, r)
		}
	}()

	e.metrics.RecordRequest()

	if !e.limiter.Admit(ratelimit.KeyGlobal) {
		e.metrics.RecordRateLimitHit()
		return e.finish(ctx, start, requestID, "", VerdictDeny, denyReason(ReasonRateLimitExceeded), nil)
	}

	_, verifySpan := telemetry.StartStageSpan(ctx, telemetry.SpanVerify,
		telemetry.Algorithm(e.verifier.Algorithm()))
	payload, err := e.verifier.Verify(credential)
	verifySpan.End()
	if err != nil {
		return e.finish(ctx, start, requestID, "", VerdictDeny, denyReason(verifyDenyReason(err)), nil)
	}

	principalHash := score.HashPrincipal(payload.Subject)
	telemetry.SetAttributes(ctx,
		telemetry.Principal(principalHash),
		telemetry.TokenID(payload.TokenID))
	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithPrincipal(principalHash))
	}

	if e.replays.CheckAndRecord(payload.TokenID, payload.ExpiresAt) {
		e.metrics.RecordReplayDetection()
		return e.finish(ctx, start, requestID, principalHash, VerdictDeny, denyReason(ReasonReplayDetected), nil)
	}

	lookupCtx, lookupSpan := telemetry.StartStageSpan(ctx, telemetry.SpanScoreLookup)
	trustScore, err := e.scores.GetScore(lookupCtx, payload.Subject)
	if err != nil {
		telemetry.RecordError(lookupCtx, err)
	}
	lookupSpan.End()
	if err != nil {
		logger.WarnCtx(ctx, "Trust score lookup failed, deciding on zero",
			"error", err)
		trustScore = 0
	}

	verdict := Decide(trustScore)
	var reason *DenyReason
	if verdict == VerdictDeny {
		reason = denyReason(ReasonLowScore)
	}

	return e.finish(ctx, start, requestID, principalHash, verdict, reason, &trustScore)
}

// ReplayCacheSize reports how many credential IDs the replay cache is
// tracking.
func (e *Engine) ReplayCacheSize() int {
	return e.replays.Size()
}

// Metrics returns the engine's counters. May be nil.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Close releases the engine's components. The caller owns the telemetry
// emitter and the record store behind the score provider.
func (e *Engine) Close() error {
	e.replays.Close()
	return errors.Join(e.verifier.Close(), e.scores.Close())
}

// finish records the outcome and builds the Response. All pipeline exits
// except panic recovery come through here, so every outcome carries
// counters, latency, span attributes, and one decision event.
func (e *Engine) finish(ctx context.Context, start time.Time, requestID, principalHash string, verdict Verdict, reason *DenyReason, trustScore *int) Response {
	e.metrics.RecordVerdict(verdict)

	latency := e.clock.Since(start)
	e.metrics.RecordLatency(latency)

	ts := e.clock.Now().UTC()

	telemetry.SetAttributes(ctx, telemetry.Verdict(string(verdict)))
	if reason != nil {
		telemetry.SetAttributes(ctx, telemetry.Reason(string(*reason)))
	}
	if trustScore != nil {
		telemetry.SetAttributes(ctx, telemetry.Score(*trustScore))
	}

	var reasonStr *string
	if reason != nil {
		s := string(*reason)
		reasonStr = &s
	}
	e.emitter.EmitDecision(ts, requestID, string(verdict), reasonStr, trustScore, principalHash, latency)

	return Response{
		Decision:  verdict,
		Reason:    reason,
		RequestID: requestID,
		Timestamp: ts,
		Score:     trustScore,
	}
}

// internalError builds the DENY response for a recovered panic.
func (e *Engine) internalError(ctx context.Context, start time.Time, requestID string, cause any) Response {
	e.metrics.RecordVerdict(VerdictDeny)

	latency := e.clock.Since(start)
	e.metrics.RecordLatency(latency)

	ts := e.clock.Now().UTC()
	telemetry.RecordError(ctx, fmt.Errorf("pipeline panic: %v", cause))
	e.emitter.EmitError(ts, requestID, "panic", fmt.Sprint(cause))

	return Response{
		Decision:  VerdictDeny,
		Reason:    denyReason(ReasonInternalError),
		RequestID: requestID,
		Timestamp: ts,
	}
}

// verifyDenyReason maps a verification error to its deny reason. Unknown
// errors count as signature failures: the credential did not prove itself.
func verifyDenyReason(err error) DenyReason {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ReasonExpiredToken
	case errors.Is(err, token.ErrNotYetValid):
		return ReasonNotYetValid
	case errors.Is(err, token.ErrMalformed):
		return ReasonMalformedToken
	default:
		return ReasonInvalidSignature
	}
}

// denyReason returns a pointer to r for the nullable Response field.
func denyReason(r DenyReason) *DenyReason {
	return &r
}
