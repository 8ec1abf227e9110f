// Package gateway implements the token admission pipeline: rate limiting,
// credential verification, replay detection, trust-score lookup, and the
// final verdict.
package gateway

import "time"

// Verdict is the enforcement outcome of a validation.
type Verdict string

const (
	// VerdictAllow admits the request without conditions.
	VerdictAllow Verdict = "ALLOW"
	// VerdictMonitor admits the request flagged for observation.
	VerdictMonitor Verdict = "MONITOR"
	// VerdictDeny refuses the request.
	VerdictDeny Verdict = "DENY"
)

// IsValid checks if the verdict is a known Verdict.
func (v Verdict) IsValid() bool {
	return v == VerdictAllow || v == VerdictMonitor || v == VerdictDeny
}

// DenyReason explains a DENY verdict. It is never set for ALLOW or MONITOR.
type DenyReason string

const (
	// ReasonExpiredToken means the credential's expiry is in the past.
	ReasonExpiredToken DenyReason = "EXPIRED_TOKEN"
	// ReasonNotYetValid means the credential's not-before is in the future.
	ReasonNotYetValid DenyReason = "NOT_YET_VALID"
	// ReasonReplayDetected means the credential was already presented.
	ReasonReplayDetected DenyReason = "REPLAY_DETECTED"
	// ReasonRateLimitExceeded means the request was refused by the limiter.
	ReasonRateLimitExceeded DenyReason = "RATE_LIMIT_EXCEEDED"
	// ReasonInvalidSignature means signature verification failed or the
	// signing algorithm is not allowed.
	ReasonInvalidSignature DenyReason = "INVALID_SIGNATURE"
	// ReasonLowScore means the principal's trust score is below the
	// admission threshold.
	ReasonLowScore DenyReason = "LOW_SCORE"
	// ReasonMalformedToken means the credential could not be parsed or is
	// missing required claims.
	ReasonMalformedToken DenyReason = "MALFORMED_TOKEN"
	// ReasonInternalError means an unexpected failure was converted into a
	// refusal.
	ReasonInternalError DenyReason = "INTERNAL_ERROR"
)

// Response is the outcome of one validation request.
//
// Reason and Score are pointers so the wire format always carries both keys:
// null when the pipeline never produced the value, populated otherwise.
// Reason is set exactly when Decision is DENY; Score is set exactly when
// verification succeeded and a score was looked up.
type Response struct {
	// Decision is the enforcement verdict.
	Decision Verdict `json:"decision"`

	// Reason explains the refusal. Null unless Decision is DENY.
	Reason *DenyReason `json:"reason"`

	// RequestID correlates the response with logs and telemetry.
	RequestID string `json:"request_id"`

	// Timestamp is when the decision was made, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Score is the trust score the verdict was derived from. Null when the
	// pipeline denied before scoring.
	Score *int `json:"score"`
}
