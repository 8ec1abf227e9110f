// Package token verifies bearer credentials: signature under an asymmetric
// key, temporal validity with symmetric clock-drift tolerance, and presence
// of the claims the pipeline depends on.
package token

import "time"

// Payload carries the verified claims the pipeline consumes. It is only
// produced after signature verification succeeded.
//
// Deliberately absent: any notion of a trust score. Scores come from the
// score provider, never from the credential.
type Payload struct {
	// Subject identifies the principal (sub claim).
	Subject string

	// TokenID is the credential's unique identifier (jti claim), used for
	// replay suppression.
	TokenID string

	// ExpiresAt is the credential's expiry (exp claim). The replay
	// suppressor keeps the TokenID until this instant passes.
	ExpiresAt time.Time

	// IssuedAt is the credential's issue time (iat claim), zero when absent.
	IssuedAt time.Time
}
