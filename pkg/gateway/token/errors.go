package token

import "errors"

// Common errors for credential verification. The pipeline maps each one to a
// deny reason, so verification failures carry no other detail.
var (
	// ErrMalformed means the credential could not be parsed, or a required
	// claim (exp, sub, jti) is absent or empty.
	ErrMalformed = errors.New("malformed credential")

	// ErrInvalidSignature means the signature did not verify under the
	// configured key, or the signing algorithm is not allowed.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrExpired means the credential's expiry is in the past, beyond the
	// configured clock drift.
	ErrExpired = errors.New("credential has expired")

	// ErrNotYetValid means the credential's not-before is in the future,
	// beyond the configured clock drift.
	ErrNotYetValid = errors.New("credential not yet valid")
)
