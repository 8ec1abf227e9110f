package token

import (
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// AllowedAlgorithms is the asymmetric signing allow-list. Credentials
// presenting any other algorithm, including none and the HMAC family, are
// rejected with ErrInvalidSignature.
var AllowedAlgorithms = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Config holds verifier settings.
type Config struct {
	// PublicKeyPath is the PEM file holding the verification key. Required;
	// a key that cannot be loaded aborts construction.
	PublicKeyPath string

	// Algorithm selects the expected signing algorithm family and therefore
	// the key type. Must be one of AllowedAlgorithms. Default: "RS256".
	Algorithm string

	// ClockDrift symmetrically widens both temporal checks: a credential is
	// expired only when now > exp + drift, and not yet valid only when
	// now < nbf - drift.
	ClockDrift time.Duration

	// WatchKey reloads the key when the file changes, so rotation does not
	// require a restart. A failed reload keeps the previous key.
	WatchKey bool

	// Clock is used for the temporal checks. If omitted, a real clock is used.
	Clock clockwork.Clock
}

// Verifier validates credentials against a public key.
//
// Temporal checks run after signature verification, outside the parser, so
// the drift tolerance is applied exactly as configured.
//
// Safe for concurrent use.
type Verifier struct {
	algorithm string
	drift     time.Duration
	clock     clockwork.Clock
	parser    *jwt.Parser

	mu      sync.RWMutex
	key     crypto.PublicKey
	keyPath string

	watcher *fsnotify.Watcher
	doneCh  chan struct{}
}

// NewVerifier creates a verifier, loading the public key immediately. Any
// key problem is returned here rather than deferred to request time.
func NewVerifier(cfg Config) (*Verifier, error) {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = "RS256"
	}
	if !isAllowedAlgorithm(algorithm) {
		return nil, fmt.Errorf("unsupported algorithm %q: must be one of %s",
			algorithm, strings.Join(AllowedAlgorithms, ", "))
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	keyPath := filepath.Clean(cfg.PublicKeyPath)
	key, err := loadPublicKey(keyPath, algorithm)
	if err != nil {
		return nil, err
	}

	v := &Verifier{
		algorithm: algorithm,
		drift:     cfg.ClockDrift,
		clock:     clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods(AllowedAlgorithms),
			jwt.WithoutClaimsValidation(),
		),
		key:     key,
		keyPath: keyPath,
	}

	if cfg.WatchKey {
		if err := v.watchKey(); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// Verify checks the credential and returns its payload. Failures are one of
// ErrMalformed, ErrInvalidSignature, ErrExpired, or ErrNotYetValid.
func (v *Verifier) Verify(credential string) (*Payload, error) {
	if credential == "" {
		return nil, ErrMalformed
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := v.parser.ParseWithClaims(credential, claims, v.keyfunc); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			// Unverifiable credentials are treated as signature failures
			return nil, ErrInvalidSignature
		}
	}

	if claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	now := v.clock.Now()
	if now.After(claims.ExpiresAt.Time.Add(v.drift)) {
		return nil, ErrExpired
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time.Add(-v.drift)) {
		return nil, ErrNotYetValid
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMalformed
	}

	payload := &Payload{
		Subject:   claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	return payload, nil
}

// Algorithm returns the configured signing algorithm.
func (v *Verifier) Algorithm() string {
	return v.algorithm
}

// Close stops the key watcher, if one is running.
func (v *Verifier) Close() error {
	if v.watcher == nil {
		return nil
	}
	err := v.watcher.Close()
	<-v.doneCh
	return err
}

func (v *Verifier) keyfunc(*jwt.Token) (any, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key, nil
}

func isAllowedAlgorithm(algorithm string) bool {
	for _, a := range AllowedAlgorithms {
		if a == algorithm {
			return true
		}
	}
	return false
}

// loadPublicKey reads a PEM public key of the type implied by the algorithm
// family: RSA for RS*, ECDSA for ES*.
func loadPublicKey(path, algorithm string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key %q: %w", path, err)
	}

	switch {
	case strings.HasPrefix(algorithm, "RS"):
		key, err := jwt.ParseRSAPublicKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key %q: %w", path, err)
		}
		return key, nil
	case strings.HasPrefix(algorithm, "ES"):
		key, err := jwt.ParseECPublicKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ECDSA public key %q: %w", path, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
}
