package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// writeKeyPair generates a key pair on disk the way keygen does and
// returns the two paths.
func writeKeyPair(t *testing.T, algorithm string) (privatePath, publicPath string) {
	t.Helper()

	key, err := generateKey(algorithm, 2048)
	if err != nil {
		t.Fatalf("generateKey error: %v", err)
	}
	privatePEM, publicPEM, err := encodeKeyPair(key)
	if err != nil {
		t.Fatalf("encodeKeyPair error: %v", err)
	}

	dir := t.TempDir()
	privatePath = filepath.Join(dir, "private_key.pem")
	publicPath = filepath.Join(dir, "public_key.pem")
	if err := os.WriteFile(privatePath, privatePEM, 0600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	if err := os.WriteFile(publicPath, publicPEM, 0644); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return privatePath, publicPath
}

func TestLoadPrivateKey_SignVerifyRoundTrip(t *testing.T) {
	for _, algorithm := range []string{"RS256", "ES256"} {
		t.Run(algorithm, func(t *testing.T) {
			privatePath, publicPath := writeKeyPair(t, algorithm)

			privateKey, err := loadPrivateKey(privatePath)
			if err != nil {
				t.Fatalf("loadPrivateKey error: %v", err)
			}

			now := time.Now()
			claims := jwt.RegisteredClaims{
				Subject:   "test-user",
				ID:        "token-1",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(30 * time.Minute)),
			}
			signed, err := jwt.NewWithClaims(jwt.GetSigningMethod(algorithm), claims).SignedString(privateKey)
			if err != nil {
				t.Fatalf("SignedString error: %v", err)
			}

			// The public half written next to it must verify the signature
			publicPEM, err := os.ReadFile(publicPath)
			if err != nil {
				t.Fatalf("read public key: %v", err)
			}
			var publicKey any
			if algorithm == "RS256" {
				publicKey, err = jwt.ParseRSAPublicKeyFromPEM(publicPEM)
			} else {
				publicKey, err = jwt.ParseECPublicKeyFromPEM(publicPEM)
			}
			if err != nil {
				t.Fatalf("parse public key: %v", err)
			}

			parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
				return publicKey, nil
			}, jwt.WithValidMethods([]string{algorithm}))
			if err != nil {
				t.Fatalf("token did not verify: %v", err)
			}
			if !parsed.Valid {
				t.Error("Expected valid token")
			}
			got := parsed.Claims.(*jwt.RegisteredClaims)
			if got.Subject != "test-user" {
				t.Errorf("Subject = %q, want %q", got.Subject, "test-user")
			}
		})
	}
}

func TestLoadPrivateKey_MissingFile(t *testing.T) {
	_, err := loadPrivateKey(filepath.Join(t.TempDir(), "nope.pem"))
	if err == nil {
		t.Fatal("Expected error for missing key file, got nil")
	}
}

func TestLoadPrivateKey_NotPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(path, []byte("not a key"), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := loadPrivateKey(path); err == nil {
		t.Fatal("Expected error for non-PEM file, got nil")
	}
}
