package commands

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/internal/cli/output"
	"github.com/marmos91/tollgate/pkg/config"
)

var (
	tokenSubject    string
	tokenTTL        time.Duration
	tokenKeyPath    string
	tokenAlgorithm  string
	tokenExpired    bool
	tokenNotYet     bool
	tokenPrintQuiet bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a test credential",
	Long: `Mint a signed bearer token for testing the gateway.

The token carries the claims the gateway validates: subject (sub), a
random token ID (jti), issued-at (iat), and expiry (exp). The signing
key and algorithm come from the configuration unless overridden.

This is a development tool. Production credentials come from your
identity provider, not from this command.

Examples:
  # Mint a token for the default test subject
  tollgate token

  # Mint a token for a specific principal with a one hour lifetime
  tollgate token --subject user-42 --ttl 1h

  # Mint an already-expired token to exercise DENY paths
  tollgate token --expired

  # Print only the compact token (for shell substitution)
  tollgate token --quiet`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "test-user", "Subject (sub) claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*time.Minute, "Token lifetime")
	tokenCmd.Flags().StringVar(&tokenKeyPath, "key", "", "Private key path (default: jwt.private_key_path from config)")
	tokenCmd.Flags().StringVarP(&tokenAlgorithm, "algorithm", "a", "", "Signing algorithm (default: jwt.algorithm from config)")
	tokenCmd.Flags().BoolVar(&tokenExpired, "expired", false, "Mint a token that expired one hour ago")
	tokenCmd.Flags().BoolVar(&tokenNotYet, "not-yet-valid", false, "Mint a token whose nbf is one hour from now")
	tokenCmd.Flags().BoolVarP(&tokenPrintQuiet, "quiet", "q", false, "Print only the token")
	tokenCmd.MarkFlagsMutuallyExclusive("expired", "not-yet-valid")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	keyPath := tokenKeyPath
	if keyPath == "" {
		keyPath = cfg.JWT.PrivateKeyPath
	}
	algorithm := tokenAlgorithm
	if algorithm == "" {
		algorithm = cfg.JWT.Algorithm
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return fmt.Errorf("unknown signing algorithm: %s", algorithm)
	}

	privateKey, err := loadPrivateKey(keyPath)
	if err != nil {
		return err
	}

	now := time.Now()
	issuedAt, expiresAt := now, now.Add(tokenTTL)
	var notBefore *jwt.NumericDate
	switch {
	case tokenExpired:
		issuedAt = now.Add(-2 * time.Hour)
		expiresAt = now.Add(-1 * time.Hour)
	case tokenNotYet:
		notBefore = jwt.NewNumericDate(now.Add(1 * time.Hour))
		expiresAt = now.Add(1*time.Hour + tokenTTL)
	}

	tokenID := uuid.NewString()
	claims := jwt.RegisteredClaims{
		Subject:   tokenSubject,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: notBefore,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString(privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	if tokenPrintQuiet {
		fmt.Println(signed)
		return nil
	}

	fmt.Println(signed)
	fmt.Println()
	rows := [][2]string{
		{"Subject", tokenSubject},
		{"Token ID", tokenID},
		{"Algorithm", algorithm},
		{"Issued at", issuedAt.Format(time.RFC3339)},
		{"Expires at", expiresAt.Format(time.RFC3339)},
	}
	if notBefore != nil {
		rows = append(rows, [2]string{"Not before", notBefore.Format(time.RFC3339)})
	}
	return output.SimpleTable(os.Stdout, rows)
}

// loadPrivateKey reads a PEM-encoded private key. PKCS#8 is what keygen
// writes; PKCS#1 and EC-specific encodings are accepted for keys
// generated with openssl.
func loadPrivateKey(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %q: %w\n\nGenerate one with 'tollgate keygen'", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %q", path)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("unsupported private key format in %q", path)
}
