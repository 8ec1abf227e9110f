package commands

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	keygenAlgorithm string
	keygenDir       string
	keygenBits      int
	keygenForce     bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a token signing key pair",
	Long: `Generate an asymmetric key pair for token signing and verification.

The private key signs tokens (used by 'tollgate token' and by whatever
service issues credentials); the public key verifies them (used by the
gateway). Keys are written in PEM format: PKCS#8 for the private key,
PKIX for the public key.

RS256/RS384/RS512 generate RSA keys, ES256/ES384/ES512 generate ECDSA
keys on the matching NIST curve.

Examples:
  # Generate an RSA key pair for RS256 (default)
  tollgate keygen

  # Generate a P-256 key pair for ES256
  tollgate keygen --algorithm ES256

  # Generate a 4096-bit RSA key pair in a custom directory
  tollgate keygen --bits 4096 --output-dir /etc/tollgate/keys`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenAlgorithm, "algorithm", "a", "RS256", "Signing algorithm (RS256|RS384|RS512|ES256|ES384|ES512)")
	keygenCmd.Flags().StringVarP(&keygenDir, "output-dir", "o", "./keys", "Directory for the generated key files")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "RSA key size in bits (ignored for ECDSA)")
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "Overwrite existing key files")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	privatePath := filepath.Join(keygenDir, "private_key.pem")
	publicPath := filepath.Join(keygenDir, "public_key.pem")

	if !keygenForce {
		for _, path := range []string{privatePath, publicPath} {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("key file already exists: %s\n\nUse --force to overwrite", path)
			}
		}
	}

	privateKey, err := generateKey(keygenAlgorithm, keygenBits)
	if err != nil {
		return err
	}

	privatePEM, publicPEM, err := encodeKeyPair(privateKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(keygenDir, 0755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	// Private key is secret material; the public key is meant to be shared.
	if err := os.WriteFile(privatePath, privatePEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(publicPath, publicPEM, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	fmt.Printf("Generated %s key pair:\n", keygenAlgorithm)
	fmt.Printf("  Private key: %s\n", privatePath)
	fmt.Printf("  Public key:  %s\n", publicPath)
	fmt.Println("\nPoint the gateway at the public key:")
	fmt.Printf("  export JWT_PUBLIC_KEY_PATH=%s\n", publicPath)

	return nil
}

// generateKey creates the private key matching the signing algorithm.
// RSA algorithms share one key size flag; ECDSA curves are fixed by the
// algorithm, matching how JOSE pairs curves with hash lengths.
func generateKey(algorithm string, bits int) (any, error) {
	switch algorithm {
	case "RS256", "RS384", "RS512":
		if bits < 2048 {
			return nil, fmt.Errorf("RSA key size must be at least 2048 bits, got %d", bits)
		}
		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("rsa key generation failed: %w", err)
		}
		return key, nil

	case "ES256":
		return generateECDSAKey(elliptic.P256())
	case "ES384":
		return generateECDSAKey(elliptic.P384())
	case "ES512":
		return generateECDSAKey(elliptic.P521())

	default:
		return nil, fmt.Errorf("unsupported algorithm: %s (expected RS256, RS384, RS512, ES256, ES384, or ES512)", algorithm)
	}
}

func generateECDSAKey(curve elliptic.Curve) (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ecdsa key generation failed: %w", err)
	}
	return key, nil
}

// encodeKeyPair marshals a private key and its public half to PEM.
func encodeKeyPair(privateKey any) (privatePEM, publicPEM []byte, err error) {
	privateDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER})

	var publicKey any
	switch key := privateKey.(type) {
	case *rsa.PrivateKey:
		publicKey = &key.PublicKey
	case *ecdsa.PrivateKey:
		publicKey = &key.PublicKey
	default:
		return nil, nil, fmt.Errorf("unsupported private key type %T", privateKey)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	return privatePEM, publicPEM, nil
}
