package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// VerifierConfig holds configuration for JWT verification.
type VerifierConfig struct {
	// Algorithm is HS256 or RS256.
	Algorithm string

	// SecretKey is the HS256 shared secret.
	SecretKey string

	// PublicKeyPEM is the RS256 public key.
	PublicKeyPEM string

	// Issuer, when set, must match the iss claim.
	Issuer string
}

// ConfigFromFiles builds a VerifierConfig from a secret or a PEM key file.
// A public key file takes precedence over a secret.
func ConfigFromFiles(secret, publicKeyFile string) (VerifierConfig, error) {
	if publicKeyFile != "" {
		data, err := os.ReadFile(publicKeyFile)
		if err != nil {
			return VerifierConfig{}, fmt.Errorf("read public key: %w", err)
		}
		return VerifierConfig{Algorithm: AlgorithmRS256, PublicKeyPEM: string(data)}, nil
	}
	return VerifierConfig{Algorithm: AlgorithmHS256, SecretKey: secret}, nil
}

// Verifier checks JWT signatures and extracts Claims.
type Verifier struct {
	config    VerifierConfig
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

// NewVerifier creates a new JWT verifier.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	v := &Verifier{config: config}

	switch config.Algorithm {
	case AlgorithmRS256:
		key, err := parsePublicKey(config.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key from PEM: %w", err)
		}
		v.publicKey = key
	case AlgorithmHS256:
		if config.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires secret key")
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", config.Algorithm)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{config.Algorithm}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// VerifyToken verifies a JWT token and returns the claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return extractClaims(claims)
}

func (v *Verifier) key(*jwt.Token) (any, error) {
	if v.config.Algorithm == AlgorithmRS256 {
		return v.publicKey, nil
	}
	return []byte(v.config.SecretKey), nil
}

func extractClaims(claims jwt.MapClaims) (*Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing or invalid 'sub' claim", ErrInvalidToken)
	}

	roles, err := stringSlice(claims, "roles")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: no roles", ErrInvalidToken)
	}
	for _, r := range roles {
		if r != RoleViewer && r != RoleController {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, r)
		}
	}

	return &Claims{Subject: sub, Roles: roles}, nil
}

func stringSlice(claims jwt.MapClaims, key string) ([]string, error) {
	value, ok := claims[key]
	if !ok {
		return nil, fmt.Errorf("missing claim: %s", key)
	}

	switch val := value.(type) {
	case []string:
		return val, nil
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s claim: not a string", key)
			}
			result[i] = str
		}
		return result, nil
	default:
		return nil, fmt.Errorf("invalid %s claim: not a string array", key)
	}
}

func parsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaPub, nil
}
