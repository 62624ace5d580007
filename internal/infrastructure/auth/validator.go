// Package auth verifies the bearer tokens presented by realtime clients.
// Tokens must be RS256-signed by the account service; no other algorithm
// is accepted.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

const signingAlgorithm = "RS256"

type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified principal bound to a connection.
type Identity struct {
	UserID string
	Role   string
	Email  string
}

type Validator struct {
	key    *rsa.PublicKey
	parser *jwt.Parser
}

func NewValidator(key *rsa.PublicKey, leeway time.Duration) *Validator {
	return &Validator{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingAlgorithm}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}
}

// LoadValidator reads the public key from pemData, or from path when
// pemData is empty.
func LoadValidator(path, pemData string, leeway time.Duration) (*Validator, error) {
	raw := []byte(pemData)
	if len(raw) == 0 {
		if path == "" {
			return nil, errors.New("no public key configured")
		}
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return NewValidator(key, leeway), nil
}

// Validate verifies the signature, expiry and required claims. Every failure
// wraps ErrInvalidToken; callers must treat the client as unauthenticated.
func (v *Validator) Validate(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrInvalidToken)
	}

	return &Identity{
		UserID: claims.Subject,
		Role:   claims.Role,
		Email:  claims.Email,
	}, nil
}

// ExtractToken returns the bearer token from the Authorization header,
// falling back to the "token" query parameter.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
