package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(sub, role string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Role:  role,
		Email: "p1@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestValidator_Valid(t *testing.T) {
	key := generateKey(t)
	v := NewValidator(&key.PublicKey, 0)

	id, err := v.Validate(sign(t, key, validClaims("P1", "PASSENGER", time.Hour)))

	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "P1", Role: "PASSENGER", Email: "p1@example.com"}, id)
}

func TestValidator_Rejects(t *testing.T) {
	key := generateKey(t)
	other := generateKey(t)
	v := NewValidator(&key.PublicKey, 0)

	noExpiry := validClaims("P1", "PASSENGER", time.Hour)
	noExpiry.ExpiresAt = nil

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("P1", "PASSENGER", time.Hour)).
		SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("P1", "PASSENGER", time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", sign(t, key, validClaims("P1", "PASSENGER", -time.Minute))},
		{"signed by another key", sign(t, other, validClaims("P1", "PASSENGER", time.Hour))},
		{"hs256 downgrade", hs256},
		{"alg none", none},
		{"missing subject", sign(t, key, validClaims("", "PASSENGER", time.Hour))},
		{"missing role", sign(t, key, validClaims("P1", "", time.Hour))},
		{"missing expiry", sign(t, key, noExpiry)},
		{"malformed", "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Validate(tt.token)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidator_MissingToken(t *testing.T) {
	key := generateKey(t)
	v := NewValidator(&key.PublicKey, 0)

	_, err := v.Validate("")

	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestValidator_Leeway(t *testing.T) {
	key := generateKey(t)
	v := NewValidator(&key.PublicKey, time.Minute)

	_, err := v.Validate(sign(t, key, validClaims("P1", "DRIVER", -10*time.Second)))

	assert.NoError(t, err)
}

func TestLoadValidator(t *testing.T) {
	key := generateKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pemData, 0o600))

	fromFile, err := LoadValidator(path, "", 0)
	require.NoError(t, err)
	fromPEM, err := LoadValidator("", string(pemData), 0)
	require.NoError(t, err)

	token := sign(t, key, validClaims("P1", "PASSENGER", time.Hour))
	for _, v := range []*Validator{fromFile, fromPEM} {
		_, err := v.Validate(token)
		assert.NoError(t, err)
	}

	_, err = LoadValidator("", "", 0)
	assert.Error(t, err)
	_, err = LoadValidator("", "garbage", 0)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{"header", "/notifications", "Bearer abc", "abc"},
		{"header wins over query", "/notifications?token=query", "Bearer header", "header"},
		{"query fallback", "/notifications?token=query", "", "query"},
		{"non bearer header falls back", "/notifications?token=query", "Basic dXNlcg==", "query"},
		{"none", "/notifications", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, ExtractToken(r))
		})
	}
}
