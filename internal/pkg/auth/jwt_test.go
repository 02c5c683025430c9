package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret, subject, issuer string, expiresAt time.Time) string {
	t.Helper()
	claims := &Claims{
		Email: "family@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateToken(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: testSecret, TokenIssuer: "idp"})

	claims, err := svc.ValidateToken(mintToken(t, testSecret, "ext-123", "idp", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "ext-123", claims.Subject)
	assert.Equal(t, "family@example.com", claims.Email)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: testSecret, TokenIssuer: "idp"})

	_, err := svc.ValidateToken(mintToken(t, testSecret, "ext-123", "idp", time.Now().Add(-time.Hour)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))
}

func TestValidateTokenWrongKey(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: testSecret, TokenIssuer: "idp"})

	_, err := svc.ValidateToken(mintToken(t, "other-secret", "ext-123", "idp", time.Now().Add(time.Hour)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: testSecret, TokenIssuer: "idp"})

	_, err := svc.ValidateToken(mintToken(t, testSecret, "ext-123", "someone-else", time.Now().Add(time.Hour)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestValidateTokenMissingSubject(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: testSecret, TokenIssuer: "idp"})

	_, err := svc.ValidateToken(mintToken(t, testSecret, "", "idp", time.Now().Add(time.Hour)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = ExtractBearerToken("abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ExtractBearerToken("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidFormat))
}
