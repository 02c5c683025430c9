// Package auth validates the bearer tokens issued by the camp's identity
// provider. The portal never mints tokens itself; it verifies the shared-key
// signature and maps the token subject to a local user profile.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

// JWTConfig defines token validation settings
type JWTConfig struct {
	SecretKey   string
	TokenIssuer string
	// Leeway tolerates small clock drift between the identity provider and
	// this service.
	Leeway time.Duration
}

// JWTService handles token validation
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// Claims defines the token content the identity provider issues. Subject is
// the provider's stable user identifier; the local profile is looked up by
// it.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ValidateToken validates a token and returns its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithLeeway(s.config.Leeway),
	}
	if s.config.TokenIssuer != "" {
		options = append(options, jwt.WithIssuer(s.config.TokenIssuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.SecretKey), nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, apperrors.ErrTokenInvalid
	}
	return claims, nil
}

// ExtractBearerToken extracts the token from the Authorization header.
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", apperrors.ErrInvalidFormat
	}
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer "), nil
	}
	return authHeader, nil
}
