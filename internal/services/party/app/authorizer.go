package app

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/soundleaf/soundleaf/internal/platform/errors"
)

// Authorizer authenticates an access token and returns the caller's user id.
type Authorizer interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// accessTokenEnv holds raw env values before post-parse validation.
type accessTokenEnv struct {
	Issuer    string `env:"SOUNDLEAF_AUTH_ISSUER"`
	Audience  string `env:"SOUNDLEAF_AUTH_AUDIENCE"`
	PublicKey string `env:"SOUNDLEAF_AUTH_PUBLIC_KEY"`
}

// AccessTokenConfig defines how access tokens are verified.
type AccessTokenConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// LoadAccessTokenConfigFromEnv reads access token verification configuration.
func LoadAccessTokenConfigFromEnv(now func() time.Time) (AccessTokenConfig, error) {
	var raw accessTokenEnv
	if err := env.Parse(&raw); err != nil {
		return AccessTokenConfig{}, fmt.Errorf("parse access token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return AccessTokenConfig{}, fmt.Errorf("SOUNDLEAF_AUTH_ISSUER is required")
	}
	if audience == "" {
		return AccessTokenConfig{}, fmt.Errorf("SOUNDLEAF_AUTH_AUDIENCE is required")
	}
	if publicKey == "" {
		return AccessTokenConfig{}, fmt.Errorf("SOUNDLEAF_AUTH_PUBLIC_KEY is required")
	}
	keyBytes, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return AccessTokenConfig{}, fmt.Errorf("decode access token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return AccessTokenConfig{}, fmt.Errorf("access token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return AccessTokenConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// TokenAuthorizer verifies EdDSA-signed access tokens.
type TokenAuthorizer struct {
	cfg AccessTokenConfig
}

// NewTokenAuthorizer creates a TokenAuthorizer with the given verification
// configuration.
func NewTokenAuthorizer(cfg AccessTokenConfig) (*TokenAuthorizer, error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return nil, errors.New("access token verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenAuthorizer{cfg: cfg}, nil
}

// Authenticate verifies a token's signature, issuer, audience, and lifetime,
// and returns the subject user id.
func (a *TokenAuthorizer) Authenticate(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "access token is required")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithAudience(a.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.cfg.Now),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnauthenticated, "access token rejected", err)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "access token subject is required")
	}
	return subject, nil
}
