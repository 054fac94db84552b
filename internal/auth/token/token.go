// Package token issues and verifies the signed session tokens handed to
// clients after a successful sign-in.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/config"

	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
)

// Config controls session token signing and lifetime.
type Config struct {
	Secret string        `env:"WEBMUSEUM_AUTH_TOKEN_SECRET"`
	TTL    time.Duration `env:"WEBMUSEUM_AUTH_TOKEN_TTL" envDefault:"24h"`
}

// LoadConfigFromEnv loads token configuration with defaults. The secret has
// no default; a server without one cannot issue tokens.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	return cfg
}

// Claims binds a token to an identity and its revocable server-side session.
type Claims struct {
	jwt.RegisteredClaims
	IdentityID string `json:"identity_id"`
	SessionID  string `json:"session_id"`
}

// Issue signs a session token for an identity.
func Issue(cfg Config, identityID string, sessionID string, now time.Time) (string, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return "", apperrors.New(apperrors.CodeConfiguration, "token secret is not configured")
	}
	if strings.TrimSpace(identityID) == "" {
		return "", fmt.Errorf("identity id is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(now.UTC().Add(cfg.TTL)),
		},
		IdentityID: identityID,
		SessionID:  sessionID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func Verify(cfg Config, tokenString string) (Claims, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return Claims{}, apperrors.New(apperrors.CodeConfiguration, "token secret is not configured")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, "session token is invalid", err)
	}
	return *claims, nil
}
