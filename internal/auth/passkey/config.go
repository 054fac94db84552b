// Package passkey holds WebAuthn relying-party configuration and ceremony
// session kinds.
package passkey

import (
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/config"
)

// SessionKind describes the WebAuthn session purpose.
type SessionKind string

const (
	SessionKindRegistration SessionKind = "registration"
	SessionKindLogin        SessionKind = "login"
)

// Config controls WebAuthn relying party settings. CeremonyTimeout is the
// client-side window advertised in challenge options; SessionTTL bounds the
// stored server-side ceremony session.
type Config struct {
	RPDisplayName   string        `env:"WEBMUSEUM_AUTH_WEBAUTHN_RP_DISPLAY_NAME"  envDefault:"Web Museum"`
	RPID            string        `env:"WEBMUSEUM_AUTH_WEBAUTHN_RP_ID"            envDefault:"localhost"`
	RPOrigins       []string      `env:"WEBMUSEUM_AUTH_WEBAUTHN_RP_ORIGINS"       envSeparator:","`
	SessionTTL      time.Duration `env:"WEBMUSEUM_AUTH_WEBAUTHN_SESSION_TTL"      envDefault:"5m"`
	CeremonyTimeout time.Duration `env:"WEBMUSEUM_AUTH_WEBAUTHN_CEREMONY_TIMEOUT" envDefault:"60s"`
}

// LoadConfigFromEnv returns passkey configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{
			RPDisplayName:   "Web Museum",
			RPID:            "localhost",
			RPOrigins:       []string{"http://localhost:8080"},
			SessionTTL:      5 * time.Minute,
			CeremonyTimeout: time.Minute,
		}
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = "Web Museum"
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:8080"}
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 5 * time.Minute
	}
	if cfg.CeremonyTimeout == 0 {
		cfg.CeremonyTimeout = time.Minute
	}
	return cfg
}
