package magiclink

import (
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/config"
)

// Config controls magic link timing and URL construction.
//
// These values are read at startup so operator-controlled defaults can be
// tuned without changing runtime code paths.
type Config struct {
	BaseURL string        `env:"WEBMUSEUM_AUTH_MAGIC_LINK_BASE_URL" envDefault:"http://localhost:8080/auth/link"`
	TTL     time.Duration `env:"WEBMUSEUM_AUTH_MAGIC_LINK_TTL"      envDefault:"1h"`
}

// LoadConfigFromEnv loads magic-link configuration and applies defensive defaults.
//
// Defaults are intentionally explicit because magic links are security-sensitive
// and should remain predictable in local and CI environments.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080/auth/link"
	}
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	return cfg
}
