package session

import (
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/config"
)

// Config controls session resolution and profile mirroring timing.
type Config struct {
	ResolveTimeout time.Duration `env:"WEBMUSEUM_AUTH_SESSION_RESOLVE_TIMEOUT" envDefault:"1500ms"`
	MirrorTimeout  time.Duration `env:"WEBMUSEUM_AUTH_PROFILE_MIRROR_TIMEOUT"  envDefault:"8s"`
}

// LoadConfigFromEnv loads session configuration and applies defensive defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	if cfg.ResolveTimeout == 0 {
		cfg.ResolveTimeout = 1500 * time.Millisecond
	}
	if cfg.MirrorTimeout == 0 {
		cfg.MirrorTimeout = 8 * time.Second
	}
	return cfg
}
