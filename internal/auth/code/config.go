package code

import (
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/config"
)

// DefaultAlphabet is the canonical code character set. One numeric format is
// used everywhere so support staff and templates agree on what a code looks
// like.
const DefaultAlphabet = "0123456789"

// Config controls one-time code shape and lifetime.
type Config struct {
	Length   int           `env:"WEBMUSEUM_AUTH_CODE_LENGTH"   envDefault:"6"`
	Alphabet string        `env:"WEBMUSEUM_AUTH_CODE_ALPHABET" envDefault:"0123456789"`
	TTL      time.Duration `env:"WEBMUSEUM_AUTH_CODE_TTL"      envDefault:"5m"`
}

// LoadConfigFromEnv loads code configuration and applies defensive defaults.
//
// Defaults are intentionally explicit because codes are security-sensitive and
// should remain predictable in local and CI environments.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.Alphabet == "" {
		cfg.Alphabet = DefaultAlphabet
	}
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
	return cfg
}
