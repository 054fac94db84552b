package config

import (
	"testing"
	"time"
)

func TestParseEnvAppliesDefaults(t *testing.T) {
	var cfg struct {
		Addr string        `env:"WEBMUSEUM_TEST_ADDR" envDefault:":8080"`
		TTL  time.Duration `env:"WEBMUSEUM_TEST_TTL"  envDefault:"5m"`
	}
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.TTL != 5*time.Minute {
		t.Fatalf("ttl = %v, want %v", cfg.TTL, 5*time.Minute)
	}
}

func TestParseEnvReadsVariables(t *testing.T) {
	t.Setenv("WEBMUSEUM_TEST_ADDR", ":9999")
	var cfg struct {
		Addr string `env:"WEBMUSEUM_TEST_ADDR" envDefault:":8080"`
	}
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("addr = %q, want %q", cfg.Addr, ":9999")
	}
}
