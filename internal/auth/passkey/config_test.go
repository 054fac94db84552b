package passkey

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg := LoadConfigFromEnv()

	if cfg.RPDisplayName != "Web Museum" {
		t.Fatalf("rp display name = %q", cfg.RPDisplayName)
	}
	if cfg.RPID != "localhost" {
		t.Fatalf("rp id = %q", cfg.RPID)
	}
	if len(cfg.RPOrigins) != 1 || cfg.RPOrigins[0] != "http://localhost:8080" {
		t.Fatalf("rp origins = %v", cfg.RPOrigins)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Fatalf("session ttl = %v", cfg.SessionTTL)
	}
	if cfg.CeremonyTimeout != time.Minute {
		t.Fatalf("ceremony timeout = %v", cfg.CeremonyTimeout)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("WEBMUSEUM_AUTH_WEBAUTHN_RP_ID", "webmuseum.world")
	t.Setenv("WEBMUSEUM_AUTH_WEBAUTHN_RP_ORIGINS", "https://webmuseum.world,https://www.webmuseum.world")
	t.Setenv("WEBMUSEUM_AUTH_WEBAUTHN_CEREMONY_TIMEOUT", "90s")

	cfg := LoadConfigFromEnv()
	if cfg.RPID != "webmuseum.world" {
		t.Fatalf("rp id = %q", cfg.RPID)
	}
	if len(cfg.RPOrigins) != 2 {
		t.Fatalf("rp origins = %v", cfg.RPOrigins)
	}
	if cfg.CeremonyTimeout != 90*time.Second {
		t.Fatalf("ceremony timeout = %v", cfg.CeremonyTimeout)
	}
}
