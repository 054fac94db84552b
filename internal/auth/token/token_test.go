package token

import (
	"testing"
	"time"

	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
)

func testConfig() Config {
	return Config{Secret: "test-secret", TTL: time.Hour}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	signed, err := Issue(testConfig(), "identity-1", "session-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := Verify(testConfig(), signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.IdentityID != "identity-1" {
		t.Fatalf("identity id = %q", claims.IdentityID)
	}
	if claims.SessionID != "session-1" {
		t.Fatalf("session id = %q", claims.SessionID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	signed, err := Issue(testConfig(), "identity-1", "session-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = Verify(Config{Secret: "other-secret", TTL: time.Hour}, signed)
	if apperrors.GetCode(err) != apperrors.CodeSignatureInvalid {
		t.Fatalf("code = %v, want signature invalid", apperrors.GetCode(err))
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	signed, err := Issue(testConfig(), "identity-1", "session-1", past)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = Verify(testConfig(), signed)
	if apperrors.GetCode(err) != apperrors.CodeSignatureInvalid {
		t.Fatalf("code = %v, want signature invalid", apperrors.GetCode(err))
	}
}

func TestIssueRequiresSecret(t *testing.T) {
	_, err := Issue(Config{TTL: time.Hour}, "identity-1", "session-1", time.Now())
	if apperrors.GetCode(err) != apperrors.CodeConfiguration {
		t.Fatalf("code = %v, want configuration", apperrors.GetCode(err))
	}
}
