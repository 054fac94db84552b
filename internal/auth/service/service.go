// Package service is the server-side auth domain entrypoint. It owns passkey
// ceremonies, session token issuance, and profile provisioning on first
// sign-in.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/passkey"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/profile"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/token"
	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/id"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/logging"
)

// AuthService is the stable surface transport handlers call to perform
// identity actions without directly touching storage details.
type AuthService struct {
	identities storage.IdentityStore
	profiles   storage.ProfileStore
	passkeys   storage.PasskeyStore
	sessions   storage.SessionStore

	passkeyConfig passkey.Config
	tokenConfig   token.Config

	passkeyWebAuthn passkeyProvider
	passkeyInitErr  error
	passkeyParser   passkeyParser

	log                logging.Logger
	clock              func() time.Time
	idGenerator        func() (string, error)
	passkeyIDGenerator func() (string, error)
}

// NewAuthService builds a service with defaults for the auth domain.
//
// Defaults are intentionally assembled here so transport handlers can treat
// this as the canonical auth domain entrypoint.
func NewAuthService(identities storage.IdentityStore, profiles storage.ProfileStore, passkeys storage.PasskeyStore, sessions storage.SessionStore, log logging.Logger) *AuthService {
	passkeyConfig := passkey.LoadConfigFromEnv()
	tokenConfig := token.LoadConfigFromEnv()
	ceremonyTimeout := webauthn.TimeoutConfig{
		Enforce:    true,
		Timeout:    passkeyConfig.CeremonyTimeout,
		TimeoutUVD: passkeyConfig.CeremonyTimeout,
	}
	webAuthn, err := webauthn.New(&webauthn.Config{
		RPDisplayName: passkeyConfig.RPDisplayName,
		RPID:          passkeyConfig.RPID,
		RPOrigins:     passkeyConfig.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        ceremonyTimeout,
			Registration: ceremonyTimeout,
		},
	})
	if log == nil {
		log = logging.Nop()
	}
	return &AuthService{
		identities:         identities,
		profiles:           profiles,
		passkeys:           passkeys,
		sessions:           sessions,
		passkeyConfig:      passkeyConfig,
		tokenConfig:        tokenConfig,
		passkeyWebAuthn:    webAuthn,
		passkeyInitErr:     err,
		passkeyParser:      defaultPasskeyParser{},
		log:                log,
		clock:              time.Now,
		idGenerator:        id.NewID,
		passkeyIDGenerator: id.NewID,
	}
}

// Grant is the result of a completed sign-in: a signed token bound to a
// revocable server-side session.
type Grant struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	Identity  identity.Identity
}

// IssueGrant mints a revocable web session and its signed token.
func (s *AuthService) IssueGrant(ctx context.Context, signedIn identity.Identity) (Grant, error) {
	if s.sessions == nil {
		return Grant{}, apperrors.New(apperrors.CodeConfiguration, "session store is not configured")
	}

	sessionID, err := s.idGenerator()
	if err != nil {
		return Grant{}, fmt.Errorf("generate session id: %w", err)
	}
	now := s.clock().UTC()
	expiresAt := now.Add(s.tokenConfig.TTL)
	if err := s.sessions.PutWebSession(ctx, storage.WebSession{
		ID:        sessionID,
		OwnerID:   signedIn.ID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}); err != nil {
		return Grant{}, fmt.Errorf("store web session: %w", err)
	}

	signed, err := token.Issue(s.tokenConfig, signedIn.ID, sessionID, now)
	if err != nil {
		return Grant{}, err
	}
	s.log.Info(ctx, "session issued", "identity_id", signedIn.ID, "session_id", sessionID)
	return Grant{
		Token:     signed,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
		Identity:  signedIn,
	}, nil
}

// VerifyGrant validates a session token against its server-side session.
func (s *AuthService) VerifyGrant(ctx context.Context, tokenString string) (identity.Identity, error) {
	if s.sessions == nil || s.identities == nil {
		return identity.Identity{}, apperrors.New(apperrors.CodeConfiguration, "stores are not configured")
	}

	claims, err := token.Verify(s.tokenConfig, tokenString)
	if err != nil {
		return identity.Identity{}, err
	}
	session, err := s.sessions.GetWebSession(ctx, claims.SessionID)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			return identity.Identity{}, apperrors.New(apperrors.CodeNoActiveIdentity, "session not found")
		}
		return identity.Identity{}, fmt.Errorf("load web session: %w", err)
	}
	now := s.clock().UTC()
	if session.RevokedAt != nil {
		return identity.Identity{}, apperrors.New(apperrors.CodeNoActiveIdentity, "session was revoked")
	}
	if now.After(session.ExpiresAt) {
		return identity.Identity{}, apperrors.New(apperrors.CodeNoActiveIdentity, "session has expired")
	}

	record, err := s.identities.GetIdentity(ctx, session.OwnerID)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	return record.Identity, nil
}

// Revoke invalidates the server-side session behind a token. An already
// revoked or unknown session is not an error; the client's local sign-out
// must never be blocked on server state.
func (s *AuthService) Revoke(ctx context.Context, tokenString string) error {
	if s.sessions == nil {
		return apperrors.New(apperrors.CodeConfiguration, "session store is not configured")
	}

	claims, err := token.Verify(s.tokenConfig, tokenString)
	if err != nil {
		return nil
	}
	if err := s.sessions.RevokeWebSession(ctx, claims.SessionID, s.clock().UTC()); err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			return nil
		}
		return fmt.Errorf("revoke web session: %w", err)
	}
	s.log.Info(ctx, "session revoked", "session_id", claims.SessionID)
	return nil
}

// EnsureProfile creates the profile for an identity on first sign-in.
// Existing profiles are returned unchanged.
func (s *AuthService) EnsureProfile(ctx context.Context, signedIn identity.Identity) (profile.Profile, error) {
	if s.profiles == nil {
		return profile.Profile{}, apperrors.New(apperrors.CodeConfiguration, "profile store is not configured")
	}

	existing, err := s.profiles.GetProfile(ctx, signedIn.ID)
	if err == nil {
		return existing, nil
	}
	if apperrors.GetCode(err) != apperrors.CodeNotFound {
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	created := profile.New(signedIn, s.clock)
	if err := s.profiles.PutProfile(ctx, created); err != nil {
		return profile.Profile{}, fmt.Errorf("store profile: %w", err)
	}
	s.log.Info(ctx, "profile created", "identity_id", signedIn.ID)
	return created, nil
}

// GetProfile loads a profile by identity id.
func (s *AuthService) GetProfile(ctx context.Context, identityID string) (profile.Profile, error) {
	if s.profiles == nil {
		return profile.Profile{}, apperrors.New(apperrors.CodeConfiguration, "profile store is not configured")
	}
	if strings.TrimSpace(identityID) == "" {
		return profile.Profile{}, apperrors.New(apperrors.CodeValidation, "identity id is required")
	}
	return s.profiles.GetProfile(ctx, identityID)
}

// UpdateProfile applies a partial edit to a stored profile.
func (s *AuthService) UpdateProfile(ctx context.Context, identityID string, edit profile.Edit) (profile.Profile, error) {
	if s.profiles == nil {
		return profile.Profile{}, apperrors.New(apperrors.CodeConfiguration, "profile store is not configured")
	}
	if strings.TrimSpace(identityID) == "" {
		return profile.Profile{}, apperrors.New(apperrors.CodeValidation, "identity id is required")
	}
	if edit.IsEmpty() {
		return profile.Profile{}, apperrors.New(apperrors.CodeValidation, "edit touches no fields")
	}

	current, err := s.profiles.GetProfile(ctx, identityID)
	if err != nil {
		return profile.Profile{}, err
	}
	merged := profile.Apply(current, edit, s.clock().UTC())
	if err := s.profiles.PutProfile(ctx, merged); err != nil {
		return profile.Profile{}, fmt.Errorf("store profile: %w", err)
	}
	return merged, nil
}

// CleanupExpiredCeremonies drops passkey ceremony sessions past their TTL.
// Intended to be called periodically by the server loop.
func (s *AuthService) CleanupExpiredCeremonies(ctx context.Context) error {
	if s.passkeys == nil {
		return apperrors.New(apperrors.CodeConfiguration, "passkey store is not configured")
	}
	return s.passkeys.DeleteExpiredPasskeySessions(ctx, s.clock().UTC())
}
