// Package storage defines the persistence contracts for the auth subsystem.
package storage

import (
	"context"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/profile"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// IdentityRecord persists an identity along with the hashed secret backing
// its email credential. The plaintext secret never leaves the code channel.
type IdentityRecord struct {
	Identity   identity.Identity
	SecretHash string
}

// IdentityStore persists authenticated principals.
type IdentityStore interface {
	PutIdentity(ctx context.Context, record IdentityRecord) error
	GetIdentity(ctx context.Context, identityID string) (IdentityRecord, error)
	GetIdentityByEmail(ctx context.Context, email string) (IdentityRecord, error)
}

// ProfileStore persists application profiles keyed by identity id.
type ProfileStore interface {
	PutProfile(ctx context.Context, p profile.Profile) error
	GetProfile(ctx context.Context, identityID string) (profile.Profile, error)
}

// OneTimeCode is a short-lived email sign-in code. At most one live code
// exists per email; a new request overwrites the prior one.
type OneTimeCode struct {
	EmailKey  string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// CodeStore persists one-time email codes keyed by lower-cased email.
type CodeStore interface {
	PutOneTimeCode(ctx context.Context, code OneTimeCode) error
	GetOneTimeCode(ctx context.Context, emailKey string) (OneTimeCode, error)
	MarkOneTimeCodeUsed(ctx context.Context, emailKey string) error
	DeleteOneTimeCode(ctx context.Context, emailKey string) error
}

// MagicLink represents a single-use signed sign-in link.
type MagicLink struct {
	Token     string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// LinkStore persists magic link tokens for single-use enforcement.
type LinkStore interface {
	PutMagicLink(ctx context.Context, link MagicLink) error
	GetMagicLink(ctx context.Context, token string) (MagicLink, error)
	MarkMagicLinkUsed(ctx context.Context, token string, usedAt time.Time) error
}

// PasskeyCredential stores a WebAuthn credential for an identity.
//
// CredentialID is globally unique and maps to exactly one owner. The
// signature counter is monotonically non-decreasing across successful
// authentications.
type PasskeyCredential struct {
	CredentialID     string
	OwnerID          string
	CredentialJSON   string
	SignatureCounter uint32
	DeviceLabel      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastUsedAt       *time.Time
}

// PasskeySession stores a WebAuthn registration or login ceremony session,
// binding the issued challenge server-side until the ceremony completes.
type PasskeySession struct {
	ID          string
	Kind        string
	OwnerID     string
	SessionJSON string
	ExpiresAt   time.Time
}

// PasskeyStore persists WebAuthn credential and ceremony session data.
type PasskeyStore interface {
	PutPasskeyCredential(ctx context.Context, credential PasskeyCredential) error
	GetPasskeyCredential(ctx context.Context, credentialID string) (PasskeyCredential, error)
	ListPasskeyCredentials(ctx context.Context, ownerID string) ([]PasskeyCredential, error)
	DeletePasskeyCredential(ctx context.Context, credentialID string) error
	PutPasskeySession(ctx context.Context, session PasskeySession) error
	GetPasskeySession(ctx context.Context, id string) (PasskeySession, error)
	DeletePasskeySession(ctx context.Context, id string) error
	DeleteExpiredPasskeySessions(ctx context.Context, now time.Time) error
}

// WebSession is a revocable server-side session issued after sign-in.
type WebSession struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// SessionStore persists revocable web sessions.
type SessionStore interface {
	PutWebSession(ctx context.Context, session WebSession) error
	GetWebSession(ctx context.Context, id string) (WebSession, error)
	RevokeWebSession(ctx context.Context, id string, revokedAt time.Time) error
}
