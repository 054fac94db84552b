package session

import (
	"context"
	"io"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/profile"
)

// UpdateOutcome reports how a document write landed.
type UpdateOutcome int

const (
	// UpdateApplied means the write reached the store.
	UpdateApplied UpdateOutcome = iota
	// UpdateQueued means the write was accepted locally while offline and
	// will sync later. Callers must treat it as success.
	UpdateQueued
)

// Documents is the remote profile document store.
type Documents interface {
	GetProfile(ctx context.Context, identityID string) (profile.Profile, error)
	CreateProfile(ctx context.Context, p profile.Profile) error
	UpdateProfile(ctx context.Context, identityID string, edit profile.Edit) (UpdateOutcome, error)
}

// ProviderSDK is the identity-provider surface the session manager consumes.
type ProviderSDK interface {
	// CachedIdentity returns the locally persisted identity from a prior
	// session, if any. It must not touch the network.
	CachedIdentity(ctx context.Context) (identity.Identity, bool)
	// AuthStateChanges emits the current identity on every provider-side
	// auth state change; nil means signed out. The channel closes when ctx
	// is done.
	AuthStateChanges(ctx context.Context) <-chan *identity.Identity
	// MirrorProfile copies display name and avatar onto the provider-side
	// profile. Best effort; the profile document stays the source of truth.
	MirrorProfile(ctx context.Context, identityID string, displayName string, avatarURL string) error
	// RevokeSession invalidates the provider-side session token.
	RevokeSession(ctx context.Context) error
}

// Uploads stores media and returns its public URL.
type Uploads interface {
	Upload(ctx context.Context, key string, content io.Reader) (string, error)
}
