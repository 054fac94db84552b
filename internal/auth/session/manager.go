// Package session owns the client-side auth session: one observable
// snapshot of (identity, profile, loading) updated through a single
// serialized event stream.
package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/profile"
	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/id"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/logging"
)

// Snapshot is the observable session state. Loading is true only until the
// first resolution; it never becomes true again.
type Snapshot struct {
	Identity *identity.Identity
	Profile  *profile.Profile
	Loading  bool
}

const subscriberBuffer = 64

// Manager resolves and maintains the session snapshot.
//
// All mutations flow through the manager's mutex, so observers never see
// states out of order relative to each other.
type Manager struct {
	cfg         Config
	docs        Documents
	sdk         ProviderSDK
	uploads     Uploads
	log         logging.Logger
	clock       func() time.Time
	idGenerator func() (string, error)

	mu               sync.Mutex
	current          Snapshot
	subscribers      map[int]chan Snapshot
	nextSubscriberID int
	resolved         bool
	editVersion      uint64
	dirty            map[profile.Field]uint64
}

// NewManager builds a session manager in the loading state. Call Start to
// begin resolution.
func NewManager(cfg Config, docs Documents, sdk ProviderSDK, uploads Uploads, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		cfg:         cfg,
		docs:        docs,
		sdk:         sdk,
		uploads:     uploads,
		log:         log,
		clock:       time.Now,
		idGenerator: id.NewID,
		current:     Snapshot{Loading: true},
		subscribers: map[int]chan Snapshot{},
		dirty:       map[profile.Field]uint64{},
	}
}

// Subscribe returns a channel that receives the current snapshot immediately
// and every subsequent state change in order. The returned cancel func must
// be called to release the subscription.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	m.mu.Lock()
	id := m.nextSubscriberID
	m.nextSubscriberID++
	m.subscribers[id] = ch
	ch <- m.current
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if existing, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(existing)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// publishLocked fans the current snapshot out to subscribers. A slow
// subscriber loses its oldest pending snapshot, never ordering.
func (m *Manager) publishLocked() {
	for _, ch := range m.subscribers {
		select {
		case ch <- m.current:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- m.current:
			default:
			}
		}
	}
}

// Start begins session resolution. Three things race to end the loading
// state: a synchronous cached-identity check, the provider auth-state
// listener, and a fallback timer that guarantees the UI never hangs.
// Loading terminates exactly once regardless of which wins.
func (m *Manager) Start(ctx context.Context) {
	if m.sdk != nil {
		if cached, ok := m.sdk.CachedIdentity(ctx); ok {
			m.mu.Lock()
			m.current.Identity = &cached
			m.resolveLocked()
			m.mu.Unlock()
			// The profile fetch must not block resolution.
			go m.loadProfile(ctx, cached)
		}

		go func() {
			for state := range m.sdk.AuthStateChanges(ctx) {
				if state == nil {
					m.clearSession()
					continue
				}
				if err := m.HandleSignedIn(ctx, *state); err != nil {
					m.log.Error(ctx, "handle auth state change", "error", err)
				}
			}
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(m.cfg.ResolveTimeout):
			m.mu.Lock()
			m.resolveLocked()
			m.mu.Unlock()
		}
	}()
}

func (m *Manager) resolveLocked() {
	if m.resolved {
		return
	}
	m.resolved = true
	m.current.Loading = false
	m.publishLocked()
}

// HandleSignedIn installs a freshly signed-in identity, provisioning its
// profile on first sign-in from any strategy.
func (m *Manager) HandleSignedIn(ctx context.Context, signedIn identity.Identity) error {
	ensured, err := m.ensureProfile(ctx, signedIn)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current.Identity = &signedIn
	m.current.Profile = &ensured
	m.dirty = map[profile.Field]uint64{}
	m.resolved = true
	m.current.Loading = false
	m.publishLocked()
	m.mu.Unlock()
	return nil
}

// SignInGuest mints a local anonymous identity so a visitor can use the app
// without linking a durable credential. The guest exists only on this client;
// nothing is mirrored to a provider, and signing out discards it.
func (m *Manager) SignInGuest(ctx context.Context) (identity.Identity, error) {
	guest, err := identity.Create(identity.CreateInput{Kind: identity.KindGuest}, m.clock, m.idGenerator)
	if err != nil {
		return identity.Identity{}, err
	}
	if err := m.HandleSignedIn(ctx, guest); err != nil {
		return identity.Identity{}, err
	}
	return guest, nil
}

func (m *Manager) ensureProfile(ctx context.Context, signedIn identity.Identity) (profile.Profile, error) {
	if m.docs == nil {
		return profile.Profile{}, apperrors.New(apperrors.CodeConfiguration, "document store is not configured")
	}

	existing, err := m.docs.GetProfile(ctx, signedIn.ID)
	if err == nil {
		return existing, nil
	}
	if apperrors.GetCode(err) != apperrors.CodeNotFound {
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	created := profile.New(signedIn, m.clock)
	if err := m.docs.CreateProfile(ctx, created); err != nil {
		return profile.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	m.log.Info(ctx, "profile created on first sign-in", "identity_id", signedIn.ID)
	return created, nil
}

func (m *Manager) loadProfile(ctx context.Context, signedIn identity.Identity) {
	ensured, err := m.ensureProfile(ctx, signedIn)
	if err != nil {
		m.log.Warn(ctx, "load profile for cached identity", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Identity == nil || m.current.Identity.ID != signedIn.ID {
		return
	}
	if m.current.Profile != nil {
		return
	}
	m.current.Profile = &ensured
	m.publishLocked()
}

// SignOut clears the local session and best-effort revokes the remote one.
// Local sign-out always succeeds; it is never blocked on the network.
func (m *Manager) SignOut(ctx context.Context) error {
	m.clearSession()

	if m.sdk != nil {
		go func() {
			revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.MirrorTimeout)
			defer cancel()
			if err := m.sdk.RevokeSession(revokeCtx); err != nil {
				m.log.Warn(revokeCtx, "revoke remote session", "error", err)
			}
		}()
	}
	return nil
}

func (m *Manager) clearSession() {
	m.mu.Lock()
	m.current = Snapshot{}
	m.dirty = map[profile.Field]uint64{}
	m.resolved = true
	m.publishLocked()
	m.mu.Unlock()
}

// UpdateProfile applies a partial edit optimistically, writes it through to
// the document store, mirrors name and avatar to the provider, and schedules
// a reconciling refetch.
//
// The optimistic copy is visible to observers synchronously. Document write
// failures and offline-queued outcomes are both absorbed: the local copy
// stands and later reconciliation converges it.
func (m *Manager) UpdateProfile(ctx context.Context, edit profile.Edit) error {
	if edit.IsEmpty() {
		return apperrors.New(apperrors.CodeValidation, "edit touches no fields")
	}
	if m.docs == nil {
		return apperrors.New(apperrors.CodeConfiguration, "document store is not configured")
	}

	m.mu.Lock()
	if m.current.Identity == nil {
		m.mu.Unlock()
		return apperrors.New(apperrors.CodeNoActiveIdentity, "no active identity")
	}
	identityID := m.current.Identity.ID

	m.editVersion++
	version := m.editVersion
	for _, field := range edit.Fields() {
		m.dirty[field] = version
	}

	base := profile.Profile{ID: identityID}
	if m.current.Profile != nil {
		base = *m.current.Profile
	}
	merged := profile.Apply(base, edit, m.clock().UTC())
	m.current.Profile = &merged
	m.publishLocked()
	m.mu.Unlock()

	if outcome, err := m.docs.UpdateProfile(ctx, identityID, edit); err != nil {
		m.log.Warn(ctx, "profile write failed, keeping optimistic copy", "error", err)
	} else if outcome == UpdateQueued {
		m.log.Info(ctx, "profile write queued offline", "identity_id", identityID)
	}

	if m.sdk != nil && edit.TouchesIdentityMirror() {
		m.mirrorIdentity(ctx, identityID, merged)
	}

	go m.reconcile(context.WithoutCancel(ctx), identityID, version)
	return nil
}

// mirrorIdentity copies display name and avatar onto the provider profile
// under a hard timeout. Failure is logged, never surfaced; the profile
// document is the source of truth.
func (m *Manager) mirrorIdentity(ctx context.Context, identityID string, merged profile.Profile) {
	mirrorCtx, cancel := context.WithTimeout(ctx, m.cfg.MirrorTimeout)
	defer cancel()
	if err := m.sdk.MirrorProfile(mirrorCtx, identityID, merged.DisplayName, merged.AvatarURL); err != nil {
		m.log.Warn(ctx, "mirror profile to provider", "error", err)
	}
}

// reconcile refetches the remote profile and merges it under the dirty-field
// guard: fields edited at or before startVersion whose remote copy now agrees
// are cleared; disagreeing dirty fields keep their local value. A failed
// fetch leaves the optimistic copy in place.
func (m *Manager) reconcile(ctx context.Context, identityID string, startVersion uint64) {
	fetched, err := m.docs.GetProfile(ctx, identityID)
	if err != nil {
		m.log.Warn(ctx, "profile refetch failed, keeping optimistic copy", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Identity == nil || m.current.Identity.ID != identityID {
		return
	}
	if m.current.Profile == nil {
		return
	}

	dirtySet := make(map[profile.Field]struct{}, len(m.dirty))
	for field := range m.dirty {
		dirtySet[field] = struct{}{}
	}
	merged, cleared := profile.Reconcile(*m.current.Profile, fetched, dirtySet)
	for _, field := range cleared {
		if m.dirty[field] <= startVersion {
			delete(m.dirty, field)
		}
	}
	m.current.Profile = &merged
	m.publishLocked()
}

// SetAvatarFromUpload stores the image and applies its URL as the avatar
// through the normal optimistic update path.
func (m *Manager) SetAvatarFromUpload(ctx context.Context, key string, content io.Reader) (string, error) {
	if m.uploads == nil {
		return "", apperrors.New(apperrors.CodeConfiguration, "upload store is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return "", apperrors.New(apperrors.CodeValidation, "storage key is required")
	}

	uploadedURL, err := m.uploads.Upload(ctx, key, content)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeNetwork, "avatar upload failed", err)
	}
	if err := m.UpdateProfile(ctx, profile.Edit{AvatarURL: &uploadedURL}); err != nil {
		return "", err
	}
	return uploadedURL, nil
}

// Current returns the latest snapshot without subscribing.
func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
