// Package provider orchestrates federated sign-in ceremonies: popup first,
// with a single redirect fallback when the popup is blocked.
package provider

import (
	"context"
	"sync"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/logging"
)

// Kind names a federated identity provider.
type Kind string

const (
	KindGoogle Kind = "google"
	KindGitHub Kind = "github"
	KindApple  Kind = "apple"
)

// ErrRedirectStarted is returned when the popup was blocked and a full-page
// redirect ceremony was initiated instead. The sign-in result arrives after
// navigation, so there is no identity to hand back yet.
var ErrRedirectStarted = apperrors.New(apperrors.CodePopupBlocked, "popup blocked; continuing via redirect")

// Ceremony is the provider SDK surface the orchestrator drives.
//
// Ready is an initialization barrier: it blocks until the SDK is usable and
// is awaited once per orchestrator, never polled.
type Ceremony interface {
	Ready(ctx context.Context) error
	SignInPopup(ctx context.Context, kind Kind) (identity.Identity, error)
	SignInRedirect(ctx context.Context, kind Kind) error
}

// Orchestrator runs provider sign-in and classifies outcomes so callers can
// distinguish silent cancellations from actionable failures.
type Orchestrator struct {
	ceremony      Ceremony
	ensureProfile func(ctx context.Context, signedIn identity.Identity) error
	log           logging.Logger

	readyOnce sync.Once
	readyErr  error
}

// NewOrchestrator builds an orchestrator. ensureProfile runs on every
// successful sign-in before the identity is handed back; it may be nil.
func NewOrchestrator(ceremony Ceremony, ensureProfile func(ctx context.Context, signedIn identity.Identity) error, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		ceremony:      ceremony,
		ensureProfile: ensureProfile,
		log:           log,
	}
}

// SignIn runs one popup-or-redirect ceremony for the provider kind.
//
// Outcomes:
//   - success: the identity, with the profile ensured.
//   - user cancelled: an error with the cancelled code; callers must treat it
//     as a silent no-op.
//   - popup blocked: one redirect fallback; ErrRedirectStarted if the
//     redirect began, a redirect-failed error if its initiation failed.
//   - network failure: retryable network error.
//   - unauthorized domain: fatal configuration error.
//   - anything else: a provider error carrying the raw code for diagnostics.
func (o *Orchestrator) SignIn(ctx context.Context, kind Kind) (identity.Identity, error) {
	if o.ceremony == nil {
		return identity.Identity{}, apperrors.New(apperrors.CodeConfiguration, "provider ceremony is not configured")
	}
	if err := o.awaitReady(ctx); err != nil {
		return identity.Identity{}, apperrors.Wrap(apperrors.CodeConfiguration, "provider is not available", err)
	}

	signedIn, err := o.ceremony.SignInPopup(ctx, kind)
	if err == nil {
		if o.ensureProfile != nil {
			if err := o.ensureProfile(ctx, signedIn); err != nil {
				return identity.Identity{}, err
			}
		}
		return signedIn, nil
	}

	switch apperrors.GetCode(err) {
	case apperrors.CodeCancelled:
		return identity.Identity{}, apperrors.New(apperrors.CodeCancelled, "sign-in cancelled")

	case apperrors.CodePopupBlocked:
		o.log.Info(ctx, "popup blocked, falling back to redirect", "provider", string(kind))
		if redirectErr := o.ceremony.SignInRedirect(ctx, kind); redirectErr != nil {
			return identity.Identity{}, apperrors.Wrap(apperrors.CodeRedirectFailed, "popup blocked and redirect failed", redirectErr)
		}
		return identity.Identity{}, ErrRedirectStarted

	case apperrors.CodeNetwork:
		return identity.Identity{}, apperrors.Wrap(apperrors.CodeNetwork, "network failure during sign-in", err)

	case apperrors.CodeUnauthorizedDomain:
		return identity.Identity{}, apperrors.Wrap(apperrors.CodeUnauthorizedDomain, "domain is not authorized for this provider", err)

	default:
		o.log.Error(ctx, "provider sign-in failed", "provider", string(kind), "error", err)
		return identity.Identity{}, apperrors.WithMetadata(apperrors.CodeProvider, "provider sign-in failed", map[string]string{
			"provider": string(kind),
			"raw":      err.Error(),
		})
	}
}

func (o *Orchestrator) awaitReady(ctx context.Context) error {
	o.readyOnce.Do(func() {
		o.readyErr = o.ceremony.Ready(ctx)
	})
	return o.readyErr
}
