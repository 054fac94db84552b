// Package identity provides the authenticated principal model.
//
// An Identity is what the credential layer asserts about a visitor; it is
// independent of the application profile keyed by its id.
package identity

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/id"
)

// ErrInvalidEmail indicates an email that cannot be parsed as an address.
var ErrInvalidEmail = apperrors.New(apperrors.CodeInvalidEmail, "email is invalid")

// CredentialKind names a strategy an identity has linked.
type CredentialKind string

const (
	KindProvider  CredentialKind = "provider"
	KindEmailCode CredentialKind = "email_code"
	KindEmailLink CredentialKind = "email_link"
	KindPasskey   CredentialKind = "passkey"
	KindGuest     CredentialKind = "guest"
)

// Identity represents an authenticated principal.
//
// It is immutable after creation except for linking additional credential
// kinds. Signing out destroys only the client-side copy.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
	Kinds       []CredentialKind
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateInput describes the metadata needed to mint an identity.
type CreateInput struct {
	Email       string
	DisplayName string
	PhotoURL    string
	Kind        CredentialKind
}

// NormalizeEmail lower-cases and validates an email address.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(parsed.Address), nil
}

// Create mints a durable identity from validated input.
//
// This is the canonical point where credential-layer data becomes a stable
// principal the rest of the system keys on.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Identity, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	email := ""
	if strings.TrimSpace(input.Email) != "" {
		normalized, err := NormalizeEmail(input.Email)
		if err != nil {
			return Identity{}, err
		}
		email = normalized
	}

	identityID, err := idGenerator()
	if err != nil {
		return Identity{}, fmt.Errorf("generate identity id: %w", err)
	}

	createdAt := now().UTC()
	created := Identity{
		ID:          identityID,
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
		PhotoURL:    strings.TrimSpace(input.PhotoURL),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if input.Kind != "" {
		created.Kinds = []CredentialKind{input.Kind}
	}
	return created, nil
}

// LinkKind returns a copy with kind appended if not already linked.
func (i Identity) LinkKind(kind CredentialKind, now time.Time) Identity {
	for _, existing := range i.Kinds {
		if existing == kind {
			return i
		}
	}
	linked := i
	linked.Kinds = append(append([]CredentialKind(nil), i.Kinds...), kind)
	linked.UpdatedAt = now.UTC()
	return linked
}

// HasKind reports whether the identity has linked the given credential kind.
func (i Identity) HasKind(kind CredentialKind) bool {
	for _, existing := range i.Kinds {
		if existing == kind {
			return true
		}
	}
	return false
}
