// Package magiclink implements single-use, time-boxed email sign-in links.
package magiclink

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/email"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/id"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/logging"
)

// Channel implements the sign-in link flow.
//
// Each link carries an opaque single-use token bound to the requesting email;
// the server-side record is the source of truth for expiry and consumption.
type Channel struct {
	cfg         Config
	links       storage.LinkStore
	identities  storage.IdentityStore
	sender      email.Sender
	log         logging.Logger
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewChannel builds a link channel. The sender may be nil, in which case
// SendLink fails fast with an email-unavailable error.
func NewChannel(cfg Config, links storage.LinkStore, identities storage.IdentityStore, sender email.Sender, log logging.Logger) *Channel {
	if log == nil {
		log = logging.Nop()
	}
	return &Channel{
		cfg:         cfg,
		links:       links,
		identities:  identities,
		sender:      sender,
		log:         log,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// SendLink mints, stores, and emails a single-use sign-in link.
func (c *Channel) SendLink(ctx context.Context, rawEmail string) error {
	if c.links == nil {
		return apperrors.New(apperrors.CodeConfiguration, "link store is not configured")
	}
	if c.sender == nil {
		return apperrors.New(apperrors.CodeEmailUnavailable, "email delivery is not configured")
	}

	emailKey, err := identity.NormalizeEmail(rawEmail)
	if err != nil {
		return err
	}

	token, err := c.idGenerator()
	if err != nil {
		return fmt.Errorf("generate link token: %w", err)
	}

	now := c.clock().UTC()
	record := storage.MagicLink{
		Token:     token,
		Email:     emailKey,
		CreatedAt: now,
		ExpiresAt: now.Add(c.cfg.TTL),
	}
	if err := c.links.PutMagicLink(ctx, record); err != nil {
		return fmt.Errorf("store magic link: %w", err)
	}

	linkURL, err := buildLinkURL(c.cfg.BaseURL, token, emailKey)
	if err != nil {
		return fmt.Errorf("build link url: %w", err)
	}
	if err := c.sender.SendLink(ctx, emailKey, linkURL, record.ExpiresAt); err != nil {
		c.log.Error(ctx, "send sign-in link", "error", err)
		return apperrors.Wrap(apperrors.CodeEmailUnavailable, "could not send sign-in link", err)
	}
	c.log.Info(ctx, "sign-in link issued", "email", emailKey, "expires_at", record.ExpiresAt)
	return nil
}

// IsSignInLink reports whether the URL has the shape of a link this channel
// issued: same host and path as the configured base, with a token parameter.
func (c *Channel) IsSignInLink(candidate string) bool {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return false
	}
	parsed, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return false
	}
	if parsed.Host != base.Host || parsed.Path != base.Path {
		return false
	}
	return parsed.Query().Get("token") != ""
}

// CompleteSignIn consumes a sign-in link and resolves it to an identity.
//
// The submitted email must match the one the link was minted for. Sign-in is
// idempotent: an existing identity for the email gains the email-link
// credential kind; a missing one is created.
func (c *Channel) CompleteSignIn(ctx context.Context, rawEmail string, candidate string) (identity.Identity, error) {
	if c.links == nil {
		return identity.Identity{}, apperrors.New(apperrors.CodeConfiguration, "link store is not configured")
	}
	if c.identities == nil {
		return identity.Identity{}, apperrors.New(apperrors.CodeConfiguration, "identity store is not configured")
	}

	emailKey, err := identity.NormalizeEmail(rawEmail)
	if err != nil {
		return identity.Identity{}, err
	}
	if !c.IsSignInLink(candidate) {
		return identity.Identity{}, apperrors.New(apperrors.CodeValidation, "url is not a sign-in link")
	}
	parsed, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return identity.Identity{}, apperrors.New(apperrors.CodeValidation, "url is not a sign-in link")
	}
	token := parsed.Query().Get("token")

	record, err := c.links.GetMagicLink(ctx, token)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			return identity.Identity{}, apperrors.New(apperrors.CodeCredentialNotFound, "sign-in link not found")
		}
		return identity.Identity{}, fmt.Errorf("load magic link: %w", err)
	}

	now := c.clock().UTC()
	if record.UsedAt != nil {
		return identity.Identity{}, apperrors.New(apperrors.CodeLinkAlreadyUsed, "sign-in link was already used")
	}
	if now.After(record.ExpiresAt) {
		return identity.Identity{}, apperrors.New(apperrors.CodeLinkExpired, "sign-in link has expired")
	}
	if record.Email != emailKey {
		return identity.Identity{}, apperrors.New(apperrors.CodeCredentialNotFound, "sign-in link was issued for a different email")
	}

	if err := c.links.MarkMagicLinkUsed(ctx, token, now); err != nil {
		return identity.Identity{}, fmt.Errorf("mark magic link used: %w", err)
	}

	existing, err := c.identities.GetIdentityByEmail(ctx, emailKey)
	if err == nil {
		linked := existing.Identity.LinkKind(identity.KindEmailLink, now)
		if len(linked.Kinds) != len(existing.Identity.Kinds) {
			existing.Identity = linked
			if err := c.identities.PutIdentity(ctx, existing); err != nil {
				return identity.Identity{}, fmt.Errorf("link email-link credential: %w", err)
			}
		}
		return existing.Identity, nil
	}
	if apperrors.GetCode(err) != apperrors.CodeNotFound {
		return identity.Identity{}, fmt.Errorf("look up identity: %w", err)
	}

	created, err := identity.Create(identity.CreateInput{
		Email: emailKey,
		Kind:  identity.KindEmailLink,
	}, c.clock, c.idGenerator)
	if err != nil {
		return identity.Identity{}, err
	}
	if err := c.identities.PutIdentity(ctx, storage.IdentityRecord{Identity: created}); err != nil {
		return identity.Identity{}, fmt.Errorf("store identity: %w", err)
	}
	c.log.Info(ctx, "identity created via sign-in link", "identity_id", created.ID)
	return created, nil
}

func buildLinkURL(base string, token string, emailKey string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("token", token)
	query.Set("email", emailKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
