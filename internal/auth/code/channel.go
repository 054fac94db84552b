// Package code implements passwordless email sign-in via short-lived
// one-time codes.
package code

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/email"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/id"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/logging"
)

// Channel implements the one-time code sign-in flow.
//
// A code is single-use and at most one live code exists per email; a new
// request overwrites the prior one.
type Channel struct {
	cfg         Config
	codes       storage.CodeStore
	identities  storage.IdentityStore
	sender      email.Sender
	log         logging.Logger
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewChannel builds a code channel. The sender may be nil, in which case
// RequestCode fails fast with an email-unavailable error.
func NewChannel(cfg Config, codes storage.CodeStore, identities storage.IdentityStore, sender email.Sender, log logging.Logger) *Channel {
	if log == nil {
		log = logging.Nop()
	}
	return &Channel{
		cfg:         cfg,
		codes:       codes,
		identities:  identities,
		sender:      sender,
		log:         log,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// RequestCode generates, stores, and emails a fresh code for the address.
// Any prior live code for the same email is invalidated.
func (c *Channel) RequestCode(ctx context.Context, rawEmail string) error {
	if c.codes == nil {
		return apperrors.New(apperrors.CodeConfiguration, "code store is not configured")
	}
	if c.sender == nil {
		return apperrors.New(apperrors.CodeEmailUnavailable, "email delivery is not configured")
	}

	emailKey, err := identity.NormalizeEmail(rawEmail)
	if err != nil {
		return err
	}

	generated, err := generateCode(c.cfg.Alphabet, c.cfg.Length)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	now := c.clock().UTC()
	record := storage.OneTimeCode{
		EmailKey:  emailKey,
		Code:      generated,
		CreatedAt: now,
		ExpiresAt: now.Add(c.cfg.TTL),
	}
	if err := c.codes.PutOneTimeCode(ctx, record); err != nil {
		return fmt.Errorf("store one-time code: %w", err)
	}

	if err := c.sender.SendCode(ctx, emailKey, generated, record.ExpiresAt); err != nil {
		c.log.Error(ctx, "send sign-in code", "error", err)
		return apperrors.Wrap(apperrors.CodeEmailUnavailable, "could not send sign-in code", err)
	}
	c.log.Info(ctx, "sign-in code issued", "email", emailKey, "expires_at", record.ExpiresAt)
	return nil
}

// VerifyCode consumes the live code for the address.
//
// The comparison is case-insensitive. Expired records are deleted so later
// attempts report not-found rather than expired.
func (c *Channel) VerifyCode(ctx context.Context, rawEmail string, submitted string) error {
	if c.codes == nil {
		return apperrors.New(apperrors.CodeConfiguration, "code store is not configured")
	}

	emailKey, err := identity.NormalizeEmail(rawEmail)
	if err != nil {
		return err
	}
	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		return apperrors.New(apperrors.CodeValidation, "code is required")
	}

	record, err := c.codes.GetOneTimeCode(ctx, emailKey)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			return apperrors.New(apperrors.CodeCredentialNotFound, "no code found for this email")
		}
		return fmt.Errorf("load one-time code: %w", err)
	}

	if record.Used {
		return apperrors.New(apperrors.CodeCodeAlreadyUsed, "code was already used")
	}
	now := c.clock().UTC()
	if now.After(record.ExpiresAt) {
		if err := c.codes.DeleteOneTimeCode(ctx, emailKey); err != nil {
			c.log.Warn(ctx, "delete expired code", "error", err)
		}
		return apperrors.New(apperrors.CodeCodeExpired, "code has expired")
	}
	if !strings.EqualFold(record.Code, submitted) {
		return apperrors.New(apperrors.CodeCodeMismatch, "code does not match")
	}

	if err := c.codes.MarkOneTimeCodeUsed(ctx, emailKey); err != nil {
		return fmt.Errorf("mark code used: %w", err)
	}
	return nil
}

// CompleteSignUp verifies the code and resolves it to an identity.
//
// Sign-up is idempotent: an existing identity for the email is signed in and
// gains the email-code credential kind; a missing one is created with a
// random high-entropy secret that never leaves this method in plaintext.
func (c *Channel) CompleteSignUp(ctx context.Context, rawEmail string, submitted string) (identity.Identity, error) {
	if c.identities == nil {
		return identity.Identity{}, apperrors.New(apperrors.CodeConfiguration, "identity store is not configured")
	}

	if err := c.VerifyCode(ctx, rawEmail, submitted); err != nil {
		return identity.Identity{}, err
	}
	emailKey, err := identity.NormalizeEmail(rawEmail)
	if err != nil {
		return identity.Identity{}, err
	}

	now := c.clock().UTC()
	existing, err := c.identities.GetIdentityByEmail(ctx, emailKey)
	if err == nil {
		linked := existing.Identity.LinkKind(identity.KindEmailCode, now)
		if len(linked.Kinds) != len(existing.Identity.Kinds) {
			existing.Identity = linked
			if err := c.identities.PutIdentity(ctx, existing); err != nil {
				return identity.Identity{}, fmt.Errorf("link email-code credential: %w", err)
			}
		}
		return existing.Identity, nil
	}
	if apperrors.GetCode(err) != apperrors.CodeNotFound {
		return identity.Identity{}, fmt.Errorf("look up identity: %w", err)
	}

	created, err := identity.Create(identity.CreateInput{
		Email: emailKey,
		Kind:  identity.KindEmailCode,
	}, c.clock, c.idGenerator)
	if err != nil {
		return identity.Identity{}, err
	}

	secretHash, err := provisionSecret()
	if err != nil {
		return identity.Identity{}, fmt.Errorf("provision credential secret: %w", err)
	}
	record := storage.IdentityRecord{Identity: created, SecretHash: secretHash}
	if err := c.identities.PutIdentity(ctx, record); err != nil {
		return identity.Identity{}, fmt.Errorf("store identity: %w", err)
	}
	c.log.Info(ctx, "identity created via email code", "identity_id", created.ID)
	return created, nil
}

func generateCode(alphabet string, length int) (string, error) {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if length <= 0 {
		length = 6
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		index, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[index.Int64()]
	}
	return string(out), nil
}

func provisionSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
