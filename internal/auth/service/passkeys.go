package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/passkey"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
)

// Challenge is an issued ceremony challenge. The session id binds the
// challenge server-side until the ceremony completes or expires.
type Challenge struct {
	SessionID   string
	OptionsJSON []byte
}

type passkeyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type passkeyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultPasskeyParser struct{}

func (defaultPasskeyParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultPasskeyParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

func (s *AuthService) passkeyReady() error {
	if s.identities == nil {
		return apperrors.New(apperrors.CodeConfiguration, "identity store is not configured")
	}
	if s.passkeys == nil {
		return apperrors.New(apperrors.CodeConfiguration, "passkey store is not configured")
	}
	if s.passkeyInitErr != nil || s.passkeyWebAuthn == nil {
		return apperrors.Wrap(apperrors.CodeConfiguration, "passkey configuration is not available", s.passkeyInitErr)
	}
	if s.passkeyParser == nil {
		return apperrors.New(apperrors.CodeConfiguration, "passkey parser is not configured")
	}
	return nil
}

// BeginPasskeyRegistration issues a registration challenge for an identity.
func (s *AuthService) BeginPasskeyRegistration(ctx context.Context, identityID string) (Challenge, error) {
	if err := s.passkeyReady(); err != nil {
		return Challenge{}, err
	}
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return Challenge{}, apperrors.New(apperrors.CodeValidation, "identity id is required")
	}
	record, err := s.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return Challenge{}, err
	}

	owner, err := s.loadPasskeyOwner(ctx, record.Identity)
	if err != nil {
		return Challenge{}, fmt.Errorf("load passkey owner: %w", err)
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementRequired,
		}),
		webauthn.WithCredentialParameters([]protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		}),
	}
	if len(owner.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(owner.credentials).CredentialDescriptors()))
	}

	creation, session, err := s.passkeyWebAuthn.BeginRegistration(owner, options...)
	if err != nil {
		return Challenge{}, fmt.Errorf("begin passkey registration: %w", err)
	}

	sessionID, err := s.newPasskeySessionID()
	if err != nil {
		return Challenge{}, fmt.Errorf("create passkey session: %w", err)
	}
	if err := s.storePasskeySession(ctx, sessionID, passkey.SessionKindRegistration, record.Identity.ID, session); err != nil {
		return Challenge{}, fmt.Errorf("store passkey session: %w", err)
	}
	optionsJSON, err := json.Marshal(creation)
	if err != nil {
		return Challenge{}, fmt.Errorf("encode registration options: %w", err)
	}

	return Challenge{SessionID: sessionID, OptionsJSON: optionsJSON}, nil
}

// FinishPasskeyRegistration validates the attestation response and stores the
// new credential with a zero signature counter.
func (s *AuthService) FinishPasskeyRegistration(ctx context.Context, sessionID string, deviceLabel string, credentialResponseJSON []byte) (string, error) {
	if err := s.passkeyReady(); err != nil {
		return "", err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", apperrors.New(apperrors.CodeValidation, "session id is required")
	}
	if len(credentialResponseJSON) == 0 {
		return "", apperrors.New(apperrors.CodeValidation, "credential response json is required")
	}

	session, err := s.loadPasskeySession(ctx, sessionID, passkey.SessionKindRegistration)
	if err != nil {
		return "", err
	}
	if session.OwnerID == "" {
		return "", apperrors.New(apperrors.CodeConfiguration, "passkey session missing owner id")
	}

	record, err := s.identities.GetIdentity(ctx, session.OwnerID)
	if err != nil {
		return "", err
	}
	owner, err := s.loadPasskeyOwner(ctx, record.Identity)
	if err != nil {
		return "", fmt.Errorf("load passkey owner: %w", err)
	}

	parsed, err := s.passkeyParser.ParseCredentialCreationResponseBytes(credentialResponseJSON)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeValidation, "credential response is malformed", err)
	}
	credential, err := s.passkeyWebAuthn.CreateCredential(owner, session.Data, parsed)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeSignatureInvalid, "credential attestation failed", err)
	}

	if err := s.storePasskeyCredential(ctx, record.Identity.ID, *credential, deviceLabel, false); err != nil {
		return "", err
	}
	_ = s.passkeys.DeletePasskeySession(ctx, sessionID)

	now := s.clock().UTC()
	linked := record.Identity.LinkKind(identity.KindPasskey, now)
	if len(linked.Kinds) != len(record.Identity.Kinds) {
		record.Identity = linked
		if err := s.identities.PutIdentity(ctx, record); err != nil {
			return "", fmt.Errorf("link passkey credential kind: %w", err)
		}
	}

	credentialID := encodeCredentialID(credential.ID)
	s.log.Info(ctx, "passkey registered", "identity_id", record.Identity.ID, "credential_id", credentialID)
	return credentialID, nil
}

// BeginPasskeyLogin issues a login challenge. An empty email starts a
// discoverable-credential ceremony; a known email scopes the allowed
// credentials to that identity.
func (s *AuthService) BeginPasskeyLogin(ctx context.Context, rawEmail string) (Challenge, error) {
	if err := s.passkeyReady(); err != nil {
		return Challenge{}, err
	}

	var (
		assertion *protocol.CredentialAssertion
		session   *webauthn.SessionData
		ownerID   string
	)
	if strings.TrimSpace(rawEmail) == "" {
		var err error
		assertion, session, err = s.passkeyWebAuthn.BeginDiscoverableLogin()
		if err != nil {
			return Challenge{}, fmt.Errorf("begin passkey login: %w", err)
		}
	} else {
		emailKey, err := identity.NormalizeEmail(rawEmail)
		if err != nil {
			return Challenge{}, err
		}
		record, err := s.identities.GetIdentityByEmail(ctx, emailKey)
		if err != nil {
			if apperrors.GetCode(err) == apperrors.CodeNotFound {
				return Challenge{}, apperrors.New(apperrors.CodeCredentialNotFound, "no identity for this email")
			}
			return Challenge{}, fmt.Errorf("look up identity: %w", err)
		}
		owner, err := s.loadPasskeyOwner(ctx, record.Identity)
		if err != nil {
			return Challenge{}, fmt.Errorf("load passkey owner: %w", err)
		}
		if len(owner.credentials) == 0 {
			return Challenge{}, apperrors.New(apperrors.CodeCredentialNotFound, "no passkeys registered for this email")
		}
		ownerID = record.Identity.ID
		assertion, session, err = s.passkeyWebAuthn.BeginLogin(owner)
		if err != nil {
			return Challenge{}, fmt.Errorf("begin passkey login: %w", err)
		}
	}

	sessionID, err := s.newPasskeySessionID()
	if err != nil {
		return Challenge{}, fmt.Errorf("create passkey session: %w", err)
	}
	if err := s.storePasskeySession(ctx, sessionID, passkey.SessionKindLogin, ownerID, session); err != nil {
		return Challenge{}, fmt.Errorf("store passkey session: %w", err)
	}
	optionsJSON, err := json.Marshal(assertion)
	if err != nil {
		return Challenge{}, fmt.Errorf("encode login options: %w", err)
	}

	return Challenge{SessionID: sessionID, OptionsJSON: optionsJSON}, nil
}

// FinishPasskeyLogin validates the assertion against the stored public key
// material, enforces counter monotonicity, and issues a session grant.
func (s *AuthService) FinishPasskeyLogin(ctx context.Context, sessionID string, credentialResponseJSON []byte) (Grant, error) {
	if err := s.passkeyReady(); err != nil {
		return Grant{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Grant{}, apperrors.New(apperrors.CodeValidation, "session id is required")
	}
	if len(credentialResponseJSON) == 0 {
		return Grant{}, apperrors.New(apperrors.CodeValidation, "credential response json is required")
	}

	session, err := s.loadPasskeySession(ctx, sessionID, passkey.SessionKindLogin)
	if err != nil {
		return Grant{}, err
	}

	parsed, err := s.passkeyParser.ParseCredentialRequestResponseBytes(credentialResponseJSON)
	if err != nil {
		return Grant{}, apperrors.Wrap(apperrors.CodeValidation, "credential response is malformed", err)
	}

	// Email-scoped ceremonies carry the owner in the stored session and must
	// validate against that owner; only ownerless sessions take the
	// discoverable path, where the authenticator supplies the user handle.
	var (
		owner               *passkeyOwner
		validatedCredential *webauthn.Credential
	)
	if session.OwnerID != "" {
		record, err := s.identities.GetIdentity(ctx, session.OwnerID)
		if err != nil {
			return Grant{}, fmt.Errorf("load passkey owner identity: %w", err)
		}
		owner, err = s.loadPasskeyOwner(ctx, record.Identity)
		if err != nil {
			return Grant{}, fmt.Errorf("load passkey owner: %w", err)
		}
		validatedCredential, err = s.passkeyWebAuthn.ValidateLogin(owner, session.Data, parsed)
		if err != nil {
			return Grant{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, "passkey assertion failed", err)
		}
	} else {
		validatedUser, credential, err := s.passkeyWebAuthn.ValidatePasskeyLogin(s.passkeyOwnerHandler(ctx), session.Data, parsed)
		if err != nil {
			return Grant{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, "passkey assertion failed", err)
		}
		resolved, ok := validatedUser.(*passkeyOwner)
		if !ok {
			return Grant{}, apperrors.New(apperrors.CodeConfiguration, "passkey owner type mismatch")
		}
		owner = resolved
		validatedCredential = credential
	}
	if validatedCredential.Authenticator.CloneWarning {
		return Grant{}, apperrors.New(apperrors.CodeCounterRegressed, "signature counter did not increase")
	}

	if err := s.storePasskeyCredential(ctx, owner.identity.ID, *validatedCredential, "", true); err != nil {
		return Grant{}, err
	}
	_ = s.passkeys.DeletePasskeySession(ctx, sessionID)

	if s.profiles != nil {
		if _, err := s.EnsureProfile(ctx, owner.identity); err != nil {
			s.log.Warn(ctx, "ensure profile after passkey login", "error", err)
		}
	}
	return s.IssueGrant(ctx, owner.identity)
}

// ListPasskeys returns the credentials registered by an identity.
func (s *AuthService) ListPasskeys(ctx context.Context, identityID string) ([]storage.PasskeyCredential, error) {
	if s.passkeys == nil {
		return nil, apperrors.New(apperrors.CodeConfiguration, "passkey store is not configured")
	}
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "identity id is required")
	}
	return s.passkeys.ListPasskeyCredentials(ctx, identityID)
}

// DeletePasskey removes one of the caller's credentials. Ownership is
// enforced; deleting someone else's credential reports not-found.
func (s *AuthService) DeletePasskey(ctx context.Context, identityID string, credentialID string) error {
	if s.passkeys == nil {
		return apperrors.New(apperrors.CodeConfiguration, "passkey store is not configured")
	}
	if strings.TrimSpace(identityID) == "" || strings.TrimSpace(credentialID) == "" {
		return apperrors.New(apperrors.CodeValidation, "identity id and credential id are required")
	}

	stored, err := s.passkeys.GetPasskeyCredential(ctx, credentialID)
	if err != nil {
		return err
	}
	if stored.OwnerID != identityID {
		return storage.ErrNotFound
	}
	return s.passkeys.DeletePasskeyCredential(ctx, credentialID)
}

type passkeyOwner struct {
	identity    identity.Identity
	credentials []webauthn.Credential
}

func (o *passkeyOwner) WebAuthnID() []byte {
	return []byte(o.identity.ID)
}

func (o *passkeyOwner) WebAuthnName() string {
	if o.identity.Email != "" {
		return o.identity.Email
	}
	return o.identity.ID
}

func (o *passkeyOwner) WebAuthnDisplayName() string {
	return o.identity.DisplayName
}

func (o *passkeyOwner) WebAuthnIcon() string {
	return ""
}

func (o *passkeyOwner) WebAuthnCredentials() []webauthn.Credential {
	return o.credentials
}

func (s *AuthService) loadPasskeyOwner(ctx context.Context, base identity.Identity) (*passkeyOwner, error) {
	credentials, err := s.passkeys.ListPasskeyCredentials(ctx, base.ID)
	if err != nil {
		return nil, err
	}
	parsed, err := decodeStoredCredentials(credentials)
	if err != nil {
		return nil, err
	}
	return &passkeyOwner{identity: base, credentials: parsed}, nil
}

func decodeStoredCredentials(records []storage.PasskeyCredential) ([]webauthn.Credential, error) {
	if len(records) == 0 {
		return nil, nil
	}
	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		var credential webauthn.Credential
		if err := json.Unmarshal([]byte(record.CredentialJSON), &credential); err != nil {
			return nil, fmt.Errorf("decode credential %s: %w", record.CredentialID, err)
		}
		credentials = append(credentials, credential)
	}
	return credentials, nil
}

func (s *AuthService) storePasskeyCredential(ctx context.Context, ownerID string, credential webauthn.Credential, deviceLabel string, used bool) error {
	credentialID := encodeCredentialID(credential.ID)
	now := s.clock().UTC()
	stored, err := s.passkeys.GetPasskeyCredential(ctx, credentialID)
	if err != nil && apperrors.GetCode(err) != apperrors.CodeNotFound {
		return err
	}
	missing := err != nil
	if missing && used {
		return apperrors.New(apperrors.CodeCredentialNotFound, "passkey credential not found")
	}

	newCount := credential.Authenticator.SignCount
	createdAt := now
	if !missing {
		createdAt = stored.CreatedAt
		if deviceLabel == "" {
			deviceLabel = stored.DeviceLabel
		}
		if used && stored.SignatureCounter > 0 && newCount <= stored.SignatureCounter {
			return apperrors.New(apperrors.CodeCounterRegressed, "signature counter did not increase")
		}
	}

	credentialJSON, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	var lastUsed *time.Time
	if used {
		value := now
		lastUsed = &value
	} else if !missing {
		lastUsed = stored.LastUsedAt
	}
	return s.passkeys.PutPasskeyCredential(ctx, storage.PasskeyCredential{
		CredentialID:     credentialID,
		OwnerID:          ownerID,
		CredentialJSON:   string(credentialJSON),
		SignatureCounter: newCount,
		DeviceLabel:      deviceLabel,
		CreatedAt:        createdAt,
		UpdatedAt:        now,
		LastUsedAt:       lastUsed,
	})
}

func (s *AuthService) storePasskeySession(ctx context.Context, sessionID string, kind passkey.SessionKind, ownerID string, session *webauthn.SessionData) error {
	if session == nil {
		return fmt.Errorf("session data is required")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.passkeys.PutPasskeySession(ctx, storage.PasskeySession{
		ID:          sessionID,
		Kind:        string(kind),
		OwnerID:     ownerID,
		SessionJSON: string(payload),
		ExpiresAt:   s.clock().UTC().Add(s.passkeyConfig.SessionTTL),
	})
}

type loadedSession struct {
	Data    webauthn.SessionData
	Kind    passkey.SessionKind
	OwnerID string
}

func (s *AuthService) loadPasskeySession(ctx context.Context, sessionID string, expectedKind passkey.SessionKind) (loadedSession, error) {
	stored, err := s.passkeys.GetPasskeySession(ctx, sessionID)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			return loadedSession{}, apperrors.New(apperrors.CodeCredentialNotFound, "passkey session not found")
		}
		return loadedSession{}, fmt.Errorf("load passkey session: %w", err)
	}
	if stored.Kind != string(expectedKind) {
		return loadedSession{}, apperrors.New(apperrors.CodeValidation, "passkey session kind mismatch")
	}
	if stored.ExpiresAt.Before(s.clock().UTC()) {
		_ = s.passkeys.DeletePasskeySession(ctx, sessionID)
		return loadedSession{}, apperrors.New(apperrors.CodeValidation, "passkey session expired")
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(stored.SessionJSON), &session); err != nil {
		return loadedSession{}, fmt.Errorf("decode passkey session: %w", err)
	}
	return loadedSession{Data: session, Kind: expectedKind, OwnerID: stored.OwnerID}, nil
}

func (s *AuthService) passkeyOwnerHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		ownerID := string(userHandle)
		if strings.TrimSpace(ownerID) == "" {
			return nil, fmt.Errorf("user handle is required")
		}
		record, err := s.identities.GetIdentity(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return s.loadPasskeyOwner(ctx, record.Identity)
	}
}

func (s *AuthService) newPasskeySessionID() (string, error) {
	if s.passkeyIDGenerator != nil {
		return s.passkeyIDGenerator()
	}
	return s.idGenerator()
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
