package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/service"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
)

type fakeCodes struct {
	requestErr error
	verifyErr  error
	signedIn   identity.Identity
	signUpErr  error

	lastEmail string
	lastCode  string
}

func (f *fakeCodes) RequestCode(_ context.Context, rawEmail string) error {
	f.lastEmail = rawEmail
	return f.requestErr
}

func (f *fakeCodes) VerifyCode(_ context.Context, rawEmail string, submitted string) error {
	f.lastEmail = rawEmail
	f.lastCode = submitted
	return f.verifyErr
}

func (f *fakeCodes) CompleteSignUp(_ context.Context, rawEmail string, submitted string) (identity.Identity, error) {
	f.lastEmail = rawEmail
	f.lastCode = submitted
	return f.signedIn, f.signUpErr
}

type fakeLinks struct {
	sendErr     error
	signedIn    identity.Identity
	completeErr error

	lastEmail     string
	lastCandidate string
}

func (f *fakeLinks) SendLink(_ context.Context, rawEmail string) error {
	f.lastEmail = rawEmail
	return f.sendErr
}

func (f *fakeLinks) CompleteSignIn(_ context.Context, rawEmail string, candidate string) (identity.Identity, error) {
	f.lastEmail = rawEmail
	f.lastCandidate = candidate
	return f.signedIn, f.completeErr
}

type fakeAuthService struct {
	challenge    service.Challenge
	challengeErr error
	credentialID string
	registerErr  error
	grant        service.Grant
	loginErr     error
	grantErr     error
	revokeErr    error
	verified     identity.Identity
	verifyErr    error
	credentials  []storage.PasskeyCredential
	deleteErr    error

	beganRegistrationFor string
	beganLoginFor        string
	finishedSession      string
	issuedFor            string
	revokedToken         string
	listedFor            string
	deletedCredential    string
}

func (f *fakeAuthService) BeginPasskeyRegistration(_ context.Context, identityID string) (service.Challenge, error) {
	f.beganRegistrationFor = identityID
	return f.challenge, f.challengeErr
}

func (f *fakeAuthService) FinishPasskeyRegistration(_ context.Context, sessionID string, _ string, _ []byte) (string, error) {
	f.finishedSession = sessionID
	return f.credentialID, f.registerErr
}

func (f *fakeAuthService) BeginPasskeyLogin(_ context.Context, rawEmail string) (service.Challenge, error) {
	f.beganLoginFor = rawEmail
	return f.challenge, f.challengeErr
}

func (f *fakeAuthService) FinishPasskeyLogin(_ context.Context, sessionID string, _ []byte) (service.Grant, error) {
	f.finishedSession = sessionID
	return f.grant, f.loginErr
}

func (f *fakeAuthService) IssueGrant(_ context.Context, signedIn identity.Identity) (service.Grant, error) {
	f.issuedFor = signedIn.ID
	if f.grantErr != nil {
		return service.Grant{}, f.grantErr
	}
	grant := f.grant
	grant.Identity = signedIn
	return grant, nil
}

func (f *fakeAuthService) ListPasskeys(_ context.Context, identityID string) ([]storage.PasskeyCredential, error) {
	f.listedFor = identityID
	return f.credentials, nil
}

func (f *fakeAuthService) DeletePasskey(_ context.Context, _ string, credentialID string) error {
	f.deletedCredential = credentialID
	return f.deleteErr
}

func (f *fakeAuthService) VerifyGrant(context.Context, string) (identity.Identity, error) {
	return f.verified, f.verifyErr
}

func (f *fakeAuthService) Revoke(_ context.Context, tokenString string) error {
	f.revokedToken = tokenString
	return f.revokeErr
}

type fixture struct {
	codes   *fakeCodes
	links   *fakeLinks
	service *fakeAuthService
	mux     *http.ServeMux
}

func newFixture() *fixture {
	f := &fixture{
		codes:   &fakeCodes{},
		links:   &fakeLinks{},
		service: &fakeAuthService{},
		mux:     http.NewServeMux(),
	}
	server := NewServer(f.codes, f.links, f.service, nil)
	server.RegisterRoutes(f.mux)
	return f
}

func (f *fixture) post(t *testing.T, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	f.mux.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
}

func TestSendCode(t *testing.T) {
	f := newFixture()

	recorder := f.post(t, "/auth/email/send-code", `{"email":"a@x.com"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var response successResponse
	decodeBody(t, recorder, &response)
	if !response.Success {
		t.Fatal("success = false")
	}
	if f.codes.lastEmail != "a@x.com" {
		t.Fatalf("email = %q", f.codes.lastEmail)
	}
}

func TestSendCodeInvalidEmail(t *testing.T) {
	f := newFixture()
	f.codes.requestErr = apperrors.New(apperrors.CodeInvalidEmail, "email is invalid")

	recorder := f.post(t, "/auth/email/send-code", `{"email":"nope"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	var response errorResponse
	decodeBody(t, recorder, &response)
	if response.Code != string(apperrors.CodeInvalidEmail) {
		t.Fatalf("code = %q", response.Code)
	}
}

func TestSendCodeRejectsGet(t *testing.T) {
	f := newFixture()

	request := httptest.NewRequest(http.MethodGet, "/auth/email/send-code", nil)
	recorder := httptest.NewRecorder()
	f.mux.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", recorder.Code)
	}
}

func TestSendCodeMalformedBody(t *testing.T) {
	f := newFixture()

	recorder := f.post(t, "/auth/email/send-code", `{"email":`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestVerifyCodeMismatch(t *testing.T) {
	f := newFixture()
	f.codes.verifyErr = apperrors.New(apperrors.CodeCodeMismatch, "code does not match")

	recorder := f.post(t, "/auth/email/verify-code", `{"email":"a@x.com","code":"000000"}`)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
	var response errorResponse
	decodeBody(t, recorder, &response)
	if response.Code != string(apperrors.CodeCodeMismatch) {
		t.Fatalf("code = %q", response.Code)
	}
}

func TestCompleteEmailIssuesGrant(t *testing.T) {
	f := newFixture()
	f.codes.signedIn = identity.Identity{ID: "identity-1", Email: "a@x.com"}
	f.service.grant = service.Grant{
		Token:     "signed-token",
		ExpiresAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	recorder := f.post(t, "/auth/email/complete", `{"email":"a@x.com","code":"123456"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	var response grantResponse
	decodeBody(t, recorder, &response)
	if response.Token != "signed-token" {
		t.Fatalf("token = %q", response.Token)
	}
	if response.Identity.ID != "identity-1" {
		t.Fatalf("identity = %+v", response.Identity)
	}
	if f.service.issuedFor != "identity-1" {
		t.Fatalf("grant issued for %q", f.service.issuedFor)
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	f := newFixture()
	f.codes.requestErr = apperrors.Wrap(apperrors.CodeConfiguration, "smtp host missing from deployment manifest", nil)

	recorder := f.post(t, "/auth/email/send-code", `{"email":"a@x.com"}`)
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", recorder.Code)
	}
	var response errorResponse
	decodeBody(t, recorder, &response)
	if response.Error != "internal error" {
		t.Fatalf("error = %q, internals leaked", response.Error)
	}
}

func TestSendLink(t *testing.T) {
	f := newFixture()

	recorder := f.post(t, "/auth/link/send", `{"email":"a@x.com"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if f.links.lastEmail != "a@x.com" {
		t.Fatalf("email = %q", f.links.lastEmail)
	}
}

func TestCompleteLinkFromClickedURL(t *testing.T) {
	f := newFixture()
	f.links.signedIn = identity.Identity{ID: "identity-1"}
	f.service.grant = service.Grant{Token: "signed-token"}

	request := httptest.NewRequest(http.MethodGet, "/auth/link?token=tok-1&email=a%40x.com", nil)
	request.Host = "localhost:8080"
	recorder := httptest.NewRecorder()
	f.mux.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	if f.links.lastEmail != "a@x.com" {
		t.Fatalf("email = %q", f.links.lastEmail)
	}
	if !strings.Contains(f.links.lastCandidate, "token=tok-1") {
		t.Fatalf("candidate = %q", f.links.lastCandidate)
	}
}

func TestPasskeyChallengeForRegistration(t *testing.T) {
	f := newFixture()
	f.service.challenge = service.Challenge{SessionID: "session-1", OptionsJSON: []byte(`{"publicKey":{}}`)}

	recorder := f.post(t, "/auth/passkey/challenge", `{"userId":"identity-1"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var response challengeResponse
	decodeBody(t, recorder, &response)
	if response.SessionID != "session-1" {
		t.Fatalf("session = %q", response.SessionID)
	}
	if f.service.beganRegistrationFor != "identity-1" {
		t.Fatalf("registration began for %q", f.service.beganRegistrationFor)
	}
}

func TestPasskeyChallengeForLogin(t *testing.T) {
	f := newFixture()
	f.service.challenge = service.Challenge{SessionID: "session-1", OptionsJSON: []byte(`{}`)}

	recorder := f.post(t, "/auth/passkey/challenge", `{"email":"a@x.com"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if f.service.beganLoginFor != "a@x.com" {
		t.Fatalf("login began for %q", f.service.beganLoginFor)
	}
}

func TestPasskeyRegisterRequiresSessionAndCredential(t *testing.T) {
	f := newFixture()

	recorder := f.post(t, "/auth/passkey/register", `{"sessionId":"session-1"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestPasskeyRegister(t *testing.T) {
	f := newFixture()
	f.service.credentialID = "cred-1"

	recorder := f.post(t, "/auth/passkey/register", `{"sessionId":"session-1","credential":{"id":"abc"}}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var response registerResponse
	decodeBody(t, recorder, &response)
	if response.CredentialID != "cred-1" {
		t.Fatalf("credential id = %q", response.CredentialID)
	}
}

func TestPasskeyVerifyRejectsUnknownCredential(t *testing.T) {
	f := newFixture()
	f.service.loginErr = apperrors.New(apperrors.CodeCredentialNotFound, "credential is not registered")

	recorder := f.post(t, "/auth/passkey/verify", `{"sessionId":"session-1","credential":{"id":"abc"}}`)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestPasskeyVerifyIssuesGrant(t *testing.T) {
	f := newFixture()
	f.service.grant = service.Grant{
		Token:     "signed-token",
		ExpiresAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Identity:  identity.Identity{ID: "identity-1"},
	}

	recorder := f.post(t, "/auth/passkey/verify", `{"sessionId":"session-1","credential":{"id":"abc"}}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var response grantResponse
	decodeBody(t, recorder, &response)
	if response.Token != "signed-token" || response.Identity.ID != "identity-1" {
		t.Fatalf("response = %+v", response)
	}
	if f.service.finishedSession != "session-1" {
		t.Fatalf("finished session %q", f.service.finishedSession)
	}
}

func TestPasskeyListRequiresValidToken(t *testing.T) {
	f := newFixture()
	f.service.verifyErr = apperrors.New(apperrors.CodeNoActiveIdentity, "session was revoked")

	recorder := f.post(t, "/auth/passkey/list", `{"token":"stale"}`)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestPasskeyList(t *testing.T) {
	f := newFixture()
	f.service.verified = identity.Identity{ID: "identity-1"}
	lastUsed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.service.credentials = []storage.PasskeyCredential{{
		CredentialID: "cred-1",
		DeviceLabel:  "laptop",
		CreatedAt:    time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		LastUsedAt:   &lastUsed,
	}}

	recorder := f.post(t, "/auth/passkey/list", `{"token":"signed-token"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var response passkeyListResponse
	decodeBody(t, recorder, &response)
	if len(response.Passkeys) != 1 || response.Passkeys[0].CredentialID != "cred-1" {
		t.Fatalf("passkeys = %+v", response.Passkeys)
	}
	if response.Passkeys[0].LastUsedAt != "2026-03-01T10:00:00Z" {
		t.Fatalf("last used = %q", response.Passkeys[0].LastUsedAt)
	}
	if f.service.listedFor != "identity-1" {
		t.Fatalf("listed for %q", f.service.listedFor)
	}
}

func TestPasskeyDelete(t *testing.T) {
	f := newFixture()
	f.service.verified = identity.Identity{ID: "identity-1"}

	recorder := f.post(t, "/auth/passkey/delete", `{"token":"signed-token","credentialId":"cred-1"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if f.service.deletedCredential != "cred-1" {
		t.Fatalf("deleted %q", f.service.deletedCredential)
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture()

	recorder := f.post(t, "/auth/session/revoke", `{"token":"signed-token"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if f.service.revokedToken != "signed-token" {
		t.Fatalf("revoked %q", f.service.revokedToken)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture()

	request := httptest.NewRequest(http.MethodGet, "/up", nil)
	recorder := httptest.NewRecorder()
	f.mux.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
}
