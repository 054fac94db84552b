// Package httpapi exposes the auth subsystem's JSON endpoints: one-time
// codes, magic links, and passkey ceremonies.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/service"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/storage"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/logging"
)

// CodeChannel is the one-time-code flow consumed by the HTTP surface.
type CodeChannel interface {
	RequestCode(ctx context.Context, rawEmail string) error
	VerifyCode(ctx context.Context, rawEmail string, submitted string) error
	CompleteSignUp(ctx context.Context, rawEmail string, submitted string) (identity.Identity, error)
}

// LinkChannel is the magic-link flow consumed by the HTTP surface.
type LinkChannel interface {
	SendLink(ctx context.Context, rawEmail string) error
	CompleteSignIn(ctx context.Context, rawEmail string, candidate string) (identity.Identity, error)
}

// AuthService covers passkey ceremonies and session grants.
type AuthService interface {
	BeginPasskeyRegistration(ctx context.Context, identityID string) (service.Challenge, error)
	FinishPasskeyRegistration(ctx context.Context, sessionID string, deviceLabel string, credentialResponseJSON []byte) (string, error)
	BeginPasskeyLogin(ctx context.Context, rawEmail string) (service.Challenge, error)
	FinishPasskeyLogin(ctx context.Context, sessionID string, credentialResponseJSON []byte) (service.Grant, error)
	ListPasskeys(ctx context.Context, identityID string) ([]storage.PasskeyCredential, error)
	DeletePasskey(ctx context.Context, identityID string, credentialID string) error
	IssueGrant(ctx context.Context, signedIn identity.Identity) (service.Grant, error)
	VerifyGrant(ctx context.Context, tokenString string) (identity.Identity, error)
	Revoke(ctx context.Context, tokenString string) error
}

// Server hosts the auth JSON endpoints.
type Server struct {
	codes   CodeChannel
	links   LinkChannel
	service AuthService
	log     logging.Logger
	clock   func() time.Time
}

// NewServer builds an HTTP server over the given auth flows.
func NewServer(codes CodeChannel, links LinkChannel, authService AuthService, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		codes:   codes,
		links:   links,
		service: authService,
		log:     log,
		clock:   time.Now,
	}
}

// RegisterRoutes registers auth HTTP endpoints on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}

	mux.HandleFunc("/auth/email/send-code", s.handleSendCode)
	mux.HandleFunc("/auth/email/verify-code", s.handleVerifyCode)
	mux.HandleFunc("/auth/email/complete", s.handleCompleteEmail)
	mux.HandleFunc("/auth/link/send", s.handleSendLink)
	mux.HandleFunc("/auth/link", s.handleCompleteLink)
	mux.HandleFunc("/auth/passkey/challenge", s.handlePasskeyChallenge)
	mux.HandleFunc("/auth/passkey/register", s.handlePasskeyRegister)
	mux.HandleFunc("/auth/passkey/verify", s.handlePasskeyVerify)
	mux.HandleFunc("/auth/passkey/list", s.handlePasskeyList)
	mux.HandleFunc("/auth/passkey/delete", s.handlePasskeyDelete)
	mux.HandleFunc("/auth/session/revoke", s.handleRevoke)
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
