package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/identity"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/auth/service"
	apperrors "github.com/pistolinkr/webmuseum.world-sub000/internal/platform/errors"
)

const maxBodyBytes = 1 << 20

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type linkRequest struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

type challengeRequest struct {
	Email  string `json:"email,omitempty"`
	UserID string `json:"userId,omitempty"`
}

type registerRequest struct {
	SessionID   string          `json:"sessionId"`
	DeviceLabel string          `json:"deviceLabel,omitempty"`
	Credential  json.RawMessage `json:"credential"`
}

type verifyRequest struct {
	SessionID  string          `json:"sessionId"`
	Credential json.RawMessage `json:"credential"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type deletePasskeyRequest struct {
	Token        string `json:"token"`
	CredentialID string `json:"credentialId"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type challengeResponse struct {
	Success   bool            `json:"success"`
	SessionID string          `json:"sessionId"`
	Options   json.RawMessage `json:"options"`
}

type registerResponse struct {
	Success      bool   `json:"success"`
	CredentialID string `json:"credentialId"`
}

type passkeyView struct {
	CredentialID string `json:"credentialId"`
	DeviceLabel  string `json:"deviceLabel,omitempty"`
	CreatedAt    string `json:"createdAt"`
	LastUsedAt   string `json:"lastUsedAt,omitempty"`
}

type passkeyListResponse struct {
	Success  bool          `json:"success"`
	Passkeys []passkeyView `json:"passkeys"`
}

type identityView struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

type grantResponse struct {
	Success   bool         `json:"success"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	Identity  identityView `json:"identity"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var request emailRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	if err := s.codes.RequestCode(r.Context(), request.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var request codeRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	if err := s.codes.VerifyCode(r.Context(), request.Email, request.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleCompleteEmail(w http.ResponseWriter, r *http.Request) {
	var request codeRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	signedIn, err := s.codes.CompleteSignUp(r.Context(), request.Email, request.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeGrant(w, r, signedIn)
}

func (s *Server) handleSendLink(w http.ResponseWriter, r *http.Request) {
	var request emailRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	if err := s.links.SendLink(r.Context(), request.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleCompleteLink accepts both the clicked link itself (GET with token and
// email in the query) and a JSON POST carrying the full link.
func (s *Server) handleCompleteLink(w http.ResponseWriter, r *http.Request) {
	var email, candidate string
	switch r.Method {
	case http.MethodGet:
		email = r.URL.Query().Get("email")
		candidate = requestedURL(r)
	case http.MethodPost:
		var request linkRequest
		if !s.decodeJSON(w, r, &request) {
			return
		}
		email = request.Email
		candidate = request.Link
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, apperrors.CodeValidation, "method not allowed")
		return
	}

	signedIn, err := s.links.CompleteSignIn(r.Context(), email, candidate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeGrant(w, r, signedIn)
}

func (s *Server) handlePasskeyChallenge(w http.ResponseWriter, r *http.Request) {
	var request challengeRequest
	if !s.decodePost(w, r, &request) {
		return
	}

	var challenge service.Challenge
	var err error
	if request.UserID != "" {
		challenge, err = s.service.BeginPasskeyRegistration(r.Context(), request.UserID)
	} else {
		challenge, err = s.service.BeginPasskeyLogin(r.Context(), request.Email)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{
		Success:   true,
		SessionID: challenge.SessionID,
		Options:   json.RawMessage(challenge.OptionsJSON),
	})
}

func (s *Server) handlePasskeyRegister(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	if request.SessionID == "" || len(request.Credential) == 0 {
		writeJSONError(w, http.StatusBadRequest, apperrors.CodeValidation, "sessionId and credential are required")
		return
	}
	credentialID, err := s.service.FinishPasskeyRegistration(r.Context(), request.SessionID, request.DeviceLabel, request.Credential)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{Success: true, CredentialID: credentialID})
}

func (s *Server) handlePasskeyVerify(w http.ResponseWriter, r *http.Request) {
	var request verifyRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	if request.SessionID == "" || len(request.Credential) == 0 {
		writeJSONError(w, http.StatusBadRequest, apperrors.CodeValidation, "sessionId and credential are required")
		return
	}
	grant, err := s.service.FinishPasskeyLogin(r.Context(), request.SessionID, request.Credential)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grantResponseFrom(grant))
}

func (s *Server) handlePasskeyList(w http.ResponseWriter, r *http.Request) {
	var request tokenRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	owner, err := s.service.VerifyGrant(r.Context(), request.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	credentials, err := s.service.ListPasskeys(r.Context(), owner.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]passkeyView, 0, len(credentials))
	for _, credential := range credentials {
		view := passkeyView{
			CredentialID: credential.CredentialID,
			DeviceLabel:  credential.DeviceLabel,
			CreatedAt:    credential.CreatedAt.UTC().Format(time.RFC3339),
		}
		if credential.LastUsedAt != nil {
			view.LastUsedAt = credential.LastUsedAt.UTC().Format(time.RFC3339)
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, passkeyListResponse{Success: true, Passkeys: views})
}

func (s *Server) handlePasskeyDelete(w http.ResponseWriter, r *http.Request) {
	var request deletePasskeyRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	if request.CredentialID == "" {
		writeJSONError(w, http.StatusBadRequest, apperrors.CodeValidation, "credentialId is required")
		return
	}
	owner, err := s.service.VerifyGrant(r.Context(), request.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.service.DeletePasskey(r.Context(), owner.ID, request.CredentialID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var request tokenRequest
	if !s.decodePost(w, r, &request) {
		return
	}
	if err := s.service.Revoke(r.Context(), request.Token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) writeGrant(w http.ResponseWriter, r *http.Request, signedIn identity.Identity) {
	grant, err := s.service.IssueGrant(r.Context(), signedIn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grantResponseFrom(grant))
}

func grantResponseFrom(grant service.Grant) grantResponse {
	return grantResponse{
		Success:   true,
		Token:     grant.Token,
		ExpiresAt: grant.ExpiresAt.UTC().Format(time.RFC3339),
		Identity: identityView{
			ID:          grant.Identity.ID,
			Email:       grant.Identity.Email,
			DisplayName: grant.Identity.DisplayName,
			PhotoURL:    grant.Identity.PhotoURL,
		},
	}
}

func (s *Server) decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, apperrors.CodeValidation, "method not allowed")
		return false
	}
	return s.decodeJSON(w, r, dst)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, apperrors.CodeValidation, "invalid JSON body")
		return false
	}
	return true
}

// writeError maps a domain error onto the JSON error shape. Messages from
// server-side failures are replaced with a generic one; the cause is logged,
// never returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()

	message := "internal error"
	var domainErr *apperrors.Error
	if status < http.StatusInternalServerError && errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "auth endpoint failed", "path", r.URL.Path, "error", err)
	} else {
		s.log.Warn(r.Context(), "auth request rejected", "path", r.URL.Path, "code", string(code))
	}
	writeJSONError(w, status, code, message)
}

func requestedURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func writeJSONError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: string(code)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}
