// Package errors provides structured error handling for the auth subsystem.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// User-initiated outcomes
	CodeCancelled Code = "CANCELLED"

	// Recoverable flow outcomes
	CodePopupBlocked   Code = "POPUP_BLOCKED"
	CodeRedirectFailed Code = "POPUP_BLOCKED_AND_REDIRECT_FAILED"

	// Transport errors
	CodeNetwork Code = "NETWORK_ERROR"

	// Configuration errors
	CodeUnauthorizedDomain Code = "UNAUTHORIZED_DOMAIN"
	CodeConfiguration      Code = "CONFIGURATION_ERROR"
	CodeEmailUnavailable   Code = "EMAIL_SERVICE_UNAVAILABLE"

	// Validation errors
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeInvalidEmail Code = "INVALID_EMAIL"

	// Credential errors
	CodeCredentialNotFound Code = "CREDENTIAL_NOT_FOUND"
	CodeCodeExpired        Code = "CODE_EXPIRED"
	CodeCodeAlreadyUsed    Code = "CODE_ALREADY_USED"
	CodeCodeMismatch       Code = "CODE_MISMATCH"
	CodeLinkExpired        Code = "LINK_EXPIRED"
	CodeLinkAlreadyUsed    Code = "LINK_ALREADY_USED"
	CodeSignatureInvalid   Code = "SIGNATURE_INVALID"
	CodeCounterRegressed   Code = "COUNTER_REGRESSED"

	// Capability errors
	CodeNotSupported Code = "NOT_SUPPORTED"

	// Provider errors
	CodeProvider Code = "PROVIDER_ERROR"

	// Session errors
	CodeNoActiveIdentity Code = "NO_ACTIVE_IDENTITY"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes for the JSON surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation,
		CodeInvalidEmail,
		CodeCancelled,
		CodePopupBlocked:
		return http.StatusBadRequest

	case CodeCredentialNotFound,
		CodeCodeExpired,
		CodeCodeAlreadyUsed,
		CodeCodeMismatch,
		CodeLinkExpired,
		CodeLinkAlreadyUsed,
		CodeSignatureInvalid,
		CodeCounterRegressed,
		CodeNoActiveIdentity:
		return http.StatusUnauthorized

	case CodeNotFound:
		return http.StatusNotFound

	case CodeNotSupported:
		return http.StatusNotImplemented

	case CodeNetwork:
		return http.StatusBadGateway

	case CodeUnauthorizedDomain,
		CodeConfiguration,
		CodeEmailUnavailable:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether callers may retry the failed operation as-is.
func (c Code) Retryable() bool {
	return c == CodeNetwork
}
