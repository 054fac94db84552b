package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeCodeExpired, "code expired")
	if !errors.Is(err, New(CodeCodeExpired, "different message")) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(err, New(CodeCodeMismatch, "code expired")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(CodeNetwork, "network error", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if err.Error() != "network error" {
		t.Fatalf("message = %q, want %q", err.Error(), "network error")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(nil); got != CodeUnknown {
		t.Fatalf("nil code = %q, want %q", got, CodeUnknown)
	}
	if got := GetCode(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("plain code = %q, want %q", got, CodeUnknown)
	}
	wrapped := fmt.Errorf("outer: %w", New(CodeCancelled, "cancelled"))
	if got := GetCode(wrapped); got != CodeCancelled {
		t.Fatalf("wrapped code = %q, want %q", got, CodeCancelled)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidEmail, http.StatusBadRequest},
		{CodeCodeMismatch, http.StatusUnauthorized},
		{CodeSignatureInvalid, http.StatusUnauthorized},
		{CodeCounterRegressed, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeNotSupported, http.StatusNotImplemented},
		{CodeNetwork, http.StatusBadGateway},
		{CodeEmailUnavailable, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !CodeNetwork.Retryable() {
		t.Fatal("expected network errors to be retryable")
	}
	if CodeUnauthorizedDomain.Retryable() {
		t.Fatal("expected configuration errors not to be retryable")
	}
}
