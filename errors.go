package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ===== error taxonomy =====

// Machine-readable error kinds surfaced to callers. Endpoint and credential
// kinds short-circuit before any session exists; the rest come out of tool
// dispatch as uniform envelopes.
const (
	kindAuthenticationMissing = "authentication_missing"
	kindAuthenticationInvalid = "authentication_invalid"
	kindConnectionFailed      = "connection_failed"
	kindMalformedEndpoint     = "malformed_endpoint"
	kindUnsupportedAPIVersion = "unsupported_api_version"
	kindUnknownOperation      = "unknown_operation"
	kindInvalidArguments      = "invalid_arguments"
	kindInternalError         = "internal_error"
)

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	cause   error
}

func (e *apiError) Error() string {
	return e.Kind + ": " + e.Message
}

func (e *apiError) Unwrap() error { return e.cause }

func apiErrorf(kind, format string, args ...any) *apiError {
	return &apiError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// errorKind extracts the machine-readable kind, defaulting to internal_error
// so unanticipated failures never leak internals through the envelope.
func errorKind(err error) string {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return kindInternalError
}

// errorEnvelope renders the uniform JSON error envelope carried inside MCP
// error results.
func errorEnvelope(err error) string {
	var ae *apiError
	if !errors.As(err, &ae) {
		ae = &apiError{Kind: kindInternalError, Message: "internal error"}
	}
	data, mErr := json.Marshal(map[string]any{"error": ae})
	if mErr != nil {
		return `{"error":{"kind":"internal_error","message":"internal error"}}`
	}
	return string(data)
}

// classifyBackendError maps a GitLab API failure onto the taxonomy. A 401
// means the credential was rejected; timeouts and unreachable hosts surface
// as connection_failed. Other statuses pass through opaquely.
func classifyBackendError(resp *gitlab.Response, err error) error {
	if err == nil {
		return nil
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return err
	}
	if resp != nil && resp.Response != nil {
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return &apiError{Kind: kindAuthenticationInvalid, Message: "GitLab rejected the credential", cause: err}
		case resp.StatusCode >= 500:
			return &apiError{
				Kind:    kindConnectionFailed,
				Message: fmt.Sprintf("GitLab returned status %d", resp.StatusCode),
				cause:   err,
			}
		default:
			// Remaining 4xx pass the backend's complaint through to the caller.
			return &apiError{
				Kind:    kindInvalidArguments,
				Message: fmt.Sprintf("GitLab returned status %d: %v", resp.StatusCode, err),
				cause:   err,
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &apiError{Kind: kindConnectionFailed, Message: "GitLab request timed out", cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &apiError{Kind: kindConnectionFailed, Message: "GitLab request canceled", cause: err}
	}
	return &apiError{Kind: kindConnectionFailed, Message: "GitLab unreachable: " + err.Error(), cause: err}
}
