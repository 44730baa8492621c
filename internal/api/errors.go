package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// SessionExpiredMessage is shown to the user when a token refresh fails.
const SessionExpiredMessage = "Session expired. Please login again."

var (
	// ErrUnauthorized matches any 401 reply. When returned from Execute it
	// means no refresh was possible.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired matches the error returned after a failed refresh.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned by wrappers that need a session when none exists.
	ErrNotAuthenticated = errors.New("not logged in")
)

// APIError is a non-2xx reply from the remote API.
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error (status %d)", e.StatusCode)
}

// Is lets errors.Is(err, ErrUnauthorized) recognise 401 replies.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// SessionExpiredError is returned when the refresh endpoint rejected the
// refresh token. The session has already been cleared.
type SessionExpiredError struct{}

func (*SessionExpiredError) Error() string { return SessionExpiredMessage }

func (*SessionExpiredError) Is(target error) bool { return target == ErrSessionExpired }

// IsTransient reports whether err is a failure unrelated to authentication:
// transport errors, server errors, validation errors and decode errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// StatusCode extracts the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
