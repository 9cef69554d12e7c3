package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoToken is returned when a request needs a bearer token and none is stored.
var ErrNoToken = errors.New("no authentication token")

// APIError is a non-2xx response from the API server. Message carries the
// server's own error text when it sent one.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// AuthError indicates the server rejected the token (401/403).
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%d): %s", e.Status, e.Message)
}

// IsAuthError reports whether err is a missing token or a rejected one.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrNoToken) {
		return true
	}
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsRateLimited reports whether err (or any error in its chain) is a 429.
func IsRateLimited(err error) bool {
	return statusOf(err) == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Message extracts a user-presentable message from err, falling back to
// fallback for transport-level failures.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if IsAuthError(err) {
		return ErrNoToken.Error()
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}

// errorBody is the shape of error responses from the API server. Older
// endpoints use "error", newer ones "message".
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}
