// Package api provides error types for vault API responses.
package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork wraps every transport failure (DNS, refused, reset, timeout).
	// It is never classified as an authentication error.
	ErrNetwork = errors.New("network error")

	// ErrInvalidAuthResponse is returned when a login or signup response lacks
	// the token or the user.
	ErrInvalidAuthResponse = errors.New("Invalid response from server")
)

// APIError is a non-2xx response from the vault.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// newAPIError builds an APIError from the server's message or error field.
func newAPIError(status int, message, errField string) *APIError {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = strings.TrimSpace(errField)
	}
	if msg == "" {
		msg = fmt.Sprintf("Request failed with status %d", status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

// IsNetworkError reports whether err came from the transport rather than the server.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsAuthError reports whether err means the session token is no longer usable.
//
// True for ErrInvalidAuthResponse, for a 401 response, and for any
// non-network error whose message mentions a token or auth.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidAuthResponse) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
		return true
	}

	if IsNetworkError(err) {
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "token") || strings.Contains(msg, "auth")
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
