package api

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrInvalidCredentials is returned when login is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired is returned when the access token was rejected and
	// renewal failed or was already attempted for the call.
	ErrSessionExpired = errors.New("session expired")

	// ErrConflict is returned when a mutation is rejected because locker or
	// reservation state changed concurrently.
	ErrConflict = errors.New("locker unavailable")

	// ErrNotFound is returned when the referenced resource doesn't exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries field-level detail reported by the registration
// endpoint. Session state is never modified when one is returned.
type ValidationError struct {
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

// StatusError is returned for unexpected response codes that carry no
// auth or validation meaning. Transport-level failures are returned as-is
// from the underlying http.Client.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
