// Package common defines the error taxonomy shared by the client and the
// server. Callers should use errors.Is to match these values; concrete errors
// are produced by wrapping a sentinel with fmt.Errorf("...: %w", ...).
package common

import (
	"context"
	"errors"
)

var (
	// ErrValidation marks malformed input: blank ids, future dates,
	// out-of-range values. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNetwork marks an unreachable remote store or a timed out call.
	ErrNetwork = errors.New("network error")

	// ErrAuthentication means the remote store rejected the credentials.
	// Retried like ErrNetwork but logged distinctly.
	ErrAuthentication = errors.New("authentication error")

	// ErrPermission means the remote store denies access to the owner's data.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound marks an absent document.
	ErrNotFound = errors.New("not found")

	// ErrDatabase marks a local store failure (disk full, corruption).
	ErrDatabase = errors.New("database error")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Kind labels used in structured logs.
const (
	KindValidation     = "ValidationError"
	KindNetwork        = "NetworkError"
	KindAuthentication = "AuthenticationError"
	KindPermission     = "PermissionError"
	KindNotFound       = "NotFoundError"
	KindDatabase       = "DatabaseError"
	KindUnknown        = "UnknownError"
)

// KindOf returns the taxonomy label of err, or "" for a nil error.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDatabase):
		return KindDatabase
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether a failed remote write may succeed if repeated.
// Permission and validation failures will not; everything else might.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermission) || errors.Is(err, ErrValidation) {
		return false
	}
	// the caller gave up; retrying inside a cancelled context cannot help
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
