package gateway

import (
	"errors"

	"gatewayd/internal/backend"
)

// Stable classification strings attached to every failure so clients can
// cross-reference against metrics and logs.
const (
	ClassClientError  = "client_error"
	ClassUnavailable  = "backend_unavailable"
	ClassBackendError = "backend_error"
	ClassTimeout      = "timeout"
	ClassInternal     = "internal"
)

// clientError signals malformed input. It never reaches the backend and is
// never counted as a backend failure.
type clientError struct{ msg string }

func (e clientError) Error() string { return e.msg }

// ErrClient constructs a client-input error.
func ErrClient(msg string) error { return clientError{msg: msg} }

// IsClientError reports whether err was caused by malformed client input.
func IsClientError(err error) bool {
	var ce clientError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err means the backend call ran out of time.
func IsTimeout(err error) bool { return backend.IsTimeout(err) }

// IsUnavailable reports whether err means the backend is unreachable.
func IsUnavailable(err error) bool { return backend.IsUnavailable(err) }

// IsBackendError reports whether err carries a backend HTTP error status.
func IsBackendError(err error) bool {
	_, ok := backend.Status(err)
	return ok
}

// Classify maps err to its stable classification string.
func Classify(err error) string {
	switch {
	case IsClientError(err):
		return ClassClientError
	case IsTimeout(err):
		return ClassTimeout
	case IsUnavailable(err):
		return ClassUnavailable
	case IsBackendError(err):
		return ClassBackendError
	default:
		return ClassInternal
	}
}
