package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// unavailableError signals that the backend could not be reached at all
// (connection refused, DNS failure, closed socket).
type unavailableError struct{ cause error }

func (e unavailableError) Error() string { return "backend unavailable: " + e.cause.Error() }
func (e unavailableError) Unwrap() error { return e.cause }

// IsUnavailable reports whether err means the backend is unreachable.
func IsUnavailable(err error) bool {
	var ue unavailableError
	return errors.As(err, &ue)
}

// timeoutError signals that a backend call exceeded its deadline.
type timeoutError struct{ cause error }

func (e timeoutError) Error() string { return "backend call timed out: " + e.cause.Error() }
func (e timeoutError) Unwrap() error { return e.cause }

// IsTimeout reports whether err means the call ran out of time.
func IsTimeout(err error) bool {
	var te timeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// statusError carries a non-2xx HTTP status from the backend.
type statusError struct {
	status int
	body   string
}

func (e statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("backend returned status %d", e.status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.status, e.body)
}

// Status extracts the backend HTTP status from err, if it carries one.
func Status(err error) (int, bool) {
	var se statusError
	if errors.As(err, &se) {
		return se.status, true
	}
	return 0, false
}

// classify wraps a transport-level error into the package taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError{cause: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return timeoutError{cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return unavailableError{cause: err}
}
