package crowd

import (
	"errors"
	"fmt"
)

// ErrorKind classifies backend call failures. Callers must handle
// KindUnavailable distinctly from KindNotFound: the former is an operation
// failure, the latter a normal empty outcome.
type ErrorKind string

const (
	// KindNotFound means the named user or group does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindInvalidCredentials means the backend rejected an authentication
	// attempt. Wrong password, unknown user and inactive account all fold
	// into this kind so the caller cannot probe for account existence.
	KindInvalidCredentials ErrorKind = "invalid_credentials"

	// KindUnavailable means the backend could not be reached or answered
	// with a server-side failure.
	KindUnavailable ErrorKind = "unavailable"
)

// Error is the typed failure returned by every backend call.
type Error struct {
	Op      string    // backend operation that failed, e.g. "find_user"
	Kind    ErrorKind // failure classification
	Message string    // human-readable detail
	Cause   error     // underlying error, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("crowd %s failed (%s)", e.Op, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a typed backend error.
func NewError(op string, kind ErrorKind, message string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the error kind, or an empty kind for non-backend errors.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsNotFound reports whether err is a backend not-found outcome.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsInvalidCredentials reports whether err is a backend credential rejection.
func IsInvalidCredentials(err error) bool {
	return KindOf(err) == KindInvalidCredentials
}

// IsUnavailable reports whether err means the backend could not serve the
// call at all. Unknown error kinds are treated as unavailable so that
// uncertainty always fails closed.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	kind := KindOf(err)
	return kind == KindUnavailable || kind == ""
}
