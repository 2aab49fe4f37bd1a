package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so the transport layer can pick a status code
// and clients can decide whether a retry makes sense.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindInvalidState
	KindInvalidTransition
	KindInsufficientCapacity
	KindUnavailable
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindInvalidTransition:
		return "INVALID_TRANSITION"
	case KindInsufficientCapacity:
		return "INSUFFICIENT_CAPACITY"
	case KindUnavailable:
		return "UNAVAILABLE"
	}
	return "UNKNOWN"
}

// Error is the domain error carried across service boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation signals malformed input; the caller should fix the request and retry.
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound signals that a referenced entity does not exist.
func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidState signals an operation that is not allowed given the entity's
// current lifecycle state.
func InvalidState(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransition signals a disallowed edge in a status transition table.
func InvalidTransition(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// InsufficientCapacity signals a lost capacity race; retrying with a smaller
// quantity or a different ticket option is safe.
func InsufficientCapacity(format string, args ...interface{}) error {
	return &Error{Kind: KindInsufficientCapacity, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a storage or transport failure. The whole operation is
// safe to retry because nothing was partially applied.
func Unavailable(err error, message string) error {
	return &Error{Kind: KindUnavailable, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain, KindUnknown if none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindInvalidTransition, KindInsufficientCapacity:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
