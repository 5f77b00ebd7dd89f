// Package outcome defines the typed error kinds and the result envelope shared by
// every system of the workflow engine. Failures are returned as values carrying a
// Kind so callers can render every problem without string matching.
package outcome

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	Validation          Kind = "VALIDATION_ERROR"
	PermissionDenied    Kind = "PERMISSION_DENIED"
	InvalidTransition   Kind = "INVALID_TRANSITION"
	MissingPrecondition Kind = "MISSING_PRECONDITION"
	Conflict            Kind = "CONFLICT"
	NotFound            Kind = "NOT_FOUND"
	CapacityExceeded    Kind = "CAPACITY_EXCEEDED"
	NoEligibleReviewer  Kind = "NO_ELIGIBLE_REVIEWER"
	Storage             Kind = "STORAGE_ERROR"
	Unauthenticated     Kind = "UNAUTHENTICATED"
)

// Error is a failure with a Kind and a caller-facing message.
// Err optionally holds the underlying cause.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
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

// KindOf returns the Kind of the first *Error in err's chain.
// Unclassified errors are reported as Storage since they originate in collaborators.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Storage
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusFor maps a Kind to an HTTP status code.
func StatusFor(kind Kind) int {
	switch kind {
	case Validation, MissingPrecondition:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case InvalidTransition, NoEligibleReviewer:
		return http.StatusUnprocessableEntity
	case CapacityExceeded:
		return http.StatusRequestEntityTooLarge
	case "":
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// HTTPStatus maps err to an HTTP status code via its Kind.
func HTTPStatus(err error) int {
	return StatusFor(KindOf(err))
}

// Join renders a list of errors as a single message.
func Join(errs []Error) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}
