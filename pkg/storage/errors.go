package storage

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// Storage failures carry outcome kinds so handlers and the audit exporter report
// them like any other lifecycle error.
var (
	ErrNotFound   = outcome.New(outcome.NotFound, "blob not found")
	ErrEmptyKey   = outcome.New(outcome.Validation, "storage key must not be empty")
	ErrInvalidKey = outcome.New(outcome.Validation, "storage key must be a relative path without '..' segments")
)

// MapHTTPStatus maps storage errors to HTTP status codes. Provider errors
// without a kind are server errors.
func MapHTTPStatus(err error) int {
	var e *outcome.Error
	if errors.As(err, &e) {
		return outcome.StatusFor(e.Kind)
	}
	return http.StatusInternalServerError
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return ErrInvalidKey
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
