package audit

import (
	"errors"
	"net/http"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

// Domain errors for audit operations.
var (
	ErrNotFound      = errors.New("audit entry not found")
	ErrDuplicate     = errors.New("audit entry already exists")
	ErrInvalidFormat = errors.New("unsupported export format")
	ErrInvalidQuery  = errors.New("invalid audit query")
)

// MapHTTPStatus maps audit domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidFormat),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, pagination.ErrInvalidCursor):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
