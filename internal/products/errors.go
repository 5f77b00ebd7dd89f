package products

import (
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// Domain errors for record operations.
var (
	ErrNotFound  = outcome.New(outcome.NotFound, "record not found")
	ErrDuplicate = outcome.New(outcome.Conflict, "record with this sku already exists")
	ErrConflict  = outcome.New(outcome.Conflict, "record was modified concurrently")
	ErrInvalid   = outcome.New(outcome.Validation, "sku and name are required")
)

// MapHTTPStatus maps record errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	return outcome.HTTPStatus(err)
}
