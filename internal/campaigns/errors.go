package campaigns

import (
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// Domain errors for campaign operations.
var (
	ErrNotFound  = outcome.New(outcome.NotFound, "campaign not found")
	ErrDuplicate = outcome.New(outcome.Conflict, "campaign already exists")
	ErrNoRecords = outcome.New(outcome.Validation, "no matching records")
	ErrTooMany   = outcome.New(outcome.CapacityExceeded, "exceeds maximum batch size")
	ErrFinished  = outcome.New(outcome.Conflict, "campaign already finished")
)

// MapHTTPStatus maps campaign errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	return outcome.HTTPStatus(err)
}
