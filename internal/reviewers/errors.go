package reviewers

import (
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// Domain errors for directory and selection operations.
var (
	ErrNotFound         = outcome.New(outcome.NotFound, "reviewer not found")
	ErrDuplicate        = outcome.New(outcome.Conflict, "reviewer already registered")
	ErrNoEligible       = outcome.New(outcome.NoEligibleReviewer, "no eligible reviewer")
	ErrInvalid          = outcome.New(outcome.Validation, "invalid reviewer request")
	ErrUnknownPolicy    = outcome.New(outcome.Validation, "unknown assignment policy")
	ErrSelfSubstitution = outcome.New(outcome.Validation, "reviewer cannot substitute for themselves")
)

// MapHTTPStatus maps reviewer errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	return outcome.HTTPStatus(err)
}
