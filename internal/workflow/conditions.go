package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
)

// ConditionInput is what a rule condition may inspect.
type ConditionInput struct {
	Record             *products.Product
	To                 products.State
	Actor              identity.Identity
	Reason             string
	AssignedReviewerID string
}

// Condition is a named predicate attached to rules. A non-nil error fails
// validation with the error text.
type Condition func(ctx context.Context, in ConditionInput) error

// DefaultConditions returns the built-in condition registry.
func DefaultConditions() map[string]Condition {
	return map[string]Condition{
		"has_category": func(_ context.Context, in ConditionInput) error {
			if strings.TrimSpace(in.Record.Category) == "" {
				return errors.New("category is required")
			}
			return nil
		},
		"has_department": func(_ context.Context, in ConditionInput) error {
			if strings.TrimSpace(in.Record.Department) == "" {
				return errors.New("department is required")
			}
			return nil
		},
		"reviewer_not_submitter": func(_ context.Context, in ConditionInput) error {
			if in.AssignedReviewerID != "" && in.AssignedReviewerID == in.Actor.ActorID {
				return errors.New("submitter cannot review their own record")
			}
			return nil
		},
		"not_self_approved": func(_ context.Context, in ConditionInput) error {
			if s := in.Record.SubmittedBy; s != nil && *s == in.Actor.ActorID {
				return errors.New("reviewer cannot decide on their own submission")
			}
			return nil
		},
	}
}
