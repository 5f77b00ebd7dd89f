package reviewers

import (
	"context"
	"time"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

// AvailabilityCommand sets a reviewer's status. With both StartAt and EndAt the
// status is scheduled for that window and the base status is kept; otherwise the base
// status is replaced and any schedule cleared.
type AvailabilityCommand struct {
	Status  Availability `json:"status"`
	StartAt *time.Time   `json:"start_at,omitempty"`
	EndAt   *time.Time   `json:"end_at,omitempty"`
}

// AvailabilityStatus reports base, scheduled and effective availability.
type AvailabilityStatus struct {
	UserID    string       `json:"user_id"`
	Effective Availability `json:"effective"`
	Base      Availability `json:"base"`
	Scheduled *Window      `json:"scheduled,omitempty"`
}

// System defines the public contract for the reviewer directory.
type System interface {
	Handler(gate *permissions.Gate, maxBody int64) *Handler

	Register(ctx context.Context, cmd RegisterCommand) (*Profile, error)
	Find(ctx context.Context, userID string) (*Profile, error)
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Profile], error)

	GetAvailability(ctx context.Context, userID string) (*AvailabilityStatus, error)
	SetAvailability(ctx context.Context, userID string, cmd AvailabilityCommand) (*Profile, error)
	SetMaxAssignments(ctx context.Context, userID string, n int) (*Profile, error)
	Summary(ctx context.Context, userID string) (*Summary, error)
	SetBackupReviewer(ctx context.Context, userID string, backupID *string) (*Profile, error)
	SetTemporaryDelegation(ctx context.Context, userID string, d *Delegation) (*Profile, error)

	// Pick selects a reviewer without recording the assignment.
	Pick(ctx context.Context, req Request) (*Selection, error)
	// Assign selects a reviewer and records the assignment against the assignee.
	Assign(ctx context.Context, req Request) (*Selection, error)

	RecordAssignment(ctx context.Context, userID string) error
	// RecordReview closes one assignment and counts a completed review.
	RecordReview(ctx context.Context, userID string, approved bool) error
}
