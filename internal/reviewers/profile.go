// Package reviewers maintains the reviewer directory and selects reviewers for
// records entering review. Selection is a pure function over directory profiles so
// policies can be exercised without storage.
package reviewers

import (
	"slices"
	"time"
)

// Availability is a reviewer's working status.
type Availability string

const (
	Available Availability = "AVAILABLE"
	Busy      Availability = "BUSY"
	Away      Availability = "AWAY"
	Vacation  Availability = "VACATION"
)

// Valid reports whether a is a known status.
func (a Availability) Valid() bool {
	switch a {
	case Available, Busy, Away, Vacation:
		return true
	}
	return false
}

// Window is a scheduled availability status bounded by StartAt and EndAt.
type Window struct {
	Status  Availability `json:"status"`
	StartAt time.Time    `json:"start_at"`
	EndAt   time.Time    `json:"end_at"`
}

// Contains reports whether now falls within the window, inclusive.
func (w Window) Contains(now time.Time) bool {
	return !now.Before(w.StartAt) && !now.After(w.EndAt)
}

// Delegation redirects a reviewer's assignments to DelegateID while active.
type Delegation struct {
	DelegateID string    `json:"delegate_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Note       string    `json:"note,omitempty"`
}

// Active reports whether the delegation applies at now.
func (d *Delegation) Active(now time.Time) bool {
	return d != nil && !now.Before(d.StartAt) && !now.After(d.EndAt)
}

// Profile is a reviewer's directory entry.
type Profile struct {
	UserID                string       `json:"user_id"`
	DisplayName           string       `json:"display_name"`
	Availability          Availability `json:"availability"`
	ScheduledAvailability *Window      `json:"scheduled_availability,omitempty"`
	CurrentAssignments    int          `json:"current_assignments"`
	MaxAssignments        int          `json:"max_assignments"`
	QualityScore          float64      `json:"quality_score"`
	Rating                float64      `json:"rating"`
	ReviewsCompleted      int          `json:"reviews_completed"`
	Approvals             int          `json:"approvals"`
	Department            string       `json:"department"`
	Specialties           []string     `json:"specialties"`
	BackupReviewerID      *string      `json:"backup_reviewer_id,omitempty"`
	TemporaryDelegation   *Delegation  `json:"temporary_delegation,omitempty"`
	LastAssignedAt        *time.Time   `json:"last_assigned_at,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// AvailabilityAt returns the scheduled status while its window is open, otherwise
// the base availability.
func (p Profile) AvailabilityAt(now time.Time) Availability {
	if w := p.ScheduledAvailability; w != nil && w.Contains(now) {
		return w.Status
	}
	return p.Availability
}

// OverCapacity reports whether current assignments exceed the soft maximum.
func (p Profile) OverCapacity() bool {
	return p.CurrentAssignments > p.MaxAssignments
}

// HasSpecialty reports whether s is one of the profile's specialties.
func (p Profile) HasSpecialty(s string) bool {
	return s != "" && slices.Contains(p.Specialties, s)
}

// Summary is the workload and quality overview of one reviewer.
type Summary struct {
	UserID             string       `json:"user_id"`
	DisplayName        string       `json:"display_name"`
	Availability       Availability `json:"availability"`
	CurrentAssignments int          `json:"current_assignments"`
	MaxAssignments     int          `json:"max_assignments"`
	CapacityPercent    float64      `json:"capacity_percent"`
	ReviewsCompleted   int          `json:"reviews_completed"`
	ApprovalRate       float64      `json:"approval_rate"`
	QualityScore       float64      `json:"quality_score"`
	OverCapacity       bool         `json:"over_capacity"`
	ActiveDelegation   *Delegation  `json:"active_delegation,omitempty"`
}

// Summarize computes the summary of p at now. Capacity and approval rate are
// percentages; both are zero when their denominator is zero.
func Summarize(p Profile, now time.Time) Summary {
	s := Summary{
		UserID:             p.UserID,
		DisplayName:        p.DisplayName,
		Availability:       p.AvailabilityAt(now),
		CurrentAssignments: p.CurrentAssignments,
		MaxAssignments:     p.MaxAssignments,
		ReviewsCompleted:   p.ReviewsCompleted,
		QualityScore:       p.QualityScore,
		OverCapacity:       p.OverCapacity(),
	}
	if p.MaxAssignments > 0 {
		s.CapacityPercent = float64(p.CurrentAssignments*100) / float64(p.MaxAssignments)
	}
	if p.ReviewsCompleted > 0 {
		s.ApprovalRate = float64(p.Approvals*100) / float64(p.ReviewsCompleted)
	}
	if p.TemporaryDelegation.Active(now) {
		s.ActiveDelegation = p.TemporaryDelegation
	}
	return s
}

// RegisterCommand creates a directory entry. Availability defaults to AVAILABLE and
// MaxAssignments to 10.
type RegisterCommand struct {
	UserID         string       `json:"user_id"`
	DisplayName    string       `json:"display_name"`
	Availability   Availability `json:"availability,omitempty"`
	MaxAssignments int          `json:"max_assignments,omitempty"`
	QualityScore   float64      `json:"quality_score,omitempty"`
	Rating         float64      `json:"rating,omitempty"`
	Department     string       `json:"department"`
	Specialties    []string     `json:"specialties,omitempty"`
}

// DefaultMaxAssignments applies to registrations without a maximum.
const DefaultMaxAssignments = 10
