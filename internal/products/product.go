// Package products stores catalog records and their lifecycle history. It is the
// storage collaborator of the workflow engine: records are read, listed, selected for
// campaigns and committed together with their audit entry.
package products

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is a lifecycle state of a record.
type State string

const (
	Draft     State = "DRAFT"
	Review    State = "REVIEW"
	Approved  State = "APPROVED"
	Published State = "PUBLISHED"
	Rejected  State = "REJECTED"
)

// States lists every lifecycle state.
var States = []State{Draft, Review, Approved, Published, Rejected}

// ParseState validates a state name.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case Draft, Review, Approved, Published, Rejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown lifecycle state %q", s)
}

// HistoryEntry records one state a record entered.
type HistoryEntry struct {
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	Reason    *string   `json:"reason,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
}

// Product is a catalog record under lifecycle control.
type Product struct {
	ID                 uuid.UUID      `json:"id"`
	SKU                string         `json:"sku"`
	Name               string         `json:"name"`
	Category           string         `json:"category"`
	Department         string         `json:"department"`
	Specialty          string         `json:"specialty"`
	Priority           string         `json:"priority"`
	LifecycleState     State          `json:"lifecycle_state"`
	StateHistory       []HistoryEntry `json:"state_history"`
	SubmittedBy        *string        `json:"submitted_by,omitempty"`
	SubmittedAt        *time.Time     `json:"submitted_at,omitempty"`
	ReviewedBy         *string        `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time     `json:"reviewed_at,omitempty"`
	PublishedBy        *string        `json:"published_by,omitempty"`
	PublishedAt        *time.Time     `json:"published_at,omitempty"`
	RejectionReason    *string        `json:"rejection_reason,omitempty"`
	AssignedReviewerID *string        `json:"assigned_reviewer_id,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// CurrentState returns the state of the newest history entry, or DRAFT for a record
// that never transitioned.
func (p *Product) CurrentState() State {
	if n := len(p.StateHistory); n > 0 {
		return p.StateHistory[n-1].State
	}
	return Draft
}

// Enter appends a history entry for state and sets LifecycleState to match.
func (p *Product) Enter(h HistoryEntry) {
	p.StateHistory = append(p.StateHistory, h)
	p.LifecycleState = h.State
}

// Clone returns a deep copy of p so a mutation can be prepared without touching the
// loaded record.
func (p *Product) Clone() *Product {
	c := *p
	c.StateHistory = append([]HistoryEntry(nil), p.StateHistory...)
	c.SubmittedBy = clonePtr(p.SubmittedBy)
	c.SubmittedAt = clonePtr(p.SubmittedAt)
	c.ReviewedBy = clonePtr(p.ReviewedBy)
	c.ReviewedAt = clonePtr(p.ReviewedAt)
	c.PublishedBy = clonePtr(p.PublishedBy)
	c.PublishedAt = clonePtr(p.PublishedAt)
	c.RejectionReason = clonePtr(p.RejectionReason)
	c.AssignedReviewerID = clonePtr(p.AssignedReviewerID)
	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CreateCommand carries the fields of a new record. Records start in DRAFT.
type CreateCommand struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Department string `json:"department"`
	Specialty  string `json:"specialty"`
	Priority   string `json:"priority"`
}
