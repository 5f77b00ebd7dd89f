// Package campaigns runs one transition across many records as a background batch
// job. Campaigns are started through a Runner, progress in sequential batches with
// bounded concurrency inside each batch, and are kept in a Store while they run and
// after they finish.
package campaigns

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// Status is the lifecycle status of a campaign.
type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
	Cancelled Status = "cancelled"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Failed, Cancelled:
		return true
	}
	return false
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case Pending, Running, Completed, Failed, Cancelled:
		return st, true
	}
	return "", false
}

// Action is the transition applied to every selected record.
type Action struct {
	To                 products.State `json:"to"`
	Reason             string         `json:"reason,omitempty"`
	Comment            string         `json:"comment,omitempty"`
	AssignedReviewerID string         `json:"assigned_reviewer_id,omitempty"`
}

// Progress is the batch position of a campaign.
type Progress struct {
	Percentage   float64 `json:"percentage"`
	CurrentBatch int     `json:"current_batch"`
	TotalBatches int     `json:"total_batches"`
}

// ItemResult is the outcome for one record.
type ItemResult struct {
	RecordID     uuid.UUID       `json:"record_id"`
	FromState    products.State  `json:"from_state"`
	ToState      products.State  `json:"to_state"`
	Success      bool            `json:"success"`
	Errors       []outcome.Error `json:"errors,omitempty"`
	AuditEntryID *uuid.UUID      `json:"audit_entry_id,omitempty"`
}

// Campaign is one batched application of a transition.
type Campaign struct {
	ID              uuid.UUID        `json:"id"`
	Action          Action           `json:"action"`
	Filter          products.Filters `json:"filter"`
	BatchSize       int              `json:"batch_size"`
	DryRun          bool             `json:"dry_run"`
	SkipValidation  bool             `json:"skip_validation"`
	Status          Status           `json:"status"`
	CancelRequested bool             `json:"cancel_requested,omitempty"`
	TotalItems      int              `json:"total_items"`
	ProcessedItems  int              `json:"processed_items"`
	SuccessfulItems int              `json:"successful_items"`
	FailedItems     int              `json:"failed_items"`
	Progress        Progress         `json:"progress"`
	Results         []ItemResult     `json:"results"`
	Error           *string          `json:"error,omitempty"`
	CreatedBy       string           `json:"created_by"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of c safe to hand out while the run mutates c.
func (c *Campaign) Clone() *Campaign {
	cp := *c
	cp.Results = slices.Clone(c.Results)
	cp.Filter.IDs = slices.Clone(c.Filter.IDs)
	if c.Error != nil {
		e := *c.Error
		cp.Error = &e
	}
	if c.StartedAt != nil {
		t := *c.StartedAt
		cp.StartedAt = &t
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// record folds a batch of results into the counters and progress as one update.
func (c *Campaign) record(batch int, results []ItemResult) {
	c.Results = append(c.Results, results...)
	for _, r := range results {
		c.ProcessedItems++
		if r.Success {
			c.SuccessfulItems++
		} else {
			c.FailedItems++
		}
	}
	c.Progress.CurrentBatch = batch
	if c.TotalItems > 0 {
		c.Progress.Percentage = float64(c.ProcessedItems*100) / float64(c.TotalItems)
	}
}

func (c *Campaign) finish(status Status, at time.Time, msg string) {
	c.Status = status
	c.CompletedAt = &at
	if msg != "" {
		c.Error = &msg
	}
}

// StartCommand asks for a new campaign. A zero BatchSize uses the configured
// default.
type StartCommand struct {
	Action         Action           `json:"action"`
	Filter         products.Filters `json:"filter"`
	BatchSize      int              `json:"batch_size,omitempty"`
	DryRun         bool             `json:"dry_run,omitempty"`
	SkipValidation bool             `json:"skip_validation,omitempty"`
}

// Filters narrows campaign listings.
type Filters struct {
	Status    *Status `json:"status,omitempty"`
	CreatedBy *string `json:"created_by,omitempty"`
}

func totalBatches(items, size int) int {
	if size < 1 {
		return 0
	}
	return (items + size - 1) / size
}
