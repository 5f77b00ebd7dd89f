package reviewers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/query"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "reviewers", "r").
	Project("user_id", "UserID").
	Project("display_name", "DisplayName").
	Project("availability", "Availability").
	Project("scheduled_status", "ScheduledStatus").
	Project("scheduled_start", "ScheduledStart").
	Project("scheduled_end", "ScheduledEnd").
	Project("current_assignments", "CurrentAssignments").
	Project("max_assignments", "MaxAssignments").
	Project("quality_score", "QualityScore").
	Project("rating", "Rating").
	Project("reviews_completed", "ReviewsCompleted").
	Project("approvals", "Approvals").
	Project("department", "Department").
	Project("specialties", "Specialties").
	Project("backup_reviewer_id", "BackupReviewerID").
	Project("delegate_id", "DelegateID").
	Project("delegation_start", "DelegationStart").
	Project("delegation_end", "DelegationEnd").
	Project("delegation_note", "DelegationNote").
	Project("last_assigned_at", "LastAssignedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

// returning lists the unqualified columns in projection order.
const returning = `user_id, display_name, availability, scheduled_status, scheduled_start,
	scheduled_end, current_assignments, max_assignments, quality_score, rating,
	reviews_completed, approvals, department, specialties, backup_reviewer_id, delegate_id,
	delegation_start, delegation_end, delegation_note, last_assigned_at, created_at, updated_at`

var defaultSort = []query.SortField{{Field: "UserID"}}

// Filters contains optional filtering criteria for directory listings.
type Filters struct {
	UserIDs      []string `json:"user_ids,omitempty"`
	Availability *string  `json:"availability,omitempty"`
	Department   *string  `json:"department,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	if len(f.UserIDs) > 0 {
		ids := make([]any, len(f.UserIDs))
		for i, id := range f.UserIDs {
			ids[i] = id
		}
		b.WhereIn("UserID", ids)
	}
	return b.
		WhereEquals("Availability", f.Availability).
		WhereEquals("Department", f.Department)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if v := values.Get("availability"); v != "" {
		f.Availability = &v
	}
	if v := values.Get("department"); v != "" {
		f.Department = &v
	}
	f.UserIDs = values["user_id"]
	return f
}

func scanProfile(s repository.Scanner) (Profile, error) {
	var (
		p            Profile
		availability string
		specialties  []byte

		scheduledStatus sql.NullString
		scheduledStart  sql.NullTime
		scheduledEnd    sql.NullTime

		delegateID      sql.NullString
		delegationStart sql.NullTime
		delegationEnd   sql.NullTime
		delegationNote  sql.NullString
	)

	err := s.Scan(
		&p.UserID,
		&p.DisplayName,
		&availability,
		&scheduledStatus,
		&scheduledStart,
		&scheduledEnd,
		&p.CurrentAssignments,
		&p.MaxAssignments,
		&p.QualityScore,
		&p.Rating,
		&p.ReviewsCompleted,
		&p.Approvals,
		&p.Department,
		&specialties,
		&p.BackupReviewerID,
		&delegateID,
		&delegationStart,
		&delegationEnd,
		&delegationNote,
		&p.LastAssignedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}

	p.Availability = Availability(availability)
	p.Specialties = []string{}
	if len(specialties) > 0 {
		if err := json.Unmarshal(specialties, &p.Specialties); err != nil {
			return p, fmt.Errorf("decode specialties: %w", err)
		}
	}

	if scheduledStatus.Valid {
		p.ScheduledAvailability = &Window{
			Status:  Availability(scheduledStatus.String),
			StartAt: scheduledStart.Time,
			EndAt:   scheduledEnd.Time,
		}
	}
	if delegateID.Valid {
		p.TemporaryDelegation = &Delegation{
			DelegateID: delegateID.String,
			StartAt:    delegationStart.Time,
			EndAt:      delegationEnd.Time,
			Note:       delegationNote.String,
		}
	}
	return p, nil
}
