package products

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/query"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "products", "p").
	Project("id", "ID").
	Project("sku", "SKU").
	Project("name", "Name").
	Project("category", "Category").
	Project("department", "Department").
	Project("specialty", "Specialty").
	Project("priority", "Priority").
	Project("lifecycle_state", "LifecycleState").
	Project("state_history", "StateHistory").
	Project("submitted_by", "SubmittedBy").
	Project("submitted_at", "SubmittedAt").
	Project("reviewed_by", "ReviewedBy").
	Project("reviewed_at", "ReviewedAt").
	Project("published_by", "PublishedBy").
	Project("published_at", "PublishedAt").
	Project("rejection_reason", "RejectionReason").
	Project("assigned_reviewer_id", "AssignedReviewerID").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

// returning lists the unqualified columns in projection order.
const returning = `id, sku, name, category, department, specialty, priority, lifecycle_state,
	state_history, submitted_by, submitted_at, reviewed_by, reviewed_at, published_by,
	published_at, rejection_reason, assigned_reviewer_id, created_at, updated_at`

var defaultSort = []query.SortField{
	{Field: "CreatedAt", Descending: true},
	{Field: "ID", Descending: true},
}

// Filters selects records for listing and campaigns. Nil and empty fields are ignored.
type Filters struct {
	IDs                []uuid.UUID `json:"ids,omitempty"`
	State              *string     `json:"state,omitempty"`
	Category           *string     `json:"category,omitempty"`
	Department         *string     `json:"department,omitempty"`
	Specialty          *string     `json:"specialty,omitempty"`
	Priority           *string     `json:"priority,omitempty"`
	AssignedReviewerID *string     `json:"assigned_reviewer_id,omitempty"`
	Name               *string     `json:"name,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	if len(f.IDs) > 0 {
		ids := make([]any, len(f.IDs))
		for i, id := range f.IDs {
			ids[i] = id
		}
		b.WhereIn("ID", ids)
	}
	return b.
		WhereEquals("LifecycleState", f.State).
		WhereEquals("Category", f.Category).
		WhereEquals("Department", f.Department).
		WhereEquals("Specialty", f.Specialty).
		WhereEquals("Priority", f.Priority).
		WhereEquals("AssignedReviewerID", f.AssignedReviewerID).
		WhereContains("Name", f.Name)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// ids is a comma separated list of record ids.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	str := func(key string) *string {
		if v := values.Get(key); v != "" {
			return &v
		}
		return nil
	}
	f.State = str("state")
	f.Category = str("category")
	f.Department = str("department")
	f.Specialty = str("specialty")
	f.Priority = str("priority")
	f.AssignedReviewerID = str("assigned_reviewer_id")
	f.Name = str("name")

	if raw := values.Get("ids"); raw != "" {
		for part := range strings.SplitSeq(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				return Filters{}, fmt.Errorf("invalid record id %q: %w", part, err)
			}
			f.IDs = append(f.IDs, id)
		}
	}

	return f, nil
}

func scanProduct(s repository.Scanner) (Product, error) {
	var (
		p       Product
		state   string
		history []byte
	)
	err := s.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Category,
		&p.Department,
		&p.Specialty,
		&p.Priority,
		&state,
		&history,
		&p.SubmittedBy,
		&p.SubmittedAt,
		&p.ReviewedBy,
		&p.ReviewedAt,
		&p.PublishedBy,
		&p.PublishedAt,
		&p.RejectionReason,
		&p.AssignedReviewerID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}

	p.LifecycleState = State(state)
	p.StateHistory = []HistoryEntry{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &p.StateHistory); err != nil {
			return p, fmt.Errorf("decode state history: %w", err)
		}
	}
	return p, nil
}
