package audit

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/query"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "audit_entries", "a").
	Project("id", "ID").
	Project("record_id", "RecordID").
	Project("actor_id", "ActorID").
	Project("actor_role", "ActorRole").
	Project("actor_name", "ActorName").
	Project("action", "Action").
	Project("timestamp", "Timestamp").
	Project("field_changes", "FieldChanges").
	Project("reason", "Reason").
	Project("comment", "Comment").
	Project("resulting_state", "ResultingState").
	Project("priority", "Priority").
	Project("metadata", "Metadata")

var defaultSort = []query.SortField{
	{Field: "Timestamp", Descending: true},
	{Field: "ID", Descending: true},
}

// searchFields are matched by free-text search.
var searchFields = []string{"Reason", "Comment", "Action", "ActorName"}

const dayExpr = "to_char(date_trunc('day', a.timestamp AT TIME ZONE 'UTC'), 'YYYY-MM-DD')"

// Filters contains optional filtering criteria for audit queries. Nil fields are ignored.
// From and To bound the timestamp inclusively.
type Filters struct {
	ActorID        *string    `json:"actor_id,omitempty"`
	Action         *string    `json:"action,omitempty"`
	RecordID       *string    `json:"record_id,omitempty"`
	Priority       *string    `json:"priority,omitempty"`
	ResultingState *string    `json:"state,omitempty"`
	From           *time.Time `json:"from,omitempty"`
	To             *time.Time `json:"to,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ActorID", f.ActorID).
		WhereEquals("Action", f.Action).
		WhereEquals("RecordID", f.RecordID).
		WhereEquals("Priority", f.Priority).
		WhereEquals("ResultingState", f.ResultingState).
		WhereRange("Timestamp", f.From, f.To)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// from and to are RFC 3339 timestamps.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	str := func(key string) *string {
		if v := values.Get(key); v != "" {
			return &v
		}
		return nil
	}
	f.ActorID = str("actor_id")
	f.Action = str("action")
	f.RecordID = str("record_id")
	f.Priority = str("priority")
	f.ResultingState = str("state")

	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := values.Get(key)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: %s must be RFC 3339", ErrInvalidQuery, key)
		}
		*dst = &ts
	}

	return f, nil
}

func position(e Entry) (time.Time, string) {
	return e.Timestamp, e.ID.String()
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e        Entry
		changes  []byte
		metadata []byte
		priority string
	)
	err := s.Scan(
		&e.ID,
		&e.RecordID,
		&e.ActorID,
		&e.ActorRole,
		&e.ActorName,
		&e.Action,
		&e.Timestamp,
		&changes,
		&e.Reason,
		&e.Comment,
		&e.ResultingState,
		&priority,
		&metadata,
	)
	if err != nil {
		return e, err
	}

	e.Priority = Priority(priority)
	e.FieldChanges = []FieldChange{}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &e.FieldChanges); err != nil {
			return e, fmt.Errorf("decode field changes: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return e, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return e, nil
}

func scanBucket(s repository.Scanner) (Bucket, error) {
	var b Bucket
	err := s.Scan(&b.Key, &b.Count)
	return b, err
}
