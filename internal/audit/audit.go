// Package audit implements the append-only audit ledger for lifecycle transitions:
// entry storage, filtered search over four pagination strategies, aggregation,
// export and archival to blob storage.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Priority tags the significance of an entry.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority returns the named priority, defaulting empty input to normal.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(s); p {
	case "":
		return PriorityNormal, true
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return p, true
	}
	return "", false
}

// Entry is one immutable ledger record.
type Entry struct {
	ID             uuid.UUID      `json:"id"`
	RecordID       uuid.UUID      `json:"record_id"`
	ActorID        string         `json:"actor_id"`
	ActorRole      string         `json:"actor_role"`
	ActorName      string         `json:"actor_name"`
	Action         string         `json:"action"`
	Timestamp      time.Time      `json:"timestamp"`
	FieldChanges   []FieldChange  `json:"field_changes"`
	Reason         *string        `json:"reason,omitempty"`
	Comment        *string        `json:"comment,omitempty"`
	ResultingState string         `json:"resulting_state"`
	Priority       Priority       `json:"priority"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// FieldChange records a single field's previous and new value.
type FieldChange struct {
	Field         string          `json:"field"`
	PreviousValue json.RawMessage `json:"previous_value"`
	NewValue      json.RawMessage `json:"new_value"`
	ValueType     string          `json:"value_type"`
}

// Change builds a FieldChange, encoding both values as JSON.
func Change(field string, previous, next any, valueType string) FieldChange {
	return FieldChange{
		Field:         field,
		PreviousValue: encode(previous),
		NewValue:      encode(next),
		ValueType:     valueType,
	}
}

func encode(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// NewID returns a time-ordered entry id and the millisecond timestamp embedded in it,
// so ordering by timestamp and ordering by id agree.
func NewID() (uuid.UUID, time.Time) {
	id := uuid.Must(uuid.NewV7())
	sec, nsec := id.Time().UnixTime()
	return id, time.Unix(sec, nsec).UTC().Truncate(time.Millisecond)
}

// Stamp assigns an id and timestamp to e when it has none.
func Stamp(e *Entry) {
	if e.ID == uuid.Nil {
		e.ID, e.Timestamp = NewID()
	}
	if e.Priority == "" {
		e.Priority = PriorityNormal
	}
	if e.FieldChanges == nil {
		e.FieldChanges = []FieldChange{}
	}
}

// Bucket is one group of an aggregation.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Aggregation counts matching entries along several dimensions.
type Aggregation struct {
	Total      int      `json:"total"`
	ByAction   []Bucket `json:"by_action"`
	ByActor    []Bucket `json:"by_actor"`
	ByPriority []Bucket `json:"by_priority"`
	ByDay      []Bucket `json:"by_day"`
}

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates an export format, defaulting empty input to JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", ErrInvalidFormat
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Archive describes an export written to blob storage.
type Archive struct {
	Key       string    `json:"key"`
	Format    Format    `json:"format"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
}
