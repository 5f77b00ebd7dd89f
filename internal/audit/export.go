package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"time"
)

var csvHeader = []string{
	"id", "record_id", "timestamp", "actor_id", "actor_role", "actor_name",
	"action", "resulting_state", "priority", "reason", "comment", "field_changes",
}

func write(w io.Writer, entries []Entry, format Format) error {
	if format == FormatCSV {
		return writeCSV(w, entries)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func writeCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, e := range entries {
		fields := make([]string, len(e.FieldChanges))
		for i, fc := range e.FieldChanges {
			fields[i] = fc.Field
		}
		if err := cw.Write([]string{
			e.ID.String(),
			e.RecordID.String(),
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.ActorID,
			e.ActorRole,
			e.ActorName,
			e.Action,
			e.ResultingState,
			string(e.Priority),
			deref(e.Reason),
			deref(e.Comment),
			strings.Join(fields, ";"),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
