package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/repository"
)

const insertSQL = `
	INSERT INTO audit_entries(
		id, record_id, actor_id, actor_role, actor_name, action, timestamp,
		field_changes, reason, comment, resulting_state, priority, metadata
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Insert writes entry through e, which may be a transaction shared with the record
// update the entry describes. The entry is stamped first when it has no id.
func Insert(ctx context.Context, e repository.Executor, entry *Entry) error {
	Stamp(entry)

	changes, err := json.Marshal(entry.FieldChanges)
	if err != nil {
		return fmt.Errorf("encode field changes: %w", err)
	}

	var metadata any
	if entry.Metadata != nil {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = data
	}

	return repository.ExecExpectOne(
		ctx, e, insertSQL,
		entry.ID,
		entry.RecordID,
		entry.ActorID,
		entry.ActorRole,
		entry.ActorName,
		entry.Action,
		entry.Timestamp,
		changes,
		entry.Reason,
		entry.Comment,
		entry.ResultingState,
		string(entry.Priority),
		metadata,
	)
}
