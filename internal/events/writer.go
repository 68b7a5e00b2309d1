package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends audit events inside the caller's transaction so an event
// row commits or rolls back together with the state change it describes.
type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, kind string, missionID, actorID *int64, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(mission_id,actor_id,kind,payload,created_at) VALUES (?,?,?,?,?)`,
		nullableID(missionID), nullableID(actorID), kind, string(data), now().Unix())
	return err
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
