package repo

import (
	"context"
	"database/sql"

	"ogmissions/internal/domain"
)

// JournalEntry is an event joined with human readable context for display.
type JournalEntry struct {
	domain.Event
	MissionTitle string `json:"mission_title,omitempty"`
	ActorHandle  string `json:"actor_handle,omitempty"`
}

func (r Repo) RecentEvents(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT e.id, e.mission_id, e.actor_id, e.kind, e.payload, e.created_at,
COALESCE(m.title, ''), COALESCE(u.handle, '')
FROM events e
LEFT JOIN missions m ON m.id = e.mission_id
LEFT JOIN users u ON u.id = e.actor_id
ORDER BY e.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJournal(rows)
}

func (r Repo) MissionEvents(ctx context.Context, missionID int64, limit int) ([]JournalEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT e.id, e.mission_id, e.actor_id, e.kind, e.payload, e.created_at,
COALESCE(m.title, ''), COALESCE(u.handle, '')
FROM events e
LEFT JOIN missions m ON m.id = e.mission_id
LEFT JOIN users u ON u.id = e.actor_id
WHERE e.mission_id=?
ORDER BY e.id ASC LIMIT ?`, missionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJournal(rows)
}

// EventsAfter feeds the webhook dispatcher: everything past the cursor, in
// insertion order.
func (r Repo) EventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, mission_id, actor_id, kind, payload, created_at FROM events WHERE id > ? ORDER BY id ASC LIMIT ?`,
		afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the id of the newest event, or zero when the journal
// is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func scanEvent(rows *sql.Rows) (domain.Event, error) {
	var e domain.Event
	var missionID, actorID sql.NullInt64
	var payload sql.NullString
	if err := rows.Scan(&e.ID, &missionID, &actorID, &e.Kind, &payload, &e.CreatedAt); err != nil {
		return e, err
	}
	if missionID.Valid {
		v := missionID.Int64
		e.MissionID = &v
	}
	if actorID.Valid {
		v := actorID.Int64
		e.ActorID = &v
	}
	e.Payload = payload.String
	return e, nil
}

func collectJournal(rows *sql.Rows) ([]JournalEntry, error) {
	var res []JournalEntry
	for rows.Next() {
		var j JournalEntry
		var missionID, actorID sql.NullInt64
		var payload sql.NullString
		if err := rows.Scan(&j.Event.ID, &missionID, &actorID, &j.Kind, &payload, &j.Event.CreatedAt,
			&j.MissionTitle, &j.ActorHandle); err != nil {
			return nil, err
		}
		if missionID.Valid {
			v := missionID.Int64
			j.MissionID = &v
		}
		if actorID.Valid {
			v := actorID.Int64
			j.ActorID = &v
		}
		j.Payload = payload.String
		res = append(res, j)
	}
	return res, rows.Err()
}

// KarmaHistory returns the most recent ledger rows for one user.
func (r Repo) KarmaHistory(ctx context.Context, userID int64, limit int) ([]domain.KarmaEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, delta, reason, created_at FROM karma_log WHERE user_id=? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.KarmaEntry
	for rows.Next() {
		var k domain.KarmaEntry
		if err := rows.Scan(&k.ID, &k.UserID, &k.Delta, &k.Reason, &k.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}
