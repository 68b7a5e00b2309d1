package repo

import (
	"context"
	"database/sql"

	"ogmissions/internal/domain"
)

const missionColumns = `id, title, description, author_id, deadline_ts, difficulty, difficulty_label, status, reminder_stage, extension_count, created_at, closed_at`

type missionScanner interface {
	Scan(dest ...any) error
}

func scanMission(row missionScanner) (domain.Mission, error) {
	var m domain.Mission
	var deadline, closed sql.NullInt64
	var description, label sql.NullString
	err := row.Scan(&m.ID, &m.Title, &description, &m.AuthorID, &deadline, &m.Difficulty,
		&label, &m.Status, &m.ReminderStage, &m.ExtensionCount, &m.CreatedAt, &closed)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.Description = description.String
	m.DifficultyLabel = label.String
	if deadline.Valid {
		v := deadline.Int64
		m.DeadlineTs = &v
	}
	if closed.Valid {
		v := closed.Int64
		m.ClosedAt = &v
	}
	return m, nil
}

func (r Repo) InsertMissionTx(ctx context.Context, tx *sql.Tx, m domain.Mission) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO missions(title, description, author_id, deadline_ts, difficulty, difficulty_label, status, reminder_stage, extension_count, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.Title, nullable(m.Description), m.AuthorID, nullableInt64Ptr(m.DeadlineTs), m.Difficulty,
		nullable(m.DifficultyLabel), m.Status, m.ReminderStage, m.ExtensionCount, m.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetMission(ctx context.Context, id int64) (domain.Mission, error) {
	return scanMission(r.DB.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=?`, id))
}

func (r Repo) GetMissionTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Mission, error) {
	return scanMission(tx.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=?`, id))
}

func (r Repo) UpdateMissionStatusTx(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE missions SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetClosedAtTx(ctx context.Context, tx *sql.Tx, id, ts int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE missions SET closed_at=? WHERE id=?`, ts, id)
	return err
}

// SetDeadlineTx moves the deadline and bumps the extension counter in one
// statement so a postponed mission never loses its history.
func (r Repo) SetDeadlineTx(ctx context.Context, tx *sql.Tx, id, deadlineTs int64, bumpExtension bool) error {
	bump := 0
	if bumpExtension {
		bump = 1
	}
	res, err := tx.ExecContext(ctx, `UPDATE missions SET deadline_ts=?, extension_count=extension_count+?, reminder_stage='' WHERE id=?`,
		deadlineTs, bump, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetReminderStageTx(ctx context.Context, tx *sql.Tx, id int64, stage string) error {
	_, err := tx.ExecContext(ctx, `UPDATE missions SET reminder_stage=? WHERE id=?`, stage, id)
	return err
}

func (r Repo) ListActiveByAssignee(ctx context.Context, assigneeID int64) ([]domain.Mission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+prefixedMissionColumns+` FROM missions m
JOIN assignments a ON a.mission_id = m.id
WHERE a.assignee_id=? AND a.status IN ('assigned','accepted') AND m.status IN (`+activeStatusPlaceholders+`)
ORDER BY m.id DESC`, assigneeArgs(assigneeID)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMissions(rows)
}

func (r Repo) CountActiveByAssignee(ctx context.Context, assigneeID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM missions m
JOIN assignments a ON a.mission_id = m.id
WHERE a.assignee_id=? AND a.status IN ('assigned','accepted') AND m.status IN (`+activeStatusPlaceholders+`)`,
		assigneeArgs(assigneeID)...).Scan(&n)
	return n, err
}

func (r Repo) ListMissionsPage(ctx context.Context, page, pageSize int) ([]domain.Mission, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM missions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+missionColumns+` FROM missions ORDER BY id DESC LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res, err := collectMissions(rows)
	return res, total, err
}

// ListActiveWithDeadline returns every mission the reminder sweep has to
// look at. Missions without a deadline never generate reminders.
func (r Repo) ListActiveWithDeadline(ctx context.Context) ([]domain.Mission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+missionColumns+` FROM missions
WHERE deadline_ts IS NOT NULL AND status IN ('OPEN','IN_PROGRESS','REVIEW','REWORK')
ORDER BY deadline_ts ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMissions(rows)
}

const prefixedMissionColumns = `m.id, m.title, m.description, m.author_id, m.deadline_ts, m.difficulty, m.difficulty_label, m.status, m.reminder_stage, m.extension_count, m.created_at, m.closed_at`

const activeStatusPlaceholders = `?,?,?,?`

func assigneeArgs(assigneeID int64) []any {
	args := []any{assigneeID}
	for _, s := range domain.ActiveStatuses {
		args = append(args, s)
	}
	return args
}

func collectMissions(rows *sql.Rows) ([]domain.Mission, error) {
	var res []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
