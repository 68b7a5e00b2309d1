package repo

import (
	"context"
	"database/sql"

	"ogmissions/internal/domain"
)

func scanAssignment(row missionScanner) (domain.Assignment, error) {
	var a domain.Assignment
	var report sql.NullString
	var doneAt sql.NullInt64
	err := row.Scan(&a.ID, &a.MissionID, &a.AssigneeID, &a.Status, &report, &a.CreatedAt, &doneAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if report.Valid {
		v := report.String
		a.ReportJSON = &v
	}
	if doneAt.Valid {
		v := doneAt.Int64
		a.DoneAt = &v
	}
	return a, nil
}

const assignmentColumns = `id, mission_id, assignee_id, status, report_json, created_at, done_at`

func (r Repo) InsertAssignmentTx(ctx context.Context, tx *sql.Tx, a domain.Assignment) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO assignments(mission_id, assignee_id, status, created_at) VALUES (?,?,?,?)`,
		a.MissionID, a.AssigneeID, a.Status, a.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetAssignment(ctx context.Context, missionID, assigneeID int64) (domain.Assignment, error) {
	return scanAssignment(r.DB.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE mission_id=? AND assignee_id=?`, missionID, assigneeID))
}

func (r Repo) GetAssignmentTx(ctx context.Context, tx *sql.Tx, missionID, assigneeID int64) (domain.Assignment, error) {
	return scanAssignment(tx.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE mission_id=? AND assignee_id=?`, missionID, assigneeID))
}

func (r Repo) ListAssignments(ctx context.Context, missionID int64) ([]domain.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE mission_id=? ORDER BY id ASC`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) ListAssignmentsTx(ctx context.Context, tx *sql.Tx, missionID int64) ([]domain.Assignment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE mission_id=? ORDER BY id ASC`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAssignmentStatusTx(ctx context.Context, tx *sql.Tx, missionID, assigneeID int64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE assignments SET status=? WHERE mission_id=? AND assignee_id=?`,
		status, missionID, assigneeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetReportTx(ctx context.Context, tx *sql.Tx, missionID, assigneeID int64, reportJSON string) error {
	res, err := tx.ExecContext(ctx, `UPDATE assignments SET report_json=? WHERE mission_id=? AND assignee_id=?`,
		reportJSON, missionID, assigneeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetAssignmentDoneTx(ctx context.Context, tx *sql.Tx, missionID, assigneeID, ts int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE assignments SET status=?, done_at=? WHERE mission_id=? AND assignee_id=?`,
		domain.AssignmentDone, ts, missionID, assigneeID)
	return err
}
