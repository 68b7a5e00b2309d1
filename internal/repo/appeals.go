package repo

import (
	"context"
	"database/sql"

	"ogmissions/internal/domain"
)

func (r Repo) InsertAppealTx(ctx context.Context, tx *sql.Tx, a domain.Appeal) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO appeals(author_id, original_text, reason, penalty, status, created_at) VALUES (?,?,?,?,?,?)`,
		a.AuthorID, a.OriginalText, a.Reason, a.Penalty, a.Status, a.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetAppeal(ctx context.Context, id int64) (domain.Appeal, error) {
	return r.scanAppealRow(r.DB.QueryRowContext(ctx,
		`SELECT `+appealColumns+` FROM appeals WHERE id=?`, id))
}

// LatestOpenAppealByAuthor returns the author's newest open appeal, the one a
// free-text plea attaches to.
func (r Repo) LatestOpenAppealByAuthor(ctx context.Context, authorID int64) (domain.Appeal, error) {
	return r.scanAppealRow(r.DB.QueryRowContext(ctx,
		`SELECT `+appealColumns+` FROM appeals WHERE author_id=? AND status=? ORDER BY id DESC LIMIT 1`,
		authorID, domain.AppealOpen))
}

func (r Repo) scanAppealRow(row *sql.Row) (domain.Appeal, error) {
	var a domain.Appeal
	var plea sql.NullString
	err := row.Scan(&a.ID, &a.AuthorID, &a.OriginalText, &a.Reason, &a.Penalty, &a.Status, &plea, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.Plea = plea.String
	return a, err
}

func (r Repo) ListAppeals(ctx context.Context, status string, limit int) ([]domain.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals`
	args := []any{}
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Appeal
	for rows.Next() {
		var a domain.Appeal
		var plea sql.NullString
		if err := rows.Scan(&a.ID, &a.AuthorID, &a.OriginalText, &a.Reason, &a.Penalty, &a.Status, &plea, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Plea = plea.String
		res = append(res, a)
	}
	return res, rows.Err()
}

const appealColumns = `id, author_id, original_text, reason, penalty, status, plea, created_at`

// SetAppealPlea stores the author's explanation on an open appeal.
func (r Repo) SetAppealPlea(ctx context.Context, id int64, plea string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE appeals SET plea=? WHERE id=? AND status=?`, plea, id, domain.AppealOpen)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetAppealStatusTx(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE appeals SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Pending actions hold at most one awaited free-text input per user.

func (r Repo) SetPendingAction(ctx context.Context, p domain.PendingAction) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO pending_actions(user_id, mode, mission_id, expires_at, created_at)
VALUES (?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET mode=excluded.mode, mission_id=excluded.mission_id, expires_at=excluded.expires_at, created_at=excluded.created_at`,
		p.UserID, p.Mode, nullableInt64Ptr(p.MissionID), p.ExpiresAt, p.CreatedAt)
	return err
}

// GetPendingAction returns ErrNotFound for both a missing row and an expired
// one. Expired rows are cleared lazily on read.
func (r Repo) GetPendingAction(ctx context.Context, userID, nowTs int64) (domain.PendingAction, error) {
	var p domain.PendingAction
	var missionID sql.NullInt64
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id, mode, mission_id, expires_at, created_at FROM pending_actions WHERE user_id=?`, userID).
		Scan(&p.UserID, &p.Mode, &missionID, &p.ExpiresAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if missionID.Valid {
		v := missionID.Int64
		p.MissionID = &v
	}
	if p.ExpiresAt > 0 && p.ExpiresAt <= nowTs {
		_ = r.ClearPendingAction(ctx, userID)
		return domain.PendingAction{}, ErrNotFound
	}
	return p, nil
}

func (r Repo) ClearPendingAction(ctx context.Context, userID int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM pending_actions WHERE user_id=?`, userID)
	return err
}
