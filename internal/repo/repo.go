package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ogmissions/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nowTs() int64 { return time.Now().Unix() }


func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var handle, name sql.NullString
	err := row.Scan(&u.ID, &handle, &name, &u.Karma, &u.Rank, &u.IsAdmin, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	u.Handle = handle.String
	u.Name = name.String
	return u, err
}

const userColumns = `id, handle, name, karma, rank, is_admin, active, created_at`

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByHandle(ctx context.Context, handle string) (domain.User, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE handle=?`, handle))
}

// UpsertUser inserts the user or refreshes handle/name on an existing row.
// Karma, rank and flags are never touched by an upsert.
func (r Repo) UpsertUser(ctx context.Context, id int64, handle, name, baseRank string) error {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id, handle, name, karma, rank, is_admin, active, created_at)
VALUES (?,?,?,0,?,0,1,?)
ON CONFLICT(id) DO UPDATE SET handle=excluded.handle, name=excluded.name`,
		id, nullable(handle), nullable(name), baseRank, nowTs())
	return err
}

func (r Repo) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET is_admin=? WHERE id=?`, boolInt(isAdmin), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive soft-deletes (or restores) a user; rows are never removed so the
// ledger and audit trail keep their referents.
func (r Repo) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET active=? WHERE id=?`, boolInt(active), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) IsAdmin(ctx context.Context, id int64) (bool, error) {
	return scanIsAdmin(r.DB.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id=? AND active=1`, id))
}

// IsAdminTx is the in-transaction variant. The pool allows a single
// connection, so callers holding a tx must never touch the raw DB.
func (r Repo) IsAdminTx(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	return scanIsAdmin(tx.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id=? AND active=1`, id))
}

func scanIsAdmin(row *sql.Row) (bool, error) {
	var isAdmin bool
	err := row.Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	return isAdmin, err
}

// UserStats pairs a user with their count of missions still in flight.
type UserStats struct {
	domain.User
	ActiveMissions int `json:"active_missions"`
}

func (r Repo) ListUsersWithStats(ctx context.Context, page, pageSize int, pattern string) ([]UserStats, int, error) {
	if page < 1 {
		page = 1
	}
	where := "WHERE u.active=1"
	var args []any
	if pattern != "" {
		where += " AND (LOWER(u.handle) LIKE ? OR LOWER(u.name) LIKE ?)"
		p := "%" + strings.ToLower(pattern) + "%"
		args = append(args, p, p)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT u.id, u.handle, u.name, u.karma, u.rank, u.is_admin, u.active, u.created_at,
       (SELECT COUNT(1) FROM assignments a JOIN missions m ON m.id = a.mission_id
        WHERE a.assignee_id = u.id AND m.status IN ('OPEN','IN_PROGRESS','REVIEW','REWORK')) AS active_missions
FROM users u `+where+` ORDER BY u.name ASC, u.handle ASC LIMIT ? OFFSET ?`,
		append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []UserStats
	for rows.Next() {
		var s UserStats
		var handle, name sql.NullString
		if err := rows.Scan(&s.ID, &handle, &name, &s.Karma, &s.Rank, &s.IsAdmin, &s.Active, &s.CreatedAt, &s.ActiveMissions); err != nil {
			return nil, 0, err
		}
		s.Handle = handle.String
		s.Name = name.String
		res = append(res, s)
	}
	return res, total, rows.Err()
}

// Leaderboard returns up to limit users ordered by karma descending with a
// stable id-ascending tie-break, plus the bottom user.
func (r Repo) Leaderboard(ctx context.Context, limit int) ([]domain.User, *domain.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE active=1 ORDER BY karma DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	top, err := collectUsers(rows)
	if err != nil {
		return nil, nil, err
	}
	bottom, err := scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE active=1 ORDER BY karma ASC, id ASC LIMIT 1`))
	if errors.Is(err, ErrNotFound) {
		return top, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return top, &bottom, nil
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var handle, name sql.NullString
		if err := rows.Scan(&u.ID, &handle, &name, &u.Karma, &u.Rank, &u.IsAdmin, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Handle = handle.String
		u.Name = name.String
		res = append(res, u)
	}
	return res, rows.Err()
}


func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
