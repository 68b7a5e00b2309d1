// Package karma maintains per-user balances as a materialized sum over an
// append-only log. Every change goes through ApplyDelta so the log and the
// balance can never drift apart.
package karma

import (
	"context"
	"database/sql"
	"time"

	"ogmissions/internal/rank"
	"ogmissions/internal/repo"
)

type Ledger struct {
	DB    *sql.DB
	Ranks rank.Table
	Now   func() time.Time
}

func New(db *sql.DB, ranks rank.Table) *Ledger {
	return &Ledger{DB: db, Ranks: ranks, Now: time.Now}
}

// ApplyDelta adjusts one user's balance, appends a log entry and rewrites the
// derived rank, all in a single transaction. Returns the new balance.
func (l *Ledger) ApplyDelta(ctx context.Context, userID int64, delta int, reason string) (int, error) {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	balance, err := l.ApplyDeltaTx(ctx, tx, userID, delta, reason)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// ApplyDeltaTx is the in-transaction form used by mission transitions so the
// karma side effect commits or rolls back together with the status change.
func (l *Ledger) ApplyDeltaTx(ctx context.Context, tx *sql.Tx, userID int64, delta int, reason string) (int, error) {
	res, err := tx.ExecContext(ctx, `UPDATE users SET karma = karma + ? WHERE id=? AND active=1`, delta, userID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, repo.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO karma_log(user_id, delta, reason, created_at) VALUES (?,?,?,?)`,
		userID, delta, reason, l.Now().Unix()); err != nil {
		return 0, err
	}
	var balance int
	if err := tx.QueryRowContext(ctx, `SELECT karma FROM users WHERE id=?`, userID).Scan(&balance); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET rank=? WHERE id=?`, l.Ranks.For(balance), userID); err != nil {
		return 0, err
	}
	return balance, nil
}

// ResetAll zeroes every balance, clears the log and restores the base rank.
func (l *Ledger) ResetAll(ctx context.Context) error {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE users SET karma=0, rank=?`, l.Ranks.Base()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM karma_log`); err != nil {
		return err
	}
	return tx.Commit()
}

// Balance reads the current karma of a user.
func (l *Ledger) Balance(ctx context.Context, userID int64) (int, error) {
	var balance int
	err := l.DB.QueryRowContext(ctx, `SELECT karma FROM users WHERE id=?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, repo.ErrNotFound
	}
	return balance, err
}
