package engine

import (
	"context"
	"fmt"

	"ogmissions/internal/domain"
)

// TransitionParams carries the optional inputs of lifecycle events.
type TransitionParams struct {
	Days        int
	Report      map[string]any
	WithPenalty bool
}

// Transition dispatches a named lifecycle event. The API and the CLI both go
// through here so event names stay in one place.
func (e *Engine) Transition(ctx context.Context, missionID int64, event string, actorID int64, p TransitionParams) (domain.Mission, error) {
	switch event {
	case "accept":
		return e.Accept(ctx, missionID, actorID)
	case "decline":
		return e.Decline(ctx, missionID, actorID)
	case "report":
		return e.SubmitReport(ctx, missionID, actorID, p.Report)
	case "approve":
		return e.Approve(ctx, missionID, actorID)
	case "rework":
		return e.Rework(ctx, missionID, actorID)
	case "postpone":
		return e.Postpone(ctx, missionID, actorID, p.Days)
	case "cancel":
		return e.Cancel(ctx, missionID, actorID)
	case "cancel_admin":
		return e.CancelAdmin(ctx, missionID, actorID, p.WithPenalty)
	case "overdue":
		if err := e.requireAdmin(ctx, actorID); err != nil {
			return domain.Mission{}, err
		}
		return e.MarkOverdue(ctx, missionID)
	default:
		return domain.Mission{}, fmt.Errorf("%w: unknown event %q", ErrInvalidArgument, event)
	}
}

// MissionSummary is a mission joined with its assignments.
type MissionSummary struct {
	Mission     domain.Mission      `json:"mission"`
	Assignments []domain.Assignment `json:"assignments"`
}

func (e *Engine) Summary(ctx context.Context, missionID int64) (MissionSummary, error) {
	m, err := e.Repo.GetMission(ctx, missionID)
	if err != nil {
		return MissionSummary{}, mapRepoErr(err)
	}
	assignments, err := e.Repo.ListAssignments(ctx, missionID)
	if err != nil {
		return MissionSummary{}, err
	}
	return MissionSummary{Mission: m, Assignments: assignments}, nil
}

// ListActive returns a user's missions still in flight, newest first.
func (e *Engine) ListActive(ctx context.Context, assigneeID int64) ([]domain.Mission, error) {
	return e.Repo.ListActiveByAssignee(ctx, assigneeID)
}

// ListPage pages through all missions, newest first.
func (e *Engine) ListPage(ctx context.Context, page int) ([]domain.Mission, int, error) {
	if page < 1 {
		page = 1
	}
	return e.Repo.ListMissionsPage(ctx, page, e.Config.Missions.PageSize)
}

// ResolveAppeal closes an appeal; approval refunds the recorded penalty.
func (e *Engine) ResolveAppeal(ctx context.Context, appealID, adminID int64, approve bool) (domain.Appeal, error) {
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return domain.Appeal{}, err
	}
	a, err := e.Repo.GetAppeal(ctx, appealID)
	if err != nil {
		return domain.Appeal{}, mapRepoErr(err)
	}
	if a.Status != domain.AppealOpen {
		return a, fmt.Errorf("%w: appeal %d is already %s", ErrConflict, a.ID, a.Status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	status := domain.AppealRejected
	if approve {
		status = domain.AppealApproved
		if _, err := e.Ledger.ApplyDeltaTx(ctx, tx, a.AuthorID, -a.Penalty, fmt.Sprintf("appeal #%d approved", a.ID)); err != nil {
			return a, mapRepoErr(err)
		}
	}
	if err := e.Repo.SetAppealStatusTx(ctx, tx, a.ID, status); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "appeal.resolved", nil, &adminID, map[string]any{
		"appeal_id": a.ID,
		"status":    status,
	}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Status = status
	return a, nil
}

// AdjustKarma is the manual admin override on the ledger.
func (e *Engine) AdjustKarma(ctx context.Context, adminID, userID int64, delta int, reason string) (int, error) {
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, fmt.Errorf("%w: delta must be non-zero", ErrInvalidArgument)
	}
	balance, err := e.Ledger.ApplyDelta(ctx, userID, delta, reason)
	if err != nil {
		return 0, mapRepoErr(err)
	}
	return balance, nil
}

// ResetKarma wipes every balance. Admin only, used for season resets.
func (e *Engine) ResetKarma(ctx context.Context, adminID int64) error {
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if err := e.Ledger.ResetAll(ctx); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "karma.reset", nil, &adminID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
