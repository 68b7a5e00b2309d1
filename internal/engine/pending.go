package engine

import (
	"context"
	"fmt"
	"time"

	"ogmissions/internal/domain"
	"ogmissions/internal/repo"
)

// pendingTTL bounds how long an awaited free-text input stays valid.
const pendingTTL = 15 * time.Minute

// AwaitReportText marks that the next free text from the assignee is the
// report for the given mission. Conversational front ends set this when the
// user picks "submit report" and the text arrives as a separate message.
func (e *Engine) AwaitReportText(ctx context.Context, missionID, actorID int64) error {
	m, err := e.Repo.GetMission(ctx, missionID)
	if err != nil {
		return mapRepoErr(err)
	}
	if m.Status != domain.StatusInProgress && m.Status != domain.StatusRework {
		return fmt.Errorf("%w: mission %d is %s", ErrConflict, m.ID, m.Status)
	}
	a, err := e.Repo.GetAssignment(ctx, missionID, actorID)
	if err == repo.ErrNotFound {
		return fmt.Errorf("%w: user %d is not assigned to mission %d", ErrForbidden, actorID, missionID)
	}
	if err != nil {
		return err
	}
	if a.Status == domain.AssignmentDeclined || a.Status == domain.AssignmentDone {
		return fmt.Errorf("%w: assignment for user %d is already %s", ErrConflict, actorID, a.Status)
	}
	return e.setPending(ctx, actorID, domain.PendingReportText, &missionID)
}

// AwaitTaskText marks that the user's next free text is a new mission they
// take on themselves.
func (e *Engine) AwaitTaskText(ctx context.Context, userID int64) error {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return mapRepoErr(err)
	}
	return e.setPending(ctx, userID, domain.PendingTaskText, nil)
}

// AwaitAppealText marks that the user's next free text is the plea on their
// newest open appeal.
func (e *Engine) AwaitAppealText(ctx context.Context, userID int64) error {
	if _, err := e.Repo.LatestOpenAppealByAuthor(ctx, userID); err != nil {
		if err == repo.ErrNotFound {
			return fmt.Errorf("%w: user %d has no open appeal", ErrConflict, userID)
		}
		return err
	}
	return e.setPending(ctx, userID, domain.PendingAppealText, nil)
}

func (e *Engine) setPending(ctx context.Context, userID int64, mode string, missionID *int64) error {
	now := e.now().Unix()
	return e.Repo.SetPendingAction(ctx, domain.PendingAction{
		UserID:    userID,
		Mode:      mode,
		MissionID: missionID,
		ExpiresAt: now + int64(pendingTTL.Seconds()),
		CreatedAt: now,
	})
}

// PendingFor returns the user's awaited input, if any. Expired entries read
// as not found.
func (e *Engine) PendingFor(ctx context.Context, userID int64) (domain.PendingAction, error) {
	p, err := e.Repo.GetPendingAction(ctx, userID, e.now().Unix())
	if err != nil {
		return domain.PendingAction{}, mapRepoErr(err)
	}
	return p, nil
}

// CancelPending drops the awaited input without consuming it.
func (e *Engine) CancelPending(ctx context.Context, userID int64) error {
	return e.Repo.ClearPendingAction(ctx, userID)
}

// SubmitText consumes the user's pending action with the given free text:
// a report moves its mission to review, a task text opens a self-assigned
// mission, an appeal text lands as the plea on the open appeal. The pending
// entry is cleared first so a failed follow-up never replays the text.
func (e *Engine) SubmitText(ctx context.Context, userID int64, text string) (domain.Mission, error) {
	if text == "" {
		return domain.Mission{}, fmt.Errorf("%w: text required", ErrInvalidArgument)
	}
	p, err := e.PendingFor(ctx, userID)
	if err != nil {
		return domain.Mission{}, err
	}
	if err := e.Repo.ClearPendingAction(ctx, userID); err != nil {
		return domain.Mission{}, err
	}
	switch p.Mode {
	case domain.PendingReportText:
		return e.SubmitReport(ctx, *p.MissionID, userID, map[string]any{"text": text})
	case domain.PendingTaskText:
		return e.CreateMissionFromText(ctx, userID, text, []int64{userID})
	case domain.PendingAppealText:
		a, err := e.Repo.LatestOpenAppealByAuthor(ctx, userID)
		if err != nil {
			return domain.Mission{}, mapRepoErr(err)
		}
		if err := e.Repo.SetAppealPlea(ctx, a.ID, text); err != nil {
			return domain.Mission{}, mapRepoErr(err)
		}
		return domain.Mission{}, nil
	default:
		return domain.Mission{}, fmt.Errorf("%w: unknown pending mode %q", ErrInvalidArgument, p.Mode)
	}
}
