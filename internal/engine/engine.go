// Package engine implements the mission lifecycle. Every transition runs in
// a single transaction that updates the mission row, the assignments, the
// karma ledger and the audit trail together, so a karma side effect is
// applied exactly once per transition.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ogmissions/internal/clock"
	"ogmissions/internal/config"
	"ogmissions/internal/domain"
	"ogmissions/internal/estimate"
	"ogmissions/internal/events"
	"ogmissions/internal/karma"
	"ogmissions/internal/notify"
	"ogmissions/internal/repo"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Ledger    *karma.Ledger
	Config    *config.Config
	Estimator estimate.Estimator
	Clock     clock.Clock
	Notify    notify.Notifier
	Logger    *slog.Logger
	Metrics   *Metrics

	mu       sync.Mutex
	missions map[int64]*sync.Mutex
}

func New(db *sql.DB, cfg *config.Config) *Engine {
	c := clock.New(cfg.Location())
	ledger := karma.New(db, cfg.RankTable())
	est := estimate.New()
	est.UrgencyBonus = cfg.Karma.UrgencyBonus
	return &Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{},
		Ledger:    ledger,
		Config:    cfg,
		Estimator: est,
		Clock:     c,
		Notify:    notify.LogNotifier{},
		Logger:    slog.Default(),
		missions:  map[int64]*sync.Mutex{},
	}
}

// SetNow pins the clock for the engine and the ledger. Test hook.
func (e *Engine) SetNow(now func() time.Time) {
	e.Clock.Now = now
	e.Ledger.Now = now
	e.Events.Now = now
}

func (e *Engine) now() time.Time {
	return e.Clock.Now()
}

// lockMission serializes transitions per mission so two concurrent calls
// cannot both observe the same pre-transition status.
func (e *Engine) lockMission(id int64) func() {
	e.mu.Lock()
	m, ok := e.missions[id]
	if !ok {
		m = &sync.Mutex{}
		e.missions[id] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Metrics counts lifecycle activity. Optional; a nil Metrics is a no-op.
type Metrics struct {
	Transitions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ogm_mission_transitions_total",
				Help: "Mission lifecycle transitions by event and outcome.",
			},
			[]string{"event", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions)
	}
	return m
}

func (e *Engine) countTransition(event string, err error) {
	if e.Metrics == nil || e.Metrics.Transitions == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.Metrics.Transitions.WithLabelValues(event, outcome).Inc()
}

// MissionCreateOptions are parameters for creating a mission.
type MissionCreateOptions struct {
	Title       string
	Description string
	AuthorID    int64
	AssigneeIDs []int64
	DeadlineTs  *int64
	// Difficulty 0 means estimate from the title and description.
	Difficulty int
}

func (e *Engine) CreateMission(ctx context.Context, opts MissionCreateOptions) (domain.Mission, error) {
	if opts.Title == "" {
		return domain.Mission{}, fmt.Errorf("%w: title required", ErrInvalidArgument)
	}
	if len(opts.AssigneeIDs) == 0 {
		return domain.Mission{}, fmt.Errorf("%w: at least one assignee required", ErrInvalidArgument)
	}
	author, err := e.Repo.GetUser(ctx, opts.AuthorID)
	if err != nil {
		return domain.Mission{}, mapRepoErr(err)
	}
	for _, id := range opts.AssigneeIDs {
		if _, err := e.Repo.GetUser(ctx, id); err != nil {
			return domain.Mission{}, mapRepoErr(err)
		}
		n, err := e.Repo.CountActiveByAssignee(ctx, id)
		if err != nil {
			return domain.Mission{}, err
		}
		if n >= e.Config.Missions.ActiveLimit && !author.IsAdmin {
			return domain.Mission{}, fmt.Errorf("%w: user %d already has %d active missions", ErrConflict, id, n)
		}
	}

	difficulty := opts.Difficulty
	dueToday := opts.DeadlineTs != nil && e.Clock.SameDay(*opts.DeadlineTs)
	est := e.Estimator.Estimate(opts.Title+" "+opts.Description, dueToday)
	if difficulty == 0 {
		difficulty = est.Difficulty
	}
	if difficulty < 1 || difficulty > 5 {
		return domain.Mission{}, fmt.Errorf("%w: difficulty must be 1..5", ErrInvalidArgument)
	}

	now := e.now().Unix()
	m := domain.Mission{
		Title:           opts.Title,
		Description:     opts.Description,
		AuthorID:        opts.AuthorID,
		DeadlineTs:      opts.DeadlineTs,
		Difficulty:      difficulty,
		DifficultyLabel: estimate.Label(difficulty),
		Status:          domain.StatusOpen,
		ReminderStage:   domain.StageNone,
		CreatedAt:       now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()

	m.ID, err = e.Repo.InsertMissionTx(ctx, tx, m)
	if err != nil {
		return domain.Mission{}, fmt.Errorf("insert mission: %w", err)
	}
	for _, id := range opts.AssigneeIDs {
		if _, err := e.Repo.InsertAssignmentTx(ctx, tx, domain.Assignment{
			MissionID:  m.ID,
			AssigneeID: id,
			Status:     domain.AssignmentAssigned,
			CreatedAt:  now,
		}); err != nil {
			return domain.Mission{}, fmt.Errorf("insert assignment: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "mission.created", &m.ID, &opts.AuthorID, events.EventPayload{
		"difficulty": difficulty,
		"assignees":  opts.AssigneeIDs,
	}); err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	e.countTransition("create", nil)

	for _, id := range opts.AssigneeIDs {
		e.notifyUser(ctx, id, fmt.Sprintf("New mission #%d: %s (%s, reward %d)", m.ID, m.Title, m.DifficultyLabel, difficulty))
	}
	return m, nil
}

// CreateMissionFromText estimates a free-text submission and either opens a
// mission or, when the validity gate rejects the text, applies the fixed
// penalty and records an appeal the author can contest.
func (e *Engine) CreateMissionFromText(ctx context.Context, authorID int64, text string, assigneeIDs []int64) (domain.Mission, error) {
	v := e.Estimator.Check(text)
	if !v.Valid {
		if err := e.recordInvalidSubmission(ctx, authorID, text, v.Violation); err != nil {
			return domain.Mission{}, err
		}
		return domain.Mission{}, fmt.Errorf("%w: %s", ErrInvalidArgument, v.Violation)
	}
	deadline := e.Clock.ParseDeadline(text)
	return e.CreateMission(ctx, MissionCreateOptions{
		Title:       text,
		AuthorID:    authorID,
		AssigneeIDs: assigneeIDs,
		DeadlineTs:  deadline,
	})
}

func (e *Engine) recordInvalidSubmission(ctx context.Context, authorID int64, text, violation string) error {
	penalty := e.Config.Karma.InvalidTaskPenalty
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := e.Ledger.ApplyDeltaTx(ctx, tx, authorID, penalty, "invalid mission text"); err != nil {
		return mapRepoErr(err)
	}
	appealID, err := e.Repo.InsertAppealTx(ctx, tx, domain.Appeal{
		AuthorID:     authorID,
		OriginalText: text,
		Reason:       violation,
		Penalty:      penalty,
		Status:       domain.AppealOpen,
		CreatedAt:    e.now().Unix(),
	})
	if err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "mission.rejected_text", nil, &authorID, events.EventPayload{
		"violation": violation,
		"appeal_id": appealID,
		"penalty":   penalty,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Accept moves an offered mission into work.
func (e *Engine) Accept(ctx context.Context, missionID, actorID int64) (domain.Mission, error) {
	m, err := e.transition(ctx, "accept", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if m.Status != domain.StatusOpen {
			return m, fmt.Errorf("%w: mission %d is %s, not %s", ErrConflict, m.ID, m.Status, domain.StatusOpen)
		}
		if err := e.requireAssignee(ctx, tx, m.ID, actorID); err != nil {
			return m, err
		}
		if err := e.Repo.UpdateMissionStatusTx(ctx, tx, m.ID, domain.StatusInProgress); err != nil {
			return m, err
		}
		if err := e.Repo.UpdateAssignmentStatusTx(ctx, tx, m.ID, actorID, domain.AssignmentAccepted); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.accepted", &m.ID, &actorID, nil); err != nil {
			return m, err
		}
		m.Status = domain.StatusInProgress
		return m, nil
	})
	if err != nil {
		return m, err
	}
	e.notifyUser(ctx, m.AuthorID, fmt.Sprintf("Mission #%d %q was accepted by user %d.", m.ID, m.Title, actorID))
	return m, nil
}

// Decline refuses an offered mission. Household chores carry a heavier,
// difficulty-tiered penalty than creative work.
func (e *Engine) Decline(ctx context.Context, missionID, actorID int64) (domain.Mission, error) {
	return e.transition(ctx, "decline", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if m.Status != domain.StatusOpen && m.Status != domain.StatusInProgress {
			return m, fmt.Errorf("%w: mission %d is %s", ErrConflict, m.ID, m.Status)
		}
		if err := e.requireAssignee(ctx, tx, m.ID, actorID); err != nil {
			return m, err
		}
		penalty := e.Config.Karma.DeclinePenalty
		if estimate.IsHousehold(m.Title + " " + m.Description) {
			penalty = e.Config.HouseholdDeclinePenalty(m.Difficulty)
		}
		if _, err := e.Ledger.ApplyDeltaTx(ctx, tx, actorID, penalty, fmt.Sprintf("declined mission #%d", m.ID)); err != nil {
			return m, mapRepoErr(err)
		}
		if err := e.Repo.UpdateMissionStatusTx(ctx, tx, m.ID, domain.StatusDeclined); err != nil {
			return m, err
		}
		if err := e.Repo.SetClosedAtTx(ctx, tx, m.ID, e.now().Unix()); err != nil {
			return m, err
		}
		if err := e.Repo.UpdateAssignmentStatusTx(ctx, tx, m.ID, actorID, domain.AssignmentDeclined); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.declined", &m.ID, &actorID, events.EventPayload{"penalty": penalty}); err != nil {
			return m, err
		}
		m.Status = domain.StatusDeclined
		return m, nil
	})
}

// SubmitReport moves a mission to review with the assignee's report attached.
func (e *Engine) SubmitReport(ctx context.Context, missionID, actorID int64, report map[string]any) (domain.Mission, error) {
	return e.transition(ctx, "report", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if m.Status != domain.StatusInProgress && m.Status != domain.StatusRework {
			return m, fmt.Errorf("%w: mission %d is %s", ErrConflict, m.ID, m.Status)
		}
		if err := e.requireAssignee(ctx, tx, m.ID, actorID); err != nil {
			return m, err
		}
		if report != nil {
			data, err := json.Marshal(report)
			if err != nil {
				return m, fmt.Errorf("%w: report: %v", ErrInvalidArgument, err)
			}
			if err := e.Repo.SetReportTx(ctx, tx, m.ID, actorID, string(data)); err != nil {
				return m, err
			}
		}
		if err := e.Repo.UpdateMissionStatusTx(ctx, tx, m.ID, domain.StatusReview); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.review", &m.ID, &actorID, nil); err != nil {
			return m, err
		}
		m.Status = domain.StatusReview
		return m, nil
	})
}

// Approve accepts the submitted work and pays out the reward once.
func (e *Engine) Approve(ctx context.Context, missionID, adminID int64) (domain.Mission, error) {
	return e.transition(ctx, "approve", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if err := e.requireAdminTx(ctx, tx, adminID); err != nil {
			return m, err
		}
		if m.Status != domain.StatusReview {
			return m, fmt.Errorf("%w: mission %d is %s, not %s", ErrConflict, m.ID, m.Status, domain.StatusReview)
		}
		reward := m.Difficulty
		now := e.now().Unix()
		assignees, err := e.activeAssignees(ctx, tx, m.ID)
		if err != nil {
			return m, err
		}
		for _, id := range assignees {
			if _, err := e.Ledger.ApplyDeltaTx(ctx, tx, id, reward, fmt.Sprintf("mission #%d approved", m.ID)); err != nil {
				return m, mapRepoErr(err)
			}
			if err := e.Repo.SetAssignmentDoneTx(ctx, tx, m.ID, id, now); err != nil {
				return m, err
			}
		}
		if err := e.Repo.UpdateMissionStatusTx(ctx, tx, m.ID, domain.StatusDone); err != nil {
			return m, err
		}
		if err := e.Repo.SetClosedAtTx(ctx, tx, m.ID, now); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.approved", &m.ID, &adminID, events.EventPayload{"reward": reward}); err != nil {
			return m, err
		}
		m.Status = domain.StatusDone
		m.ClosedAt = &now
		return m, nil
	})
}

// Rework sends reviewed work back, charges the fixed penalty and grants a
// grace day on the deadline so the reminder ladder starts over.
func (e *Engine) Rework(ctx context.Context, missionID, adminID int64) (domain.Mission, error) {
	return e.transition(ctx, "rework", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if err := e.requireAdminTx(ctx, tx, adminID); err != nil {
			return m, err
		}
		if m.Status != domain.StatusReview {
			return m, fmt.Errorf("%w: mission %d is %s, not %s", ErrConflict, m.ID, m.Status, domain.StatusReview)
		}
		assignees, err := e.activeAssignees(ctx, tx, m.ID)
		if err != nil {
			return m, err
		}
		for _, id := range assignees {
			if _, err := e.Ledger.ApplyDeltaTx(ctx, tx, id, e.Config.Karma.ReworkPenalty, fmt.Sprintf("mission #%d sent to rework", m.ID)); err != nil {
				return m, mapRepoErr(err)
			}
		}
		if m.DeadlineTs != nil {
			grace := *m.DeadlineTs + int64(e.Config.Missions.ReworkGraceDays)*86400
			if err := e.Repo.SetDeadlineTx(ctx, tx, m.ID, grace, false); err != nil {
				return m, err
			}
			m.DeadlineTs = &grace
		}
		if err := e.Repo.UpdateMissionStatusTx(ctx, tx, m.ID, domain.StatusRework); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.rework", &m.ID, &adminID, nil); err != nil {
			return m, err
		}
		m.Status = domain.StatusRework
		m.ReminderStage = domain.StageNone
		return m, nil
	})
}

// Postpone shifts the deadline by one to three days. The first day is free,
// each further day costs karma, and the extension counter feeds the harsher
// overdue penalty later.
func (e *Engine) Postpone(ctx context.Context, missionID, actorID int64, days int) (domain.Mission, error) {
	return e.transition(ctx, "postpone", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if m.Status != domain.StatusOpen && m.Status != domain.StatusInProgress {
			return m, fmt.Errorf("%w: mission %d is %s", ErrConflict, m.ID, m.Status)
		}
		if err := e.requireAssignee(ctx, tx, m.ID, actorID); err != nil {
			return m, err
		}
		if m.DeadlineTs == nil {
			return m, fmt.Errorf("%w: mission %d has no deadline", ErrInvalidArgument, m.ID)
		}
		penalty, ok := e.Config.PostponePenalty(days)
		if !ok {
			return m, fmt.Errorf("%w: postpone days must be 1..3", ErrInvalidArgument)
		}
		if penalty != 0 {
			if _, err := e.Ledger.ApplyDeltaTx(ctx, tx, actorID, penalty, fmt.Sprintf("postponed mission #%d by %dd", m.ID, days)); err != nil {
				return m, mapRepoErr(err)
			}
		}
		moved := *m.DeadlineTs + int64(days)*86400
		if err := e.Repo.SetDeadlineTx(ctx, tx, m.ID, moved, true); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.postponed", &m.ID, &actorID, events.EventPayload{
			"days":    days,
			"penalty": penalty,
		}); err != nil {
			return m, err
		}
		m.DeadlineTs = &moved
		m.ExtensionCount++
		m.ReminderStage = domain.StageNone
		return m, nil
	})
}

// Cancel lets the author withdraw their own mission before work started.
func (e *Engine) Cancel(ctx context.Context, missionID, actorID int64) (domain.Mission, error) {
	return e.transition(ctx, "cancel", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if m.AuthorID != actorID {
			return m, fmt.Errorf("%w: only the author can cancel mission %d", ErrForbidden, m.ID)
		}
		if m.Status != domain.StatusOpen {
			return m, fmt.Errorf("%w: mission %d is %s, not %s", ErrConflict, m.ID, m.Status, domain.StatusOpen)
		}
		if err := e.Repo.UpdateMissionStatusTx(ctx, tx, m.ID, domain.StatusCancelled); err != nil {
			return m, err
		}
		if err := e.Repo.SetClosedAtTx(ctx, tx, m.ID, e.now().Unix()); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.cancelled", &m.ID, &actorID, nil); err != nil {
			return m, err
		}
		m.Status = domain.StatusCancelled
		return m, nil
	})
}

// CancelAdmin removes a mission in any active state. With penalty enabled the
// assignees are charged the admin-delete fine.
func (e *Engine) CancelAdmin(ctx context.Context, missionID, adminID int64, withPenalty bool) (domain.Mission, error) {
	return e.transition(ctx, "cancel_admin", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if err := e.requireAdminTx(ctx, tx, adminID); err != nil {
			return m, err
		}
		if !domain.IsActiveStatus(m.Status) {
			return m, fmt.Errorf("%w: mission %d is %s", ErrConflict, m.ID, m.Status)
		}
		if withPenalty {
			assignees, err := e.activeAssignees(ctx, tx, m.ID)
			if err != nil {
				return m, err
			}
			for _, id := range assignees {
				if _, err := e.Ledger.ApplyDeltaTx(ctx, tx, id, e.Config.Karma.AdminDeletePenalty, fmt.Sprintf("mission #%d removed", m.ID)); err != nil {
					return m, mapRepoErr(err)
				}
			}
		}
		if err := e.Repo.UpdateMissionStatusTx(ctx, tx, m.ID, domain.StatusCancelledAdmin); err != nil {
			return m, err
		}
		if err := e.Repo.SetClosedAtTx(ctx, tx, m.ID, e.now().Unix()); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.cancelled_admin", &m.ID, &adminID, events.EventPayload{"penalty": withPenalty}); err != nil {
			return m, err
		}
		m.Status = domain.StatusCancelledAdmin
		return m, nil
	})
}

// MarkOverdue closes a mission whose deadline passed. Idempotent: once the
// reminder stage says overdue the call is a no-op, so a crashed sweep can be
// retried without double-charging anyone.
func (e *Engine) MarkOverdue(ctx context.Context, missionID int64) (domain.Mission, error) {
	return e.transition(ctx, "overdue", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if m.ReminderStage == domain.StageOverdue || m.Status == domain.StatusOverdue {
			return m, nil
		}
		if !domain.IsActiveStatus(m.Status) {
			return m, fmt.Errorf("%w: mission %d is %s", ErrConflict, m.ID, m.Status)
		}
		if m.DeadlineTs == nil || *m.DeadlineTs > e.now().Unix() {
			return m, fmt.Errorf("%w: mission %d is not past its deadline", ErrConflict, m.ID)
		}
		penalty := e.Config.Karma.OverduePenalty
		if m.ExtensionCount >= 1 {
			penalty = e.Config.Karma.OverduePenaltyExtended
		}
		assignees, err := e.activeAssignees(ctx, tx, m.ID)
		if err != nil {
			return m, err
		}
		for _, id := range assignees {
			if _, err := e.Ledger.ApplyDeltaTx(ctx, tx, id, penalty, fmt.Sprintf("mission #%d overdue", m.ID)); err != nil {
				return m, mapRepoErr(err)
			}
		}
		if err := e.Repo.UpdateMissionStatusTx(ctx, tx, m.ID, domain.StatusOverdue); err != nil {
			return m, err
		}
		if err := e.Repo.SetReminderStageTx(ctx, tx, m.ID, domain.StageOverdue); err != nil {
			return m, err
		}
		if err := e.Repo.SetClosedAtTx(ctx, tx, m.ID, e.now().Unix()); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.overdue", &m.ID, nil, events.EventPayload{"penalty": penalty}); err != nil {
			return m, err
		}
		m.Status = domain.StatusOverdue
		m.ReminderStage = domain.StageOverdue
		return m, nil
	})
}

// AdvanceReminder moves a mission one step up the reminder ladder. The
// target stage is recomputed from the row read inside the transaction, so a
// postpone or rework that landed after the caller's snapshot resets the
// ladder instead of being overwritten by a stale stage. Overdue is not
// handled here; that is MarkOverdue's job. Returns whether a stage fired.
func (e *Engine) AdvanceReminder(ctx context.Context, missionID int64) (domain.Mission, bool, error) {
	advanced := false
	m, err := e.transition(ctx, "reminder", missionID, func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error) {
		if !domain.IsActiveStatus(m.Status) || m.DeadlineTs == nil {
			return m, nil
		}
		stage := domain.StageFor(*m.DeadlineTs, e.Clock.Now())
		if stage == domain.StageOverdue || domain.StageOrder(stage) <= domain.StageOrder(m.ReminderStage) {
			return m, nil
		}
		if err := e.Repo.SetReminderStageTx(ctx, tx, m.ID, stage); err != nil {
			return m, err
		}
		if err := e.Events.Append(ctx, tx, "mission.reminder", &m.ID, nil, events.EventPayload{"stage": stage}); err != nil {
			return m, err
		}
		m.ReminderStage = stage
		advanced = true
		return m, nil
	})
	return m, advanced, err
}

// transition wraps a lifecycle step: per-mission lock, fresh read inside the
// transaction, commit, metrics.
func (e *Engine) transition(ctx context.Context, event string, missionID int64,
	fn func(ctx context.Context, tx *sql.Tx, m domain.Mission) (domain.Mission, error)) (domain.Mission, error) {
	unlock := e.lockMission(missionID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMissionTx(ctx, tx, missionID)
	if err != nil {
		e.countTransition(event, err)
		return domain.Mission{}, mapRepoErr(err)
	}
	m, err = fn(ctx, tx, m)
	if err != nil {
		e.countTransition(event, err)
		return m, err
	}
	if err := tx.Commit(); err != nil {
		e.countTransition(event, err)
		return m, err
	}
	e.countTransition(event, nil)
	return m, nil
}

func (e *Engine) requireAdmin(ctx context.Context, userID int64) error {
	ok, err := e.Repo.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not an admin", ErrForbidden, userID)
	}
	return nil
}

// requireAdminTx is the only admin check allowed inside a transition
// closure: the pool has one connection and the tx holds it, so a raw DB
// query from here would block forever.
func (e *Engine) requireAdminTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	ok, err := e.Repo.IsAdminTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not an admin", ErrForbidden, userID)
	}
	return nil
}

func (e *Engine) requireAssignee(ctx context.Context, tx *sql.Tx, missionID, userID int64) error {
	a, err := e.Repo.GetAssignmentTx(ctx, tx, missionID, userID)
	if err == repo.ErrNotFound {
		return fmt.Errorf("%w: user %d is not assigned to mission %d", ErrForbidden, userID, missionID)
	}
	if err != nil {
		return err
	}
	if a.Status == domain.AssignmentDeclined || a.Status == domain.AssignmentDone {
		return fmt.Errorf("%w: assignment for user %d is already %s", ErrConflict, userID, a.Status)
	}
	return nil
}

func (e *Engine) activeAssignees(ctx context.Context, tx *sql.Tx, missionID int64) ([]int64, error) {
	list, err := e.Repo.ListAssignmentsTx(ctx, tx, missionID)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, a := range list {
		if a.Status == domain.AssignmentAssigned || a.Status == domain.AssignmentAccepted {
			ids = append(ids, a.AssigneeID)
		}
	}
	return ids, nil
}

func (e *Engine) notifyUser(ctx context.Context, userID int64, text string) {
	if e.Notify == nil {
		return
	}
	if !e.Notify.NotifyUser(ctx, userID, text) {
		e.Logger.Warn("notification delivery failed", "user_id", userID)
	}
}

func mapRepoErr(err error) error {
	if err == repo.ErrNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
