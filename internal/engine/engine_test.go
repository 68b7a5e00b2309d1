package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ogmissions/internal/config"
	"ogmissions/internal/db"
	"ogmissions/internal/domain"
	"ogmissions/internal/engine"
	"ogmissions/internal/migrate"
	"ogmissions/internal/notify"
)

type testEnv struct {
	Engine *engine.Engine
	Notify *notify.Recorder
	Ctx    context.Context
	Now    time.Time
}

const (
	adminID    = int64(1)
	assigneeID = int64(2)
	otherID    = int64(3)
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Timezone = "UTC"
	eng := engine.New(conn, cfg)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng.SetNow(func() time.Time { return now })
	rec := &notify.Recorder{}
	eng.Notify = rec
	ctx := context.Background()

	for _, u := range []struct {
		id     int64
		handle string
		admin  bool
	}{{adminID, "boss", true}, {assigneeID, "worker", false}, {otherID, "bystander", false}} {
		if err := eng.Repo.UpsertUser(ctx, u.id, u.handle, u.handle, cfg.RankTable().Base()); err != nil {
			t.Fatalf("seed user %s: %v", u.handle, err)
		}
		if u.admin {
			if err := eng.Repo.SetAdmin(ctx, u.id, true); err != nil {
				t.Fatalf("set admin: %v", err)
			}
		}
	}
	return &testEnv{Engine: eng, Notify: rec, Ctx: ctx, Now: now}
}

func (env *testEnv) karma(t *testing.T, userID int64) int {
	t.Helper()
	u, err := env.Engine.Repo.GetUser(env.Ctx, userID)
	if err != nil {
		t.Fatalf("get user %d: %v", userID, err)
	}
	return u.Karma
}

func (env *testEnv) create(t *testing.T, opts engine.MissionCreateOptions) domain.Mission {
	t.Helper()
	if opts.AuthorID == 0 {
		opts.AuthorID = adminID
	}
	if opts.AssigneeIDs == nil {
		opts.AssigneeIDs = []int64{assigneeID}
	}
	m, err := env.Engine.CreateMission(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	return m
}

func TestHappyPathRewardsOnce(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "снять клип на районе", Difficulty: 3})
	if m.Status != domain.StatusOpen {
		t.Fatalf("status = %s, want OPEN", m.Status)
	}

	m, err := env.Engine.Accept(env.Ctx, m.ID, assigneeID)
	if err != nil || m.Status != domain.StatusInProgress {
		t.Fatalf("accept: %v status=%s", err, m.Status)
	}
	m, err = env.Engine.SubmitReport(env.Ctx, m.ID, assigneeID, map[string]any{"link": "https://example.com/clip"})
	if err != nil || m.Status != domain.StatusReview {
		t.Fatalf("report: %v status=%s", err, m.Status)
	}
	m, err = env.Engine.Approve(env.Ctx, m.ID, adminID)
	if err != nil || m.Status != domain.StatusDone {
		t.Fatalf("approve: %v status=%s", err, m.Status)
	}
	if m.ClosedAt == nil {
		t.Fatal("closed_at not set")
	}
	if got := env.karma(t, assigneeID); got != 3 {
		t.Fatalf("karma = %d, want 3", got)
	}

	// second approve must not pay twice
	if _, err := env.Engine.Approve(env.Ctx, m.ID, adminID); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("re-approve err = %v, want ErrConflict", err)
	}
	if got := env.karma(t, assigneeID); got != 3 {
		t.Fatalf("karma after re-approve = %d, want 3", got)
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "записать куплет", Difficulty: 2})
	if _, err := env.Engine.Accept(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitReport(env.Ctx, m.ID, assigneeID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Approve(env.Ctx, m.ID, assigneeID); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestDeclineHouseholdTieredPenalty(t *testing.T) {
	cases := []struct {
		difficulty int
		want       int
	}{{1, -3}, {2, -4}, {3, -5}, {5, -5}}
	for _, tc := range cases {
		env := newTestEnv(t)
		m := env.create(t, engine.MissionCreateOptions{Title: "вынести мусор и убраться", Difficulty: tc.difficulty})
		if _, err := env.Engine.Decline(env.Ctx, m.ID, assigneeID); err != nil {
			t.Fatalf("decline diff %d: %v", tc.difficulty, err)
		}
		if got := env.karma(t, assigneeID); got != tc.want {
			t.Fatalf("difficulty %d: karma = %d, want %d", tc.difficulty, got, tc.want)
		}
	}
}

func TestDeclineCreativeFlatPenalty(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "свести трек", Difficulty: 4})
	m, err := env.Engine.Decline(env.Ctx, m.ID, assigneeID)
	if err != nil || m.Status != domain.StatusDeclined {
		t.Fatalf("decline: %v status=%s", err, m.Status)
	}
	if got := env.karma(t, assigneeID); got != -2 {
		t.Fatalf("karma = %d, want -2", got)
	}
}

func TestOnlyAssigneeMayAct(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "смонтировать видео", Difficulty: 3})
	if _, err := env.Engine.Accept(env.Ctx, m.ID, otherID); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("accept by stranger: %v, want ErrForbidden", err)
	}
	if _, err := env.Engine.SubmitReport(env.Ctx, m.ID, otherID, nil); !errors.Is(err, engine.ErrConflict) && !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("report by stranger: %v", err)
	}
}

func TestReworkLoop(t *testing.T) {
	env := newTestEnv(t)
	deadline := env.Now.Add(48 * time.Hour).Unix()
	m := env.create(t, engine.MissionCreateOptions{Title: "написать сценарий", Difficulty: 3, DeadlineTs: &deadline})
	if _, err := env.Engine.Accept(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitReport(env.Ctx, m.ID, assigneeID, nil); err != nil {
		t.Fatal(err)
	}
	m, err := env.Engine.Rework(env.Ctx, m.ID, adminID)
	if err != nil || m.Status != domain.StatusRework {
		t.Fatalf("rework: %v status=%s", err, m.Status)
	}
	if got := env.karma(t, assigneeID); got != -1 {
		t.Fatalf("karma = %d, want -1", got)
	}
	if m.DeadlineTs == nil || *m.DeadlineTs != deadline+86400 {
		t.Fatalf("deadline not extended by grace day: %v", m.DeadlineTs)
	}
	// the fixed loop: rework goes back to review, then done
	if _, err := env.Engine.SubmitReport(env.Ctx, m.ID, assigneeID, map[string]any{"take": 2}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	m, err = env.Engine.Approve(env.Ctx, m.ID, adminID)
	if err != nil || m.Status != domain.StatusDone {
		t.Fatalf("approve after rework: %v status=%s", err, m.Status)
	}
	if got := env.karma(t, assigneeID); got != 2 {
		t.Fatalf("karma = %d, want -1+3=2", got)
	}
}

func TestPostponeTiers(t *testing.T) {
	cases := []struct {
		days    int
		penalty int
	}{{1, 0}, {2, -1}, {3, -2}}
	for _, tc := range cases {
		env := newTestEnv(t)
		deadline := env.Now.Add(24 * time.Hour).Unix()
		m := env.create(t, engine.MissionCreateOptions{Title: "записать демку", Difficulty: 2, DeadlineTs: &deadline})
		m, err := env.Engine.Postpone(env.Ctx, m.ID, assigneeID, tc.days)
		if err != nil {
			t.Fatalf("postpone %dd: %v", tc.days, err)
		}
		if got := env.karma(t, assigneeID); got != tc.penalty {
			t.Fatalf("%dd: karma = %d, want %d", tc.days, got, tc.penalty)
		}
		if *m.DeadlineTs != deadline+int64(tc.days)*86400 {
			t.Fatalf("%dd: deadline = %d, want %d", tc.days, *m.DeadlineTs, deadline+int64(tc.days)*86400)
		}
		if m.ExtensionCount != 1 {
			t.Fatalf("%dd: extension_count = %d, want 1", tc.days, m.ExtensionCount)
		}
		if m.ReminderStage != domain.StageNone {
			t.Fatalf("%dd: reminder stage = %q, want reset", tc.days, m.ReminderStage)
		}
	}
}

func TestPostponeRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	deadline := env.Now.Add(24 * time.Hour).Unix()
	m := env.create(t, engine.MissionCreateOptions{Title: "записать демку", Difficulty: 2, DeadlineTs: &deadline})
	for _, days := range []int{0, 4, -1} {
		if _, err := env.Engine.Postpone(env.Ctx, m.ID, assigneeID, days); !errors.Is(err, engine.ErrInvalidArgument) {
			t.Fatalf("days=%d err = %v, want ErrInvalidArgument", days, err)
		}
	}
	noDeadline := env.create(t, engine.MissionCreateOptions{Title: "без срока", Difficulty: 1})
	if _, err := env.Engine.Postpone(env.Ctx, noDeadline.ID, assigneeID, 1); !errors.Is(err, engine.ErrInvalidArgument) {
		t.Fatalf("no deadline err = %v, want ErrInvalidArgument", err)
	}
	if _, err := env.Engine.SubmitReport(env.Ctx, m.ID, assigneeID, nil); err != nil {
		t.Fatal(err)
	}
	// REVIEW missions cannot be postponed
	if _, err := env.Engine.Postpone(env.Ctx, m.ID, assigneeID, 1); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("review postpone err = %v, want ErrConflict", err)
	}
}

func TestMarkOverdueIdempotent(t *testing.T) {
	env := newTestEnv(t)
	deadline := env.Now.Add(-time.Hour).Unix()
	m := env.create(t, engine.MissionCreateOptions{Title: "залить трек на площадки", Difficulty: 1, DeadlineTs: &deadline})

	m, err := env.Engine.MarkOverdue(env.Ctx, m.ID)
	if err != nil || m.Status != domain.StatusOverdue {
		t.Fatalf("overdue: %v status=%s", err, m.Status)
	}
	if got := env.karma(t, assigneeID); got != -3 {
		t.Fatalf("karma = %d, want -3", got)
	}
	// retry is a no-op, not a second penalty
	if _, err := env.Engine.MarkOverdue(env.Ctx, m.ID); err != nil {
		t.Fatalf("repeat overdue: %v", err)
	}
	if got := env.karma(t, assigneeID); got != -3 {
		t.Fatalf("karma after repeat = %d, want -3", got)
	}
}

func TestOverdueHarsherAfterExtension(t *testing.T) {
	env := newTestEnv(t)
	deadline := env.Now.Add(-100 * time.Hour).Unix()
	m := env.create(t, engine.MissionCreateOptions{Title: "сдать сведение", Difficulty: 2, DeadlineTs: &deadline})
	if _, err := env.Engine.Postpone(env.Ctx, m.ID, assigneeID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.MarkOverdue(env.Ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	// 0 from the free postpone day, then the extended overdue fine
	if got := env.karma(t, assigneeID); got != -4 {
		t.Fatalf("karma = %d, want -4", got)
	}
}

func TestActiveLimit(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < env.Engine.Config.Missions.ActiveLimit; i++ {
		env.create(t, engine.MissionCreateOptions{Title: "очередное дело", Difficulty: 1, AuthorID: otherID})
	}
	_, err := env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		Title: "одно сверх лимита", Difficulty: 1, AuthorID: otherID, AssigneeIDs: []int64{assigneeID},
	})
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	// admins may exceed the limit
	if _, err := env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		Title: "срочно от начальства", Difficulty: 1, AuthorID: adminID, AssigneeIDs: []int64{assigneeID},
	}); err != nil {
		t.Fatalf("admin create over limit: %v", err)
	}
}

func TestInvalidTextPenalizedAndAppealRecorded(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateMissionFromText(env.Ctx, assigneeID, "ок", []int64{assigneeID})
	if !errors.Is(err, engine.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if got := env.karma(t, assigneeID); got != -1 {
		t.Fatalf("karma = %d, want -1", got)
	}
	appeals, err := env.Engine.Repo.ListAppeals(env.Ctx, domain.AppealOpen, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(appeals) != 1 || appeals[0].AuthorID != assigneeID || appeals[0].Penalty != -1 {
		t.Fatalf("appeals = %+v", appeals)
	}
}

func TestCancelGuards(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "снять бекстейдж", Difficulty: 2, AuthorID: otherID})
	if _, err := env.Engine.Cancel(env.Ctx, m.ID, assigneeID); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("cancel by non-author: %v, want ErrForbidden", err)
	}
	m2, err := env.Engine.Cancel(env.Ctx, m.ID, otherID)
	if err != nil || m2.Status != domain.StatusCancelled {
		t.Fatalf("cancel: %v status=%s", err, m2.Status)
	}
	if got := env.karma(t, assigneeID); got != 0 {
		t.Fatalf("author cancel must be penalty-free, karma = %d", got)
	}
}

func TestCancelAdminWithPenalty(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "переснять обложку", Difficulty: 2})
	if _, err := env.Engine.Accept(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatal(err)
	}
	m, err := env.Engine.CancelAdmin(env.Ctx, m.ID, adminID, true)
	if err != nil || m.Status != domain.StatusCancelledAdmin {
		t.Fatalf("cancel admin: %v status=%s", err, m.Status)
	}
	if got := env.karma(t, assigneeID); got != -1 {
		t.Fatalf("karma = %d, want -1", got)
	}
}

func TestUnknownMission(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Accept(env.Ctx, 9999, assigneeID); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// The due-today bonus only inflates the estimator's displayed reward; the
// payout on approve is always exactly the difficulty.
func TestApprovePaysDifficultyEvenOnDeadlineDay(t *testing.T) {
	env := newTestEnv(t)
	deadline := env.Now.Add(2 * time.Hour).Unix()
	m := env.create(t, engine.MissionCreateOptions{Title: "записать войс для интро", Difficulty: 2, DeadlineTs: &deadline})
	if _, err := env.Engine.Accept(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitReport(env.Ctx, m.ID, assigneeID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Approve(env.Ctx, m.ID, adminID); err != nil {
		t.Fatal(err)
	}
	if got := env.karma(t, assigneeID); got != 2 {
		t.Fatalf("karma = %d, want exactly the difficulty", got)
	}
}

func TestPendingReportTextMovesToReview(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "смонтировать бэкстейдж", Difficulty: 2})
	if _, err := env.Engine.Accept(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.AwaitReportText(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatalf("await report: %v", err)
	}
	p, err := env.Engine.PendingFor(env.Ctx, assigneeID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if p.Mode != domain.PendingReportText || p.MissionID == nil || *p.MissionID != m.ID {
		t.Fatalf("pending = %+v, want report for mission %d", p, m.ID)
	}

	m, err = env.Engine.SubmitText(env.Ctx, assigneeID, "готово, ссылка в чате")
	if err != nil || m.Status != domain.StatusReview {
		t.Fatalf("submit text: %v status=%s", err, m.Status)
	}
	if _, err := env.Engine.PendingFor(env.Ctx, assigneeID); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("pending after submit err = %v, want ErrNotFound", err)
	}
}

func TestAwaitReportTextGuards(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "отрисовать афишу", Difficulty: 1})
	// mission still OPEN
	if err := env.Engine.AwaitReportText(env.Ctx, m.ID, assigneeID); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("open mission err = %v, want ErrConflict", err)
	}
	if _, err := env.Engine.Accept(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.AwaitReportText(env.Ctx, m.ID, otherID); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("bystander err = %v, want ErrForbidden", err)
	}
}

func TestPendingTaskTextCreatesSelfAssignedMission(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AwaitTaskText(env.Ctx, assigneeID); err != nil {
		t.Fatalf("await task: %v", err)
	}
	m, err := env.Engine.SubmitText(env.Ctx, assigneeID, "снять клип на районе завтра")
	if err != nil {
		t.Fatalf("submit text: %v", err)
	}
	if m.ID == 0 || m.Status != domain.StatusOpen {
		t.Fatalf("mission = %+v, want new OPEN mission", m)
	}
	if _, err := env.Engine.Repo.GetAssignment(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatalf("self assignment missing: %v", err)
	}
	if m.DeadlineTs == nil {
		t.Fatal("deadline not parsed from text")
	}
}

func TestPendingAppealTextSetsPlea(t *testing.T) {
	env := newTestEnv(t)
	// an invalid submission opens an appeal for the author
	if _, err := env.Engine.CreateMissionFromText(env.Ctx, assigneeID, "ок", []int64{assigneeID}); !errors.Is(err, engine.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if err := env.Engine.AwaitAppealText(env.Ctx, assigneeID); err != nil {
		t.Fatalf("await appeal: %v", err)
	}
	if _, err := env.Engine.SubmitText(env.Ctx, assigneeID, "это был ответ на вопрос, не задача"); err != nil {
		t.Fatalf("submit plea: %v", err)
	}
	a, err := env.Engine.Repo.LatestOpenAppealByAuthor(env.Ctx, assigneeID)
	if err != nil {
		t.Fatalf("appeal: %v", err)
	}
	if a.Plea != "это был ответ на вопрос, не задача" {
		t.Fatalf("plea = %q", a.Plea)
	}
}

func TestAwaitAppealTextWithoutOpenAppeal(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AwaitAppealText(env.Ctx, assigneeID); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestPendingExpires(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AwaitTaskText(env.Ctx, assigneeID); err != nil {
		t.Fatal(err)
	}
	env.Engine.SetNow(func() time.Time { return env.Now.Add(16 * time.Minute) })
	if _, err := env.Engine.PendingFor(env.Ctx, assigneeID); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expired pending err = %v, want ErrNotFound", err)
	}
	if _, err := env.Engine.SubmitText(env.Ctx, assigneeID, "что-нибудь"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("submit after expiry err = %v, want ErrNotFound", err)
	}
}

func TestCancelPending(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.AwaitTaskText(env.Ctx, assigneeID); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.CancelPending(env.Ctx, assigneeID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.Engine.SubmitText(env.Ctx, assigneeID, "поздно"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAcceptNotifiesAuthor(t *testing.T) {
	env := newTestEnv(t)
	m := env.create(t, engine.MissionCreateOptions{Title: "отрисовать логотип тура", Difficulty: 2})
	env.Notify.Users = nil
	if _, err := env.Engine.Accept(env.Ctx, m.ID, assigneeID); err != nil {
		t.Fatal(err)
	}
	if len(env.Notify.Users) != 1 || env.Notify.Users[0].UserID != adminID {
		t.Fatalf("notifications = %+v, want exactly one to the author", env.Notify.Users)
	}
}

// The pool holds a single connection and the transition owns it through the
// transaction, so an admin check that went to the raw DB would block forever.
// A deadline on the context turns that regression into a failure instead of
// a hung suite.
func TestAdminGatedTransitionsComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(env.Ctx, 10*time.Second)
	defer cancel()

	m := env.create(t, engine.MissionCreateOptions{Title: "свести и отмастерить трек", Difficulty: 4})
	if _, err := env.Engine.Accept(ctx, m.ID, assigneeID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitReport(ctx, m.ID, assigneeID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Rework(ctx, m.ID, adminID); err != nil {
		t.Fatalf("rework: %v", err)
	}
	if _, err := env.Engine.SubmitReport(ctx, m.ID, assigneeID, nil); err != nil {
		t.Fatal(err)
	}
	m, err := env.Engine.Approve(ctx, m.ID, adminID)
	if err != nil || m.Status != domain.StatusDone {
		t.Fatalf("approve: %v status=%s", err, m.Status)
	}
	if got := env.karma(t, assigneeID); got != 3 {
		t.Fatalf("karma = %d, want 4 reward - 1 rework", got)
	}

	m2 := env.create(t, engine.MissionCreateOptions{Title: "подготовить площадку к съёмке", Difficulty: 1})
	if _, err := env.Engine.CancelAdmin(ctx, m2.ID, adminID, false); err != nil {
		t.Fatalf("cancel admin: %v", err)
	}
}
