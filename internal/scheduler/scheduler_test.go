package scheduler_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"ogmissions/internal/config"
	"ogmissions/internal/db"
	"ogmissions/internal/domain"
	"ogmissions/internal/engine"
	"ogmissions/internal/migrate"
	"ogmissions/internal/notify"
	"ogmissions/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	Engine *engine.Engine
	Sched  *scheduler.Scheduler
	Notify *notify.Recorder
	Ctx    context.Context
	Now    *time.Time
}

func newFixture(t *testing.T) *fixture {
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
	for id, handle := range map[int64]string{1: "boss", 2: "worker"} {
		if err := eng.Repo.UpsertUser(ctx, id, handle, handle, cfg.RankTable().Base()); err != nil {
			t.Fatal(err)
		}
	}
	if err := eng.Repo.SetAdmin(ctx, 1, true); err != nil {
		t.Fatal(err)
	}
	return &fixture{Engine: eng, Sched: scheduler.New(eng, nil), Notify: rec, Ctx: ctx, Now: &now}
}

func (f *fixture) createWithDeadline(t *testing.T, in time.Duration) domain.Mission {
	t.Helper()
	deadline := f.Now.Add(in).Unix()
	m, err := f.Engine.CreateMission(f.Ctx, engine.MissionCreateOptions{
		Title: "сдать сведение трека", AuthorID: 1, AssigneeIDs: []int64{2},
		DeadlineTs: &deadline, Difficulty: 2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.Notify.Users = nil
	return m
}

func (f *fixture) advanceClock(d time.Duration) {
	*f.Now = f.Now.Add(d)
}

func (f *fixture) stage(t *testing.T, id int64) string {
	t.Helper()
	m, err := f.Engine.Repo.GetMission(f.Ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return m.ReminderStage
}

func TestSweepJumpsToMostAdvancedStage(t *testing.T) {
	f := newFixture(t)
	// deadline 6h out, first sweep after the clock moved to 4h remaining:
	// both the 24h and the 5h thresholds have passed, only one reminder
	// for the more advanced stage is sent
	m := f.createWithDeadline(t, 6*time.Hour)
	f.advanceClock(2 * time.Hour)

	n, err := f.Sched.Sweep(f.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("advanced = %d, want 1", n)
	}
	if got := f.stage(t, m.ID); got != domain.Stage5h {
		t.Fatalf("stage = %q, want %q", got, domain.Stage5h)
	}
	if len(f.Notify.Users) != 1 {
		t.Fatalf("notifications = %d, want exactly 1", len(f.Notify.Users))
	}
}

func TestSweepIsForwardOnly(t *testing.T) {
	f := newFixture(t)
	m := f.createWithDeadline(t, 3*time.Hour)

	if _, err := f.Sched.Sweep(f.Ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.stage(t, m.ID); got != domain.Stage5h {
		t.Fatalf("stage = %q, want %q", got, domain.Stage5h)
	}
	// a repeat sweep with no clock movement stays silent
	f.Notify.Users = nil
	n, err := f.Sched.Sweep(f.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || len(f.Notify.Users) != 0 {
		t.Fatalf("repeat sweep advanced=%d notifications=%d, want 0/0", n, len(f.Notify.Users))
	}

	f.advanceClock(2*time.Hour + 30*time.Minute)
	if _, err := f.Sched.Sweep(f.Ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.stage(t, m.ID); got != domain.Stage1h {
		t.Fatalf("stage = %q, want %q", got, domain.Stage1h)
	}
}

func TestSweepClosesOverdueOnce(t *testing.T) {
	f := newFixture(t)
	m := f.createWithDeadline(t, time.Hour)
	f.advanceClock(2 * time.Hour)

	if _, err := f.Sched.Sweep(f.Ctx); err != nil {
		t.Fatal(err)
	}
	got, err := f.Engine.Repo.GetMission(f.Ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusOverdue || got.ReminderStage != domain.StageOverdue {
		t.Fatalf("status=%s stage=%s, want OVERDUE/overdue", got.Status, got.ReminderStage)
	}
	u, err := f.Engine.Repo.GetUser(f.Ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if u.Karma != -3 {
		t.Fatalf("karma = %d, want -3", u.Karma)
	}

	// the terminal mission leaves the sweep set entirely
	if _, err := f.Sched.Sweep(f.Ctx); err != nil {
		t.Fatal(err)
	}
	u, err = f.Engine.Repo.GetUser(f.Ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if u.Karma != -3 {
		t.Fatalf("karma after repeat sweep = %d, want -3", u.Karma)
	}
}

func TestReminderFailureDoesNotStallSweep(t *testing.T) {
	f := newFixture(t)
	f.Notify.Fail = true
	first := f.createWithDeadline(t, 2*time.Hour)
	second := f.createWithDeadline(t, 3*time.Hour)

	n, err := f.Sched.Sweep(f.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("advanced = %d, want 2 despite delivery failures", n)
	}
	for _, id := range []int64{first.ID, second.ID} {
		if got := f.stage(t, id); got != domain.Stage5h {
			t.Fatalf("mission %d stage = %q, want %q", id, got, domain.Stage5h)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.Sched.Interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Sched.Run(ctx)
		close(done)
	}()
	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

// A stage computed from a stale snapshot must not land after a postpone
// moved the deadline: the write path re-reads the row under the mission
// lock and recomputes the target.
func TestStaleStageDiscardedAfterPostpone(t *testing.T) {
	f := newFixture(t)
	m := f.createWithDeadline(t, 4*time.Hour)
	if _, err := f.Engine.Accept(f.Ctx, m.ID, 2); err != nil {
		t.Fatal(err)
	}
	// the deadline moves a day out and the ladder resets
	if _, err := f.Engine.Postpone(f.Ctx, m.ID, 2, 1); err != nil {
		t.Fatal(err)
	}
	if _, advanced, err := f.Engine.AdvanceReminder(f.Ctx, m.ID); err != nil || advanced {
		t.Fatalf("advanced = %v err = %v, want no stage write", advanced, err)
	}
	if got := f.stage(t, m.ID); got != domain.StageNone {
		t.Fatalf("stage = %q, want none until the new deadline approaches", got)
	}
	// once the moved deadline comes back in range the ladder fires again
	f.advanceClock(24 * time.Hour)
	if _, advanced, err := f.Engine.AdvanceReminder(f.Ctx, m.ID); err != nil || !advanced {
		t.Fatalf("advanced = %v err = %v, want a fresh 5h reminder", advanced, err)
	}
	if got := f.stage(t, m.ID); got != domain.Stage5h {
		t.Fatalf("stage = %q, want %q", got, domain.Stage5h)
	}
}
