// Package scheduler sweeps missions with deadlines and walks each one up the
// reminder ladder. Stages only move forward, and a mission that jumped past
// several thresholds gets exactly one message for the most advanced stage,
// never a backlog of stale reminders.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ogmissions/internal/domain"
	"ogmissions/internal/engine"
)

type Scheduler struct {
	Engine   *engine.Engine
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  *Metrics

	sweeping atomic.Bool
}

func New(eng *engine.Engine, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Engine:   eng,
		Interval: eng.Config.SweepInterval(),
		Logger:   logger,
	}
}

type Metrics struct {
	Sweeps    prometheus.Counter
	Reminders *prometheus.CounterVec
	Overdue   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ogm_reminder_sweeps_total",
			Help: "Completed reminder sweeps.",
		}),
		Reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ogm_reminders_sent_total",
			Help: "Reminder messages sent by stage.",
		}, []string{"stage"}),
		Overdue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ogm_missions_overdue_total",
			Help: "Missions closed as overdue by the sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Sweeps, m.Reminders, m.Overdue)
	}
	return m
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.Logger.Info("reminder scheduler started", "interval", s.Interval)
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.Logger.Error("sweep failed", "error", err)
			} else if n > 0 {
				s.Logger.Info("sweep advanced reminders", "count", n)
			}
		}
	}
}

// Sweep examines every active mission with a deadline once. Returns how many
// missions advanced a stage. Concurrent calls are collapsed: if a sweep is
// already running the new call returns immediately.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.sweeping.Store(false)

	missions, err := s.Engine.Repo.ListActiveWithDeadline(ctx)
	if err != nil {
		return 0, err
	}
	now := s.Engine.Clock.Now()
	advanced := 0
	for _, m := range missions {
		moved, err := s.advance(ctx, m, now)
		if err != nil {
			// one bad mission must not stall the rest of the sweep
			s.Logger.Error("reminder advance failed", "mission_id", m.ID, "error", err)
			continue
		}
		if moved {
			advanced++
		}
	}
	if s.Metrics != nil {
		s.Metrics.Sweeps.Inc()
	}
	return advanced, nil
}

func (s *Scheduler) advance(ctx context.Context, m domain.Mission, now time.Time) (bool, error) {
	target := domain.StageFor(*m.DeadlineTs, now)
	if domain.StageOrder(target) <= domain.StageOrder(m.ReminderStage) {
		return false, nil
	}
	if target == domain.StageOverdue {
		if _, err := s.Engine.MarkOverdue(ctx, m.ID); err != nil {
			return false, err
		}
		if s.Metrics != nil {
			s.Metrics.Overdue.Inc()
		}
		s.notifyAssignees(ctx, m, fmt.Sprintf("Mission #%d %q is overdue.", m.ID, m.Title))
		return true, nil
	}
	// the engine re-reads the row under the mission lock: if the deadline
	// moved since our snapshot the stale target is discarded
	fresh, advanced, err := s.Engine.AdvanceReminder(ctx, m.ID)
	if err != nil {
		return false, err
	}
	if !advanced {
		return false, nil
	}
	left := time.Unix(*fresh.DeadlineTs, 0).Sub(now).Round(time.Minute)
	s.notifyAssignees(ctx, fresh, fmt.Sprintf("Mission #%d %q is due in %s.", fresh.ID, fresh.Title, left))
	if s.Metrics != nil {
		s.Metrics.Reminders.WithLabelValues(fresh.ReminderStage).Inc()
	}
	return true, nil
}

func (s *Scheduler) notifyAssignees(ctx context.Context, m domain.Mission, text string) {
	if s.Engine.Notify == nil {
		return
	}
	assignments, err := s.Engine.Repo.ListAssignments(ctx, m.ID)
	if err != nil {
		s.Logger.Error("list assignments", "mission_id", m.ID, "error", err)
		return
	}
	for _, a := range assignments {
		if a.Status != domain.AssignmentAssigned && a.Status != domain.AssignmentAccepted {
			continue
		}
		if !s.Engine.Notify.NotifyUser(ctx, a.AssigneeID, text) {
			s.Logger.Warn("reminder delivery failed", "mission_id", m.ID, "user_id", a.AssigneeID)
		}
	}
}
