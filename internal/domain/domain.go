package domain

import "time"

// Mission statuses. OPEN and IN_PROGRESS are active; DONE, DECLINED,
// CANCELLED, CANCELLED_ADMIN and OVERDUE are terminal. REVIEW and REWORK are
// in-flight review states.
const (
	StatusOpen           = "OPEN"
	StatusInProgress     = "IN_PROGRESS"
	StatusReview         = "REVIEW"
	StatusRework         = "REWORK"
	StatusDone           = "DONE"
	StatusDeclined       = "DECLINED"
	StatusCancelled      = "CANCELLED"
	StatusCancelledAdmin = "CANCELLED_ADMIN"
	StatusOverdue        = "OVERDUE"
)

// ActiveStatuses are the states the reminder scheduler sweeps and the states
// counted against the per-assignee mission limit.
var ActiveStatuses = []string{StatusOpen, StatusInProgress, StatusReview, StatusRework}

func IsActiveStatus(s string) bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func IsTerminalStatus(s string) bool {
	switch s {
	case StatusDone, StatusDeclined, StatusCancelled, StatusCancelledAdmin, StatusOverdue:
		return true
	}
	return false
}

// Reminder stages, strictly ordered. The scheduler only ever advances a
// mission forward through these.
const (
	StageNone    = ""
	Stage24h     = "24h"
	Stage5h      = "5h"
	Stage1h      = "1h"
	StageOverdue = "overdue"
)

// stageThresholds pair a reminder stage with how far before the deadline it
// fires.
var stageThresholds = []struct {
	Stage  string
	Within time.Duration
}{
	{Stage24h, 24 * time.Hour},
	{Stage5h, 5 * time.Hour},
	{Stage1h, time.Hour},
}

// StageFor picks the most advanced stage the deadline distance qualifies
// for. Past the deadline it is overdue regardless of prior stages.
func StageFor(deadlineTs int64, now time.Time) string {
	remaining := time.Unix(deadlineTs, 0).Sub(now)
	if remaining <= 0 {
		return StageOverdue
	}
	stage := StageNone
	for _, th := range stageThresholds {
		if remaining <= th.Within {
			stage = th.Stage
		}
	}
	return stage
}

// StageOrder ranks reminder stages for forward-only comparisons.
func StageOrder(stage string) int {
	switch stage {
	case Stage24h:
		return 1
	case Stage5h:
		return 2
	case Stage1h:
		return 3
	case StageOverdue:
		return 99
	default:
		return 0
	}
}

// Assignment statuses.
const (
	AssignmentAssigned = "assigned"
	AssignmentAccepted = "accepted"
	AssignmentDeclined = "declined"
	AssignmentDone     = "done"
)

// Appeal statuses.
const (
	AppealOpen     = "open"
	AppealApproved = "approved"
	AppealRejected = "rejected"
)

type User struct {
	ID        int64  `json:"id"`
	Handle    string `json:"handle,omitempty"`
	Name      string `json:"name,omitempty"`
	Karma     int    `json:"karma"`
	Rank      string `json:"rank"`
	IsAdmin   bool   `json:"is_admin"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
}

type Mission struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	AuthorID        int64  `json:"author_id"`
	DeadlineTs      *int64 `json:"deadline_ts,omitempty"`
	Difficulty      int    `json:"difficulty"`
	DifficultyLabel string `json:"difficulty_label"`
	Status          string `json:"status" enum:"OPEN,IN_PROGRESS,REVIEW,REWORK,DONE,DECLINED,CANCELLED,CANCELLED_ADMIN,OVERDUE"`
	ReminderStage   string `json:"reminder_stage"`
	ExtensionCount  int    `json:"extension_count"`
	CreatedAt       int64  `json:"created_at"`
	ClosedAt        *int64 `json:"closed_at,omitempty"`
}

type Assignment struct {
	ID         int64   `json:"id"`
	MissionID  int64   `json:"mission_id"`
	AssigneeID int64   `json:"assignee_id"`
	Status     string  `json:"status" enum:"assigned,accepted,declined,done"`
	ReportJSON *string `json:"report_json,omitempty"`
	CreatedAt  int64   `json:"created_at"`
	DoneAt     *int64  `json:"done_at,omitempty"`
}

// KarmaEntry is an immutable ledger record. User.Karma is the materialized
// running sum of a user's entries.
type KarmaEntry struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Event is an append-only audit record. Never mutated or deleted.
type Event struct {
	ID        int64  `json:"id"`
	MissionID *int64 `json:"mission_id,omitempty"`
	ActorID   *int64 `json:"actor_id,omitempty"`
	Kind      string `json:"kind"`
	Payload   string `json:"payload,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Appeal is recorded when the estimator's validity gate rejects a free-text
// submission and the fixed penalty has been applied.
type Appeal struct {
	ID           int64  `json:"id"`
	AuthorID     int64  `json:"author_id"`
	OriginalText string `json:"original_text"`
	Reason       string `json:"reason"`
	Penalty      int    `json:"penalty"`
	Status       string `json:"status" enum:"open,approved,rejected"`
	Plea         string `json:"plea,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// Pending interaction modes: what free-text input the system is waiting for
// from a user. A typed mode with expiry instead of an open key-value bag.
const (
	PendingReportText = "report_text"
	PendingAppealText = "appeal_text"
	PendingTaskText   = "task_text"
)

type PendingAction struct {
	UserID    int64  `json:"user_id"`
	Mode      string `json:"mode" enum:"report_text,appeal_text,task_text"`
	MissionID *int64 `json:"mission_id,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt int64  `json:"created_at"`
}
