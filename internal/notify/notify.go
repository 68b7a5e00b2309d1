// Package notify defines the outbound message surface. Delivery targets
// (chat bots, webhooks) implement Notifier; callers treat every failure as
// non-fatal and never let delivery problems roll back state changes.
package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers a message to one user or to the shared group channel.
// Implementations report delivery success; they must not panic or block
// indefinitely.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) bool
	NotifyGroup(ctx context.Context, text string) bool
}

// LogNotifier writes every message to the log. It stands in when no real
// delivery channel is configured and in tests.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) NotifyUser(ctx context.Context, userID int64, text string) bool {
	n.logger().Info("notify user", "user_id", userID, "text", text)
	return true
}

func (n LogNotifier) NotifyGroup(ctx context.Context, text string) bool {
	n.logger().Info("notify group", "text", text)
	return true
}

// Recorder captures messages for assertions in tests.
type Recorder struct {
	Users []RecordedMessage
	Group []string
	Fail  bool
}

type RecordedMessage struct {
	UserID int64
	Text   string
}

func (r *Recorder) NotifyUser(ctx context.Context, userID int64, text string) bool {
	r.Users = append(r.Users, RecordedMessage{UserID: userID, Text: text})
	return !r.Fail
}

func (r *Recorder) NotifyGroup(ctx context.Context, text string) bool {
	r.Group = append(r.Group, text)
	return !r.Fail
}
