package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"classattendance/internal/attendance"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"
)

// ChannelID is the single notification channel every message is posted to.
const (
	ChannelID   = "attendance"
	ChannelName = "Class attendance"
)

// InboxLimit caps how many rendered notifications are kept.
const InboxLimit = 100

// Rendered is a notification as shown to the user. ID is the slot id so a
// newer notification for the same slot supersedes the older one on devices.
type Rendered struct {
	ID       int64     `json:"id"`
	Channel  string    `json:"channel"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	PostedAt time.Time `json:"posted_at"`
}

// Render turns n into its displayed form. The body is the message when one
// is set, otherwise the class time.
func Render(n attendance.Notification, at time.Time) Rendered {
	body := fmt.Sprintf("Class at %02d:%02d", n.Hour, n.Minute)
	if n.Message != nil {
		body = *n.Message
	}
	return Rendered{
		ID:       n.SlotID,
		Channel:  ChannelID,
		Title:    n.SubjectName,
		Body:     body,
		PostedAt: at,
	}
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	clock  clock.Clock
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(clk clock.Clock, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{clock: clk, logger: logger.With("component", "notifier")}
}

func (l *LogNotifier) EnsureChannel(context.Context) error { return nil }

func (l *LogNotifier) Show(ctx context.Context, n attendance.Notification) error {
	r := Render(n, l.clock.Now())
	l.logger.InfoContext(ctx, "notification", "id", r.ID, "title", r.Title, "body", r.Body)
	return nil
}

// Fanout delivers to every notifier and combines their failures. A failing
// notifier does not stop delivery to the rest.
type Fanout []attendance.Notifier

func (f Fanout) EnsureChannel(ctx context.Context) error {
	var errList []error
	for _, n := range f {
		errList = append(errList, n.EnsureChannel(ctx))
	}
	return errs.Combine(errList...)
}

func (f Fanout) Show(ctx context.Context, n attendance.Notification) error {
	var errList []error
	for _, target := range f {
		errList = append(errList, target.Show(ctx, n))
	}
	return errs.Combine(errList...)
}
