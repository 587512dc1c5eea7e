// Package notify delivers user-visible notifications from the sync core.
// Transient issues surface as dismissible notices; only a missing identity
// is ever blocking.
package notify

import (
	"log/slog"
	"sync"
)

// Severity of a notification.
type Severity string

const (
	// SeverityInfo is a passive confirmation ("changes synced").
	SeverityInfo Severity = "info"
	// SeverityWarning is a dismissible, non-blocking notice.
	SeverityWarning Severity = "warning"
	// SeverityBlocking means the app cannot proceed (no usable identity).
	SeverityBlocking Severity = "blocking"
)

// Notification is one user-visible message.
type Notification struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Notifier is implemented by whatever renders notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// Log is a Notifier that writes notifications to the structured log. The
// daemon uses it when no UI is attached.
type Log struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l *Log) Notify(n Notification) {
	switch n.Severity {
	case SeverityWarning:
		l.Logger.Warn(n.Message, "notification", true)
	case SeverityBlocking:
		l.Logger.Error(n.Message, "notification", true, "blocking", true)
	default:
		l.Logger.Info(n.Message, "notification", true)
	}
}

// Recorder is a Notifier that captures notifications for assertions in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// Info sends an info notification.
func Info(n Notifier, msg string) {
	n.Notify(Notification{Severity: SeverityInfo, Message: msg})
}

// Warn sends a non-blocking warning.
func Warn(n Notifier, msg string) {
	n.Notify(Notification{Severity: SeverityWarning, Message: msg})
}

// Blocking sends a blocking error notification.
func Blocking(n Notifier, msg string) {
	n.Notify(Notification{Severity: SeverityBlocking, Message: msg})
}
