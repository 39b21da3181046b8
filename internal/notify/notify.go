// Package notify delivers the user-facing side effects of the request
// pipeline: toast messages and the delayed redirect to the login page after
// an irrecoverable authentication failure.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notifier interface {
	Toast(sessionID string, level Level, message string)
	// ScheduleLoginRedirect arranges for the session to be sent to the login
	// page after the delay, so that a failure notification can render first.
	ScheduleLoginRedirect(sessionID string, delay time.Duration)
}

// QueueNotifier is the default Notifier. Toasts are queued per session until
// a client drains them, and scheduled login redirects become a pending flag
// the navigation endpoint consumes.
type QueueNotifier struct {
	mu        sync.Mutex
	toasts    map[string][]Toast
	redirects map[string]bool
}

type Toast struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

func NewQueueNotifier() *QueueNotifier {
	return &QueueNotifier{
		toasts:    map[string][]Toast{},
		redirects: map[string]bool{},
	}
}

func (n *QueueNotifier) Toast(sessionID string, level Level, message string) {
	slog.Info("NOTIFY", "message", message, "level", level, "sessionID", sessionID)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts[sessionID] = append(n.toasts[sessionID], Toast{Level: level, Message: message})
}

// DrainToasts returns and clears the queued toasts of a session.
func (n *QueueNotifier) DrainToasts(sessionID string) []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	toasts := n.toasts[sessionID]
	delete(n.toasts, sessionID)
	return toasts
}

func (n *QueueNotifier) ScheduleLoginRedirect(sessionID string, delay time.Duration) {
	slog.Info("NOTIFY", "message", "scheduling login redirect", "sessionID", sessionID, "delay", delay)
	time.AfterFunc(delay, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.redirects[sessionID] = true
	})
}

// ConsumeLoginRedirect reports whether a login redirect is pending for the
// session and clears the flag.
func (n *QueueNotifier) ConsumeLoginRedirect(sessionID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	pending := n.redirects[sessionID]
	delete(n.redirects, sessionID)
	return pending
}
