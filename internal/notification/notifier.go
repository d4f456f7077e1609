// Package notification delivers operator alerts for pivot-generation
// failures and backend connectivity problems to external channels
// (Telegram, webhooks) or the process log.
package notification

import (
	"context"
	"fmt"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// TaskFailed builds the alert for a generation task that ended in error.
func TaskFailed(taskID, reason string) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   "Pivot generation failed",
		Message: fmt.Sprintf("task %s: %s", taskID, reason),
	}
}

// NetworkFailure builds the alert for an unreachable backend. The
// subsystem names what went dark (redis, sqlite, progress stream).
func NetworkFailure(subsystem, detail string) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   "Backend unreachable",
		Message: fmt.Sprintf("%s: %s", subsystem, detail),
	}
}

// TaskCompleted builds the informational alert for a finished run.
func TaskCompleted(taskID string, pivots int) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   "Pivot generation finished",
		Message: fmt.Sprintf("task %s stored %d swing points", taskID, pivots),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of sending them, for development and
// for deployments with no channel configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
