// Package notifier defines the callback delivery port (interface).
package notifier

import (
	"context"

	"github.com/Strob0t/PageForge/internal/domain/task"
)

// Notifier is the port interface for delivering a task outcome to the
// caller-supplied callback URL. Delivery is a single best-effort attempt;
// failure never alters the task's recorded outcome.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "webhook").
	Name() string

	// Send posts the outcome to url once, within a bounded timeout.
	Send(ctx context.Context, url string, outcome task.Outcome) error
}
