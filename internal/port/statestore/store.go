// Package statestore defines the task state persistence port (interface).
package statestore

import (
	"context"

	"github.com/Strob0t/PageForge/internal/domain/task"
)

// Store maps a task identifier to the most recent successful round's state.
// Entries are created on the first successful round, overwritten on each
// subsequent one, and never deleted. Implementations must be safe under
// concurrent access from multiple in-flight pipelines.
type Store interface {
	// Get returns the stored state for a task, or domain.ErrNotFound.
	Get(ctx context.Context, taskID string) (*task.State, error)

	// Set stores the state for a task, replacing any previous entry.
	Set(ctx context.Context, taskID string, state *task.State) error
}
