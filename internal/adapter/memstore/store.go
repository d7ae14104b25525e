// Package memstore implements the statestore port as a process-lifetime
// guarded map. This is the default store: task state is not required to
// survive a restart.
package memstore

import (
	"context"
	"sync"

	"github.com/Strob0t/PageForge/internal/domain"
	"github.com/Strob0t/PageForge/internal/domain/task"
)

// Store holds task state in memory. Safe for concurrent use by multiple
// in-flight pipelines; last writer wins for a given task ID.
type Store struct {
	mu     sync.RWMutex
	states map[string]task.State
}

// New creates an empty in-memory state store.
func New() *Store {
	return &Store{states: make(map[string]task.State)}
}

// Get returns a copy of the stored state, or domain.ErrNotFound.
func (s *Store) Get(_ context.Context, taskID string) (*task.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

// Set stores the state, replacing any previous entry for the task.
func (s *Store) Set(_ context.Context, taskID string, state *task.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[taskID] = *state
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
