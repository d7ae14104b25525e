// Package natskv implements the statestore port on a NATS JetStream
// KeyValue bucket, letting task state survive a process restart.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/PageForge/internal/domain"
	"github.com/Strob0t/PageForge/internal/domain/task"
)

// Store persists task state as JSON values in a NATS KV bucket.
type Store struct {
	kv jetstream.KeyValue
}

// New creates a NATS KV-backed state store.
func New(kv jetstream.KeyValue) *Store {
	return &Store{kv: kv}
}

// Get returns the stored state for a task, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, taskID string) (*task.State, error) {
	entry, err := s.kv.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("kv get: %w", err)
	}

	var st task.State
	if err := json.Unmarshal(entry.Value(), &st); err != nil {
		return nil, fmt.Errorf("kv unmarshal state: %w", err)
	}
	return &st, nil
}

// Set stores the state, replacing any previous entry for the task.
func (s *Store) Set(ctx context.Context, taskID string, state *task.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("kv marshal state: %w", err)
	}
	if _, err := s.kv.Put(ctx, taskID, data); err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return nil
}
