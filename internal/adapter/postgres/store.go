package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/PageForge/internal/domain"
	"github.com/Strob0t/PageForge/internal/domain/task"
)

// Store implements the statestore port on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Postgres-backed state store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the stored state for a task, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, taskID string) (*task.State, error) {
	const q = `SELECT repo_name, last_document, repo_url, deployment_url, round, updated_at
		FROM task_state WHERE task_id = $1`

	var st task.State
	err := s.pool.QueryRow(ctx, q, taskID).Scan(
		&st.RepoName, &st.LastDocument, &st.RepoURL, &st.DeploymentURL, &st.Round, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get task state: %w", err)
	}
	return &st, nil
}

// Set stores the state, replacing any previous entry for the task.
// repo_name is deliberately absent from the update list: it is immutable
// once set for a task.
func (s *Store) Set(ctx context.Context, taskID string, state *task.State) error {
	const q = `INSERT INTO task_state (task_id, repo_name, last_document, repo_url, deployment_url, round, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task_id) DO UPDATE SET
			last_document = EXCLUDED.last_document,
			repo_url = EXCLUDED.repo_url,
			deployment_url = EXCLUDED.deployment_url,
			round = EXCLUDED.round,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, q, taskID,
		state.RepoName, state.LastDocument, state.RepoURL, state.DeploymentURL, state.Round, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set task state: %w", err)
	}
	return nil
}
