package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

const runsSchema = `CREATE TABLE IF NOT EXISTS workflow_runs (
	id            TEXT PRIMARY KEY,
	workflow_key  TEXT NOT NULL,
	workflow_name TEXT NOT NULL DEFAULT '',
	mode          TEXT NOT NULL,
	step_name     TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL,
	status_name   TEXT NOT NULL DEFAULT '',
	return_code   TEXT NOT NULL DEFAULT '',
	polls         INT NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS workflow_runs_key_idx ON workflow_runs (workflow_key);`

const runColumns = "id, workflow_key, workflow_name, mode, step_name, state, status_name, return_code, polls, error, started_at, finished_at"

// PostgresRunStore is a PostgreSQL implementation of the RunStore interface.
type PostgresRunStore struct {
	db *pgxpool.Pool
}

// NewPostgresRunStore creates a new PostgresRunStore.
func NewPostgresRunStore(db *pgxpool.Pool) *PostgresRunStore {
	return &PostgresRunStore{db: db}
}

// Migrate creates the runs table if it does not exist.
func (s *PostgresRunStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, runsSchema); err != nil {
		return fmt.Errorf("failed to migrate workflow_runs: %w", err)
	}
	return nil
}

// Save inserts run, or replaces the row with the same ID.
func (s *PostgresRunStore) Save(ctx context.Context, run *models.Run) error {
	_, err := s.db.Exec(ctx, `INSERT INTO workflow_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			status_name = EXCLUDED.status_name,
			return_code = EXCLUDED.return_code,
			polls = EXCLUDED.polls,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		run.ID, run.WorkflowKey, run.WorkflowName, run.Mode, run.StepName, run.State,
		run.StatusName, run.ReturnCode, run.Polls, run.Error, run.StartedAt, run.FinishedAt)
	return err
}

// Get retrieves a run by its ID.
func (s *PostgresRunStore) Get(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRow(ctx, "SELECT "+runColumns+" FROM workflow_runs WHERE id = $1", id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns runs matching filter, newest first.
func (s *PostgresRunStore) List(ctx context.Context, filter RunFilter) ([]*models.Run, error) {
	query := "SELECT " + runColumns + " FROM workflow_runs WHERE ($1 = '' OR workflow_key = $1) AND ($2 = '' OR state = $2) ORDER BY started_at DESC, id DESC"
	args := []any{filter.WorkflowKey, filter.State}
	if filter.Limit > 0 {
		query += " LIMIT $3"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*models.Run, error) {
	var run models.Run
	err := row.Scan(&run.ID, &run.WorkflowKey, &run.WorkflowName, &run.Mode, &run.StepName, &run.State,
		&run.StatusName, &run.ReturnCode, &run.Polls, &run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
