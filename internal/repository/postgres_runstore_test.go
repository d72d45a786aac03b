package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

func TestPostgresRunStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	store, pool, err := OpenPostgresRunStore(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Save and Get", func(t *testing.T) {
		run := &models.Run{
			ID:          uuid.New().String(),
			WorkflowKey: "k1",
			Mode:        "workflow",
			State:       "Succeeded",
			StatusName:  models.StatusComplete,
			Polls:       2,
			StartedAt:   base,
			FinishedAt:  base.Add(time.Minute),
		}
		require.NoError(t, store.Save(ctx, run))

		got, err := store.Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.WorkflowKey, got.WorkflowKey)
		assert.Equal(t, run.State, got.State)
		assert.Equal(t, run.Polls, got.Polls)
		assert.True(t, run.FinishedAt.Equal(got.FinishedAt))

		run.State = "Failed"
		run.Error = "boom"
		require.NoError(t, store.Save(ctx, run))
		got, err = store.Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, "Failed", got.State)
		assert.Equal(t, "boom", got.Error)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("List", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Save(ctx, &models.Run{
				ID:          uuid.New().String(),
				WorkflowKey: "k2",
				Mode:        "step",
				State:       "StepCompleted",
				StartedAt:   base.Add(time.Duration(i+1) * time.Hour),
				FinishedAt:  base.Add(time.Duration(i+1) * time.Hour),
			}))
		}

		runs, err := store.List(ctx, RunFilter{WorkflowKey: "k2"})
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

		runs, err = store.List(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})
}
