package repository

import (
	"context"
	"errors"

	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunFilter narrows a run listing. Zero values match everything.
type RunFilter struct {
	WorkflowKey string
	State       string
	Limit       int
}

// RunStore is an interface for recording orchestration outcomes.
type RunStore interface {
	// Save records a finished run.
	Save(ctx context.Context, run *models.Run) error
	// Get retrieves a run by its ID.
	Get(ctx context.Context, id string) (*models.Run, error)
	// List returns runs matching filter, newest first.
	List(ctx context.Context, filter RunFilter) ([]*models.Run, error)
}
