package services

import (
	"context"

	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// WorkflowBackend is the set of remote operations the workflow service is
// built on. Implementations validate their inputs before any I/O.
type WorkflowBackend interface {
	// Create registers a new workflow instance from a definition file.
	Create(ctx context.Context, req workflow.CreateRequest) (*models.CreatedWorkflow, error)
	// Start asks the service to begin running the workflow. It returns once
	// the request is acknowledged; execution happens server-side.
	Start(ctx context.Context, key string, opts workflow.StartOptions) error
	// Properties fetches a snapshot of the workflow instance.
	Properties(ctx context.Context, key string, opts workflow.PropertiesOptions) (*models.WorkflowInstance, error)
	Cancel(ctx context.Context, key string) (*models.CanceledWorkflow, error)
	Delete(ctx context.Context, key string) error
	Archive(ctx context.Context, key string) (*models.ArchivedWorkflow, error)
	DeleteArchived(ctx context.Context, key string) error
	ListActive(ctx context.Context, filters workflow.FilterSet) ([]models.WorkflowSummary, error)
	ListArchived(ctx context.Context, filters workflow.FilterSet) ([]models.ArchivedWorkflowSummary, error)
	// Definition describes a workflow definition file without creating an
	// instance.
	Definition(ctx context.Context, path string, opts workflow.PropertiesOptions) (*models.WorkflowDefinition, error)
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
