package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// MockBackend is a testify mock of WorkflowBackend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Create(ctx context.Context, req workflow.CreateRequest) (*models.CreatedWorkflow, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(*models.CreatedWorkflow)
	return out, args.Error(1)
}

func (m *MockBackend) Start(ctx context.Context, key string, opts workflow.StartOptions) error {
	return m.Called(ctx, key, opts).Error(0)
}

func (m *MockBackend) Properties(ctx context.Context, key string, opts workflow.PropertiesOptions) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, key, opts)
	out, _ := args.Get(0).(*models.WorkflowInstance)
	return out, args.Error(1)
}

func (m *MockBackend) Cancel(ctx context.Context, key string) (*models.CanceledWorkflow, error) {
	args := m.Called(ctx, key)
	out, _ := args.Get(0).(*models.CanceledWorkflow)
	return out, args.Error(1)
}

func (m *MockBackend) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockBackend) Archive(ctx context.Context, key string) (*models.ArchivedWorkflow, error) {
	args := m.Called(ctx, key)
	out, _ := args.Get(0).(*models.ArchivedWorkflow)
	return out, args.Error(1)
}

func (m *MockBackend) DeleteArchived(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockBackend) ListActive(ctx context.Context, filters workflow.FilterSet) ([]models.WorkflowSummary, error) {
	args := m.Called(ctx, filters)
	out, _ := args.Get(0).([]models.WorkflowSummary)
	return out, args.Error(1)
}

func (m *MockBackend) ListArchived(ctx context.Context, filters workflow.FilterSet) ([]models.ArchivedWorkflowSummary, error) {
	args := m.Called(ctx, filters)
	out, _ := args.Get(0).([]models.ArchivedWorkflowSummary)
	return out, args.Error(1)
}

func (m *MockBackend) Definition(ctx context.Context, path string, opts workflow.PropertiesOptions) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, path, opts)
	out, _ := args.Get(0).(*models.WorkflowDefinition)
	return out, args.Error(1)
}
