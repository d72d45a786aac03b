package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/zowe/zowe-cli-sub009/internal/repository"
	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

const instrumentationName = "github.com/zowe/zowe-cli-sub009/internal/services"

// WorkflowService is the programmatic entry point for workflow automation.
// It holds no per-workflow state, so one service can drive many sessions
// concurrently.
type WorkflowService struct {
	backend  WorkflowBackend
	poller   *Poller
	runs     repository.RunStore
	logger   Logger
	tracer   trace.Tracer
	defaults WaitOptions
}

// ServiceOption configures a WorkflowService.
type ServiceOption func(*WorkflowService)

// WithRunStore records every wait outcome in store.
func WithRunStore(store repository.RunStore) ServiceOption {
	return func(s *WorkflowService) { s.runs = store }
}

// WithWaitDefaults sets the poll timing used when a wait leaves it unset.
func WithWaitDefaults(interval, maxInterval, timeout time.Duration) ServiceOption {
	return func(s *WorkflowService) {
		s.defaults.Interval = interval
		s.defaults.MaxInterval = maxInterval
		s.defaults.Timeout = timeout
	}
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(backend WorkflowBackend, logger Logger, opts ...ServiceOption) *WorkflowService {
	if logger == nil {
		logger = nopLogger{}
	}
	s := &WorkflowService{
		backend: backend,
		poller:  NewPoller(backend, logger),
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWorkflow creates a workflow instance and returns its key.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, req workflow.CreateRequest) (*models.CreatedWorkflow, error) {
	ctx, span := s.tracer.Start(ctx, "CreateWorkflow", trace.WithAttributes(attribute.String("workflow.name", req.WorkflowName)))
	defer span.End()

	created, err := s.backend.Create(ctx, req)
	if err != nil {
		return nil, spanError(span, err)
	}
	s.logger.Info("workflow created", "workflow_name", req.WorkflowName, "workflow_key", created.WorkflowKey)
	return created, nil
}

// StartWorkflow asks the service to start the workflow. It does not wait.
func (s *WorkflowService) StartWorkflow(ctx context.Context, key string, opts workflow.StartOptions) error {
	ctx, span := s.tracer.Start(ctx, "StartWorkflow", trace.WithAttributes(attribute.String("workflow.key", key)))
	defer span.End()

	if err := s.backend.Start(ctx, key, opts); err != nil {
		return spanError(span, err)
	}
	s.logger.Info("workflow started", "workflow_key", key, "step", opts.StepName, "subsequent", opts.Subsequent())
	return nil
}

// WaitForCompletion waits for an already started workflow or step to reach
// a terminal condition. The outcome is recorded in the run store, if any.
func (s *WorkflowService) WaitForCompletion(ctx context.Context, key string, opts WaitOptions) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "WaitForCompletion", trace.WithAttributes(
		attribute.String("workflow.key", key),
		attribute.String("workflow.step", opts.StepName),
	))
	defer span.End()

	opts = s.applyDefaults(opts)
	started := time.Now()
	res, err := s.poller.Wait(ctx, key, opts)
	s.record(ctx, key, opts, started, res, err)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.String("workflow.state", string(res.State)), attribute.Int("workflow.polls", res.Polls))
	return res, nil
}

// StartAndWait starts the workflow and waits for it. The wait follows the
// step scope of opts.
func (s *WorkflowService) StartAndWait(ctx context.Context, key string, opts workflow.StartOptions, wait WaitOptions) (*Result, error) {
	if err := s.StartWorkflow(ctx, key, opts); err != nil {
		return nil, err
	}
	wait.StepName = opts.StepName
	wait.PerformSubsequent = opts.Subsequent()
	return s.WaitForCompletion(ctx, key, wait)
}

// WaitAll waits for several workflows concurrently. It returns the results
// in key order; the first failure cancels the remaining waits.
func (s *WorkflowService) WaitAll(ctx context.Context, keys []string, opts WaitOptions) ([]*Result, error) {
	results := make([]*Result, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			res, err := s.WaitForCompletion(gctx, key, opts)
			if err != nil {
				return fmt.Errorf("workflow %s: %w", key, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// GetStepSummaries returns the flattened step list of a workflow.
func (s *WorkflowService) GetStepSummaries(ctx context.Context, key string) ([]models.StepSummary, error) {
	ctx, span := s.tracer.Start(ctx, "GetStepSummaries", trace.WithAttributes(attribute.String("workflow.key", key)))
	defer span.End()

	snap, err := s.backend.Properties(ctx, key, workflow.PropertiesOptions{IncludeSteps: true})
	if err != nil {
		return nil, spanError(span, err)
	}
	return workflow.Flatten(snap.Steps), nil
}

// GetProperties returns a workflow snapshot.
func (s *WorkflowService) GetProperties(ctx context.Context, key string, opts workflow.PropertiesOptions) (*models.WorkflowInstance, error) {
	ctx, span := s.tracer.Start(ctx, "GetProperties", trace.WithAttributes(attribute.String("workflow.key", key)))
	defer span.End()

	snap, err := s.backend.Properties(ctx, key, opts)
	if err != nil {
		return nil, spanError(span, err)
	}
	return snap, nil
}

// CancelWorkflow cancels a running workflow and returns its name.
func (s *WorkflowService) CancelWorkflow(ctx context.Context, key string) (*models.CanceledWorkflow, error) {
	ctx, span := s.tracer.Start(ctx, "CancelWorkflow", trace.WithAttributes(attribute.String("workflow.key", key)))
	defer span.End()

	out, err := s.backend.Cancel(ctx, key)
	if err != nil {
		return nil, spanError(span, err)
	}
	s.logger.Info("workflow canceled", "workflow_key", key, "workflow_name", out.WorkflowName)
	return out, nil
}

// DeleteWorkflow removes an active workflow.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "DeleteWorkflow", trace.WithAttributes(attribute.String("workflow.key", key)))
	defer span.End()

	if err := s.backend.Delete(ctx, key); err != nil {
		return spanError(span, err)
	}
	s.logger.Info("workflow deleted", "workflow_key", key)
	return nil
}

// ArchiveWorkflow moves a workflow to the archived registry.
func (s *WorkflowService) ArchiveWorkflow(ctx context.Context, key string) (*models.ArchivedWorkflow, error) {
	ctx, span := s.tracer.Start(ctx, "ArchiveWorkflow", trace.WithAttributes(attribute.String("workflow.key", key)))
	defer span.End()

	out, err := s.backend.Archive(ctx, key)
	if err != nil {
		return nil, spanError(span, err)
	}
	s.logger.Info("workflow archived", "workflow_key", key)
	return out, nil
}

// DeleteArchivedWorkflow removes an archived workflow.
func (s *WorkflowService) DeleteArchivedWorkflow(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "DeleteArchivedWorkflow", trace.WithAttributes(attribute.String("workflow.key", key)))
	defer span.End()

	if err := s.backend.DeleteArchived(ctx, key); err != nil {
		return spanError(span, err)
	}
	s.logger.Info("archived workflow deleted", "workflow_key", key)
	return nil
}

// ListWorkflows lists active workflows.
func (s *WorkflowService) ListWorkflows(ctx context.Context, filters workflow.FilterSet) ([]models.WorkflowSummary, error) {
	ctx, span := s.tracer.Start(ctx, "ListWorkflows")
	defer span.End()

	out, err := s.backend.ListActive(ctx, filters)
	if err != nil {
		return nil, spanError(span, err)
	}
	return out, nil
}

// ListArchivedWorkflows lists archived workflows.
func (s *WorkflowService) ListArchivedWorkflows(ctx context.Context, filters workflow.FilterSet) ([]models.ArchivedWorkflowSummary, error) {
	ctx, span := s.tracer.Start(ctx, "ListArchivedWorkflows")
	defer span.End()

	out, err := s.backend.ListArchived(ctx, filters)
	if err != nil {
		return nil, spanError(span, err)
	}
	return out, nil
}

// ResolveKeyByName finds the key of the active workflow named name. No
// match returns ok == false and a nil error; more than one match returns
// *workflow.AmbiguousMatchError.
func (s *WorkflowService) ResolveKeyByName(ctx context.Context, name string) (string, bool, error) {
	if err := workflow.RequireNotEmpty("workflowName", name); err != nil {
		return "", false, err
	}
	list, err := s.ListWorkflows(ctx, workflow.FilterSet{Name: name})
	if err != nil {
		return "", false, err
	}
	var keys []string
	for _, w := range list {
		if w.WorkflowName == name {
			keys = append(keys, w.WorkflowKey)
		}
	}
	return pickKey(name, keys)
}

// ResolveArchivedKeyByName is ResolveKeyByName over the archived registry.
func (s *WorkflowService) ResolveArchivedKeyByName(ctx context.Context, name string) (string, bool, error) {
	if err := workflow.RequireNotEmpty("workflowName", name); err != nil {
		return "", false, err
	}
	list, err := s.ListArchivedWorkflows(ctx, workflow.FilterSet{Name: name})
	if err != nil {
		return "", false, err
	}
	var keys []string
	for _, w := range list {
		if w.WorkflowName == name {
			keys = append(keys, w.WorkflowKey)
		}
	}
	return pickKey(name, keys)
}

// GetDefinition describes a workflow definition file.
func (s *WorkflowService) GetDefinition(ctx context.Context, path string, opts workflow.PropertiesOptions) (*models.WorkflowDefinition, error) {
	ctx, span := s.tracer.Start(ctx, "GetDefinition", trace.WithAttributes(attribute.String("workflow.definition", path)))
	defer span.End()

	out, err := s.backend.Definition(ctx, path, opts)
	if err != nil {
		return nil, spanError(span, err)
	}
	return out, nil
}

// Runs lists recorded wait outcomes. Without a run store it returns an
// empty list.
func (s *WorkflowService) Runs(ctx context.Context, filter repository.RunFilter) ([]*models.Run, error) {
	if s.runs == nil {
		return []*models.Run{}, nil
	}
	return s.runs.List(ctx, filter)
}

func (s *WorkflowService) applyDefaults(opts WaitOptions) WaitOptions {
	if opts.Interval == 0 {
		opts.Interval = s.defaults.Interval
	}
	if opts.MaxInterval == 0 {
		opts.MaxInterval = s.defaults.MaxInterval
	}
	if opts.Timeout == 0 {
		opts.Timeout = s.defaults.Timeout
	}
	return opts
}

// record saves the outcome of one wait. Store failures are logged and do
// not change the wait result.
func (s *WorkflowService) record(ctx context.Context, key string, opts WaitOptions, started time.Time, res *Result, waitErr error) {
	if s.runs == nil {
		return
	}
	run := &models.Run{
		ID:          uuid.New().String(),
		WorkflowKey: key,
		Mode:        opts.Mode(),
		StepName:    opts.StepName,
		StartedAt:   started.UTC(),
		FinishedAt:  time.Now().UTC(),
	}

	var snap *models.WorkflowInstance
	var terminal *workflow.TerminalFailure
	var timeout *workflow.PollTimeoutError
	switch {
	case res != nil:
		run.State = string(res.State)
		run.ReturnCode = res.ReturnCode
		run.Polls = res.Polls
		snap = res.Snapshot
	case errors.As(waitErr, &terminal):
		run.State = string(StateFailed)
		snap = terminal.Snapshot
	case errors.As(waitErr, &timeout):
		run.State = string(StateTimedOut)
		run.Polls = timeout.Polls
		snap = timeout.Last
	default:
		run.State = "Error"
	}
	if waitErr != nil {
		run.Error = waitErr.Error()
	}
	if snap != nil {
		run.WorkflowName = snap.WorkflowName
		run.StatusName = snap.StatusName
	}

	// The caller's context may already be done; the record should still land.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Save(saveCtx, run); err != nil {
		s.logger.Error("failed to record run", "workflow_key", key, "error", err)
	}
}

func pickKey(name string, keys []string) (string, bool, error) {
	switch len(keys) {
	case 0:
		return "", false, nil
	case 1:
		return keys[0], true, nil
	default:
		return "", false, &workflow.AmbiguousMatchError{Name: name, Keys: keys}
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
