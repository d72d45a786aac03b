package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zowe/zowe-cli-sub009/internal/repository"
	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

func newService(backend WorkflowBackend, opts ...ServiceOption) *WorkflowService {
	opts = append([]ServiceOption{WithWaitDefaults(time.Millisecond, 2*time.Millisecond, 5*time.Second)}, opts...)
	return NewWorkflowService(backend, nil, opts...)
}

func TestResolveKeyByName(t *testing.T) {
	ctx := context.Background()
	filter := workflow.FilterSet{Name: "dup"}

	t.Run("no match", func(t *testing.T) {
		backend := new(MockBackend)
		backend.On("ListActive", mock.Anything, filter).Return([]models.WorkflowSummary{}, nil)

		key, ok, err := newService(backend).ResolveKeyByName(ctx, "dup")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, key)
	})

	t.Run("single match", func(t *testing.T) {
		backend := new(MockBackend)
		backend.On("ListActive", mock.Anything, filter).Return([]models.WorkflowSummary{
			{WorkflowKey: "k1", WorkflowName: "dup"},
			{WorkflowKey: "k9", WorkflowName: "dup-other"},
		}, nil)

		key, ok, err := newService(backend).ResolveKeyByName(ctx, "dup")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "k1", key)
	})

	t.Run("ambiguous", func(t *testing.T) {
		backend := new(MockBackend)
		backend.On("ListActive", mock.Anything, filter).Return([]models.WorkflowSummary{
			{WorkflowKey: "k1", WorkflowName: "dup"},
			{WorkflowKey: "k2", WorkflowName: "dup"},
		}, nil)

		_, _, err := newService(backend).ResolveKeyByName(ctx, "dup")
		var amb *workflow.AmbiguousMatchError
		require.ErrorAs(t, err, &amb)
		assert.Equal(t, []string{"k1", "k2"}, amb.Keys)
	})

	t.Run("empty name", func(t *testing.T) {
		backend := new(MockBackend)
		_, _, err := newService(backend).ResolveKeyByName(ctx, "")
		var verr *workflow.ValidationError
		require.ErrorAs(t, err, &verr)
		backend.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything)
	})
}

func TestResolveArchivedKeyByName(t *testing.T) {
	backend := new(MockBackend)
	backend.On("ListArchived", mock.Anything, workflow.FilterSet{Name: "old"}).Return([]models.ArchivedWorkflowSummary{
		{WorkflowKey: "a1", WorkflowName: "old"},
	}, nil)

	key, ok, err := newService(backend).ResolveArchivedKeyByName(context.Background(), "old")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a1", key)
}

func TestGetStepSummaries(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Properties", mock.Anything, "k1", withSteps).Return(&models.WorkflowInstance{
		Steps: []models.StepNode{
			{Name: "root", StepNumber: "1", Children: []models.StepNode{
				{Name: "child1", StepNumber: "1.1", Children: []models.StepNode{{Name: "grandchild", StepNumber: "1.1.1"}}},
				{Name: "child2", StepNumber: "1.2", Template: "x"},
			}},
		},
	}, nil)

	summaries, err := newService(backend).GetStepSummaries(context.Background(), "k1")
	require.NoError(t, err)
	require.Len(t, summaries, 4)
	assert.Equal(t, "grandchild", summaries[2].Name)
	assert.Equal(t, "TSO", summaries[3].Misc)
}

func TestMutationErrorsPropagateUnchanged(t *testing.T) {
	backend := new(MockBackend)
	conflict := &workflow.RemoteConflictError{Op: "archive workflow", Status: 409, Body: "already archived"}
	backend.On("Archive", mock.Anything, "k1").Return(nil, conflict).Once()

	_, err := newService(backend).ArchiveWorkflow(context.Background(), "k1")
	assert.Same(t, conflict, err)
	backend.AssertNumberOfCalls(t, "Archive", 1)
}

func TestStartAndWaitRecordsRun(t *testing.T) {
	backend := new(MockBackend)
	yes := true
	start := workflow.StartOptions{StepName: "Step1", PerformSubsequent: &yes}
	backend.On("Start", mock.Anything, "k1", start).Return(nil).Once()
	backend.On("Properties", mock.Anything, "k1", withSteps).Return(running("Step1"), nil).Once()
	done := finished(models.StatusComplete)
	done.WorkflowName = "W1"
	backend.On("Properties", mock.Anything, "k1", withSteps).Return(done, nil).Once()

	store := repository.NewMemoryRunStore()
	svc := newService(backend, WithRunStore(store))

	res, err := svc.StartAndWait(context.Background(), "k1", start, WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	backend.AssertExpectations(t)

	runs, err := svc.Runs(context.Background(), repository.RunFilter{WorkflowKey: "k1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ModeStepSubsequent, runs[0].Mode)
	assert.Equal(t, string(StateSucceeded), runs[0].State)
	assert.Equal(t, "W1", runs[0].WorkflowName)
	assert.Equal(t, 2, runs[0].Polls)
}

func TestStartFailureSkipsWait(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Start", mock.Anything, "k1", workflow.StartOptions{}).
		Return(&workflow.RemoteConflictError{Op: "start workflow", Status: 409}).Once()

	_, err := newService(backend).StartAndWait(context.Background(), "k1", workflow.StartOptions{}, WaitOptions{})
	assert.True(t, workflow.IsConflict(err))
	backend.AssertNotCalled(t, "Properties", mock.Anything, mock.Anything, mock.Anything)
}

func TestWaitForCompletionRecordsFailure(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Properties", mock.Anything, "k1", withSteps).Return(finished(models.StatusFailed), nil).Once()

	store := repository.NewMemoryRunStore()
	svc := newService(backend, WithRunStore(store))
	_, err := svc.WaitForCompletion(context.Background(), "k1", WaitOptions{})
	var tf *workflow.TerminalFailure
	require.ErrorAs(t, err, &tf)

	runs, err := svc.Runs(context.Background(), repository.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, string(StateFailed), runs[0].State)
	assert.Equal(t, models.StatusFailed, runs[0].StatusName)
	assert.NotEmpty(t, runs[0].Error)
}

func TestWaitAll(t *testing.T) {
	backend := new(MockBackend)
	for _, key := range []string{"k1", "k2"} {
		snap := finished(models.StatusComplete)
		snap.WorkflowKey = key
		backend.On("Properties", mock.Anything, key, withSteps).Return(snap, nil).Once()
	}

	results, err := newService(backend).WaitAll(context.Background(), []string{"k1", "k2"}, WaitOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "k1", results[0].Key)
	assert.Equal(t, "k2", results[1].Key)
}

func TestWaitAllFirstFailureWins(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Properties", mock.Anything, "bad", withSteps).Return(finished(models.StatusCanceled), nil).Once()
	backend.On("Properties", mock.Anything, "slow", withSteps).Return(running("Step1"), nil)

	_, err := newService(backend).WaitAll(context.Background(), []string{"bad", "slow"}, WaitOptions{Interval: time.Hour})
	var tf *workflow.TerminalFailure
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, "bad", tf.Key)
}

func TestRunsWithoutStore(t *testing.T) {
	runs, err := newService(new(MockBackend)).Runs(context.Background(), repository.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}
