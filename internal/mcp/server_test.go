package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zowe/zowe-cli-sub009/internal/auth"
	"github.com/zowe/zowe-cli-sub009/internal/emulator"
	"github.com/zowe/zowe-cli-sub009/internal/repository"
	"github.com/zowe/zowe-cli-sub009/internal/services"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

func newTestServer() *Server {
	backend := emulator.New(
		emulator.WithKeyGenerator(emulator.SequentialKeys()),
		emulator.WithDefinition(emulator.Definition{
			Path: "/u/wf.xml",
			Definition: models.WorkflowDefinition{
				WorkflowID: "wf",
				Steps: []models.StepNode{
					{Name: "Step1", StepNumber: "1", SubmitAs: "JCL"},
					{Name: "Step2", StepNumber: "2"},
				},
			},
		}),
	)
	svc := services.NewWorkflowService(backend, nil,
		services.WithRunStore(repository.NewMemoryRunStore()),
		services.WithWaitDefaults(time.Millisecond, 2*time.Millisecond, 5*time.Second),
	)
	return NewServer(svc, "test")
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), ctx context.Context, args map[string]interface{}) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text, res.IsError
}

func TestToolsLifecycle(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	out, isErr := call(t, s.handleCreateWorkflow, ctx, map[string]interface{}{
		"name":            "W1",
		"definition_file": "/u/wf.xml",
		"system":          "SYS1",
		"owner":           "OWNER1",
		"variables":       "a=1,b=2",
	})
	require.False(t, isErr, out)
	var created models.CreatedWorkflow
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "k1", created.WorkflowKey)

	out, isErr = call(t, s.handleResolveKey, ctx, map[string]interface{}{"name": "W1"})
	require.False(t, isErr, out)
	assert.Equal(t, "k1", out)

	out, isErr = call(t, s.handleStartWorkflow, ctx, map[string]interface{}{"key": "k1", "wait": true})
	require.False(t, isErr, out)
	var res services.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, services.StateSucceeded, res.State)

	out, isErr = call(t, s.handleStepSummaries, ctx, map[string]interface{}{"key": "k1"})
	require.False(t, isErr, out)
	var summaries []models.StepSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, models.StepComplete, summaries[1].State)

	out, isErr = call(t, s.handleListRuns, ctx, map[string]interface{}{"key": "k1"})
	require.False(t, isErr, out)
	var runs []models.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)

	out, isErr = call(t, s.keyedMutation("archive_workflow"), ctx, map[string]interface{}{"key": "k1"})
	require.False(t, isErr, out)

	out, isErr = call(t, s.handleResolveKey, ctx, map[string]interface{}{"name": "W1", "archived": true})
	require.False(t, isErr, out)
	assert.Equal(t, "k1", out)

	_, isErr = call(t, s.keyedMutation("delete_archived_workflow"), ctx, map[string]interface{}{"key": "k1"})
	assert.False(t, isErr)
}

func TestToolErrors(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	out, isErr := call(t, s.handleGetWorkflow, ctx, map[string]interface{}{})
	assert.True(t, isErr)
	assert.Contains(t, out, "key")

	out, isErr = call(t, s.handleGetWorkflow, ctx, map[string]interface{}{"key": "missing"})
	assert.True(t, isErr)
	assert.Contains(t, out, "404")

	out, isErr = call(t, s.handleResolveKey, ctx, map[string]interface{}{"name": "nobody"})
	assert.True(t, isErr)
	assert.Contains(t, out, "nobody")

	_, isErr = call(t, s.handleCreateWorkflow, ctx, map[string]interface{}{"variables": "broken"})
	assert.True(t, isErr)
}

func TestMutationsRequireWriteScope(t *testing.T) {
	s := newTestServer()
	readOnly := auth.WithPrincipal(context.Background(), auth.Principal{
		Subject: "viewer",
		Method:  auth.MethodBearer,
		Scopes:  []string{auth.ScopeWorkflowRead},
	})

	out, isErr := call(t, s.keyedMutation("delete_workflow"), readOnly, map[string]interface{}{"key": "k1"})
	assert.True(t, isErr)
	assert.Contains(t, out, auth.ScopeWorkflowWrite)

	out, isErr = call(t, s.handleListWorkflows, readOnly, map[string]interface{}{})
	assert.False(t, isErr, out)
	assert.Equal(t, "[]", out)
}

func TestMountHTTPHandlersAppliesMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	MountHTTPHandlers(mux, newTestServer().GetMCPServer(), deny)

	for _, path := range []string{"/mcp", "/mcp/sse", "/mcp/message"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
