package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zowe/zowe-cli-sub009/internal/emulator"
	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

const base = "/zosmf/workflow/rest/1.0"

func newTestRouter() http.Handler {
	backend := emulator.New(
		emulator.WithKeyGenerator(emulator.SequentialKeys()),
		emulator.WithDefinition(emulator.Definition{
			Path: "/u/wf.xml",
			Definition: models.WorkflowDefinition{
				WorkflowID: "wf",
				Steps:      []models.StepNode{{Name: "Step1", StepNumber: "1"}},
			},
		}),
	)
	return NewRouter(backend, "zwf-test")
}

func do(t *testing.T, h http.Handler, method, target, body string, csrf bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if csrf {
		req.Header.Set(workflow.CSRFHeader, "true")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(), http.MethodGet, "/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "zwf-test", status.Service)
}

func TestCSRFHeaderRequired(t *testing.T) {
	rec := do(t, newTestRouter(), http.MethodGet, base+"/workflows", "", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestWorkflowLifecycle(t *testing.T) {
	h := newTestRouter()

	rec := do(t, h, http.MethodPost, base+"/workflows",
		`{"workflowName":"W1","workflowDefinitionFile":"/u/wf.xml","system":"SYS1","owner":"OWNER1"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.CreatedWorkflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "k1", created.WorkflowKey)

	rec = do(t, h, http.MethodPut, base+"/workflows/k1/operations/start", "", true)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Body.String())

	rec = do(t, h, http.MethodPut, base+"/workflows/k1/operations/start", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/workflows/k1?returnData=steps", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.WorkflowInstance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "Step1", snap.AutomationStatus.CurrentStepName)
	require.Len(t, snap.Steps, 1)

	rec = do(t, h, http.MethodGet, base+"/workflows?workflowName=W%2A", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.WorkflowList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Workflows, 1)
	assert.Equal(t, "W1", list.Workflows[0].WorkflowName)

	rec = do(t, h, http.MethodDelete, base+"/workflows/k1", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/workflows/k1", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Detail, "k1")
}

func TestCreateValidationError(t *testing.T) {
	rec := do(t, newTestRouter(), http.MethodPost, base+"/workflows", `{"workflowName":"W1"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveConflict(t *testing.T) {
	h := newTestRouter()
	rec := do(t, h, http.MethodPost, base+"/workflows",
		`{"workflowName":"W1","workflowDefinitionFile":"/u/wf.xml","system":"SYS1","owner":"OWNER1"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/workflows/k1/operations/archive", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/workflows/k1/operations/archive", "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/archivedworkflows?orderBy=desc", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.ArchivedWorkflowList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.ArchivedWorkflows, 1)

	rec = do(t, h, http.MethodDelete, base+"/archivedworkflows/k1", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDefinitionRequiresPath(t *testing.T) {
	h := newTestRouter()
	rec := do(t, h, http.MethodGet, base+"/workflowDefinition", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/workflowDefinition?definitionFilePath=%2Fu%2Fwf.xml&returnData=steps", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var def models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))
	assert.Equal(t, "wf", def.WorkflowID)
	assert.Len(t, def.Steps, 1)
}
