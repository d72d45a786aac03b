package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 64 << 10

// ZosmfClient is an HTTP implementation of WorkflowBackend that talks to the
// z/OSMF workflow REST service.
type ZosmfClient struct {
	baseURL    string
	version    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     Logger
}

// ClientOption configures a ZosmfClient.
type ClientOption func(*ZosmfClient)

// WithHTTPClient sets the HTTP client used for requests. Authentication and
// TLS settings live on this client's transport.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(z *ZosmfClient) { z.httpClient = c }
}

// WithVersion selects the REST service version path segment.
func WithVersion(v string) ClientOption {
	return func(z *ZosmfClient) { z.version = v }
}

// WithRateLimit bounds the request rate across every caller sharing the
// client. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(z *ZosmfClient) {
		if rps <= 0 {
			z.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		z.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the client logger.
func WithLogger(l Logger) ClientOption {
	return func(z *ZosmfClient) { z.logger = l }
}

// NewZosmfClient creates a client for the service at baseURL, e.g.
// https://host:443 or https://gateway:7554/ibmzosmf/api/v1.
func NewZosmfClient(baseURL string, opts ...ClientOption) (*ZosmfClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, &workflow.ValidationError{Field: "baseURL", Message: "must not be empty"}
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	c := &ZosmfClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    workflow.DefaultVersion,
		httpClient: http.DefaultClient,
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := workflow.ValidateVersion(c.version); err != nil {
		return nil, err
	}
	return c, nil
}

// Create creates a workflow instance.
func (c *ZosmfClient) Create(ctx context.Context, req workflow.CreateRequest) (*models.CreatedWorkflow, error) {
	req = req.Normalize()
	if err := workflow.ValidateCreate(req); err != nil {
		return nil, err
	}
	var out models.CreatedWorkflow
	err := c.do(ctx, "create workflow", http.MethodPost, c.resource(workflow.WorkflowsResource), req, &out, http.StatusCreated, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Start starts the workflow, or a single step of it when opts.StepName is set.
func (c *ZosmfClient) Start(ctx context.Context, key string, opts workflow.StartOptions) error {
	if err := workflow.ValidateStart(key, opts); err != nil {
		return err
	}
	var body interface{}
	if opts != (workflow.StartOptions{}) {
		body = opts
	}
	return c.do(ctx, "start workflow", http.MethodPut, c.instance(key, workflow.StartOperation), body, nil, http.StatusAccepted, http.StatusOK)
}

// Properties returns a snapshot of the workflow instance.
func (c *ZosmfClient) Properties(ctx context.Context, key string, opts workflow.PropertiesOptions) (*models.WorkflowInstance, error) {
	if err := workflow.ValidateKey(key); err != nil {
		return nil, err
	}
	path := c.instance(key, "")
	if rd := opts.ReturnData(); rd != "" {
		path += "?" + workflow.ReturnDataParam + "=" + rd
	}
	var out models.WorkflowInstance
	if err := c.do(ctx, "get workflow properties", http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel cancels a running workflow.
func (c *ZosmfClient) Cancel(ctx context.Context, key string) (*models.CanceledWorkflow, error) {
	if err := workflow.ValidateKey(key); err != nil {
		return nil, err
	}
	var out models.CanceledWorkflow
	if err := c.do(ctx, "cancel workflow", http.MethodPut, c.instance(key, workflow.CancelOperation), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a workflow instance from the active registry.
func (c *ZosmfClient) Delete(ctx context.Context, key string) error {
	if err := workflow.ValidateKey(key); err != nil {
		return err
	}
	return c.do(ctx, "delete workflow", http.MethodDelete, c.instance(key, ""), nil, nil, http.StatusNoContent, http.StatusOK)
}

// Archive moves a workflow instance to the archived registry.
func (c *ZosmfClient) Archive(ctx context.Context, key string) (*models.ArchivedWorkflow, error) {
	if err := workflow.ValidateKey(key); err != nil {
		return nil, err
	}
	var out models.ArchivedWorkflow
	if err := c.do(ctx, "archive workflow", http.MethodPost, c.instance(key, workflow.ArchiveOperation), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteArchived removes an archived workflow.
func (c *ZosmfClient) DeleteArchived(ctx context.Context, key string) error {
	if err := workflow.ValidateKey(key); err != nil {
		return err
	}
	path := c.resource(workflow.ArchivedResource) + "/" + url.PathEscape(key)
	return c.do(ctx, "delete archived workflow", http.MethodDelete, path, nil, nil, http.StatusNoContent, http.StatusOK)
}

// ListActive lists active workflows matching filters.
func (c *ZosmfClient) ListActive(ctx context.Context, filters workflow.FilterSet) ([]models.WorkflowSummary, error) {
	path, err := workflow.BuildQuery(c.resource(workflow.WorkflowsResource), filters.Filters())
	if err != nil {
		return nil, err
	}
	var out models.WorkflowList
	if err := c.do(ctx, "list workflows", http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if out.Workflows == nil {
		return []models.WorkflowSummary{}, nil
	}
	return out.Workflows, nil
}

// ListArchived lists archived workflows matching filters.
func (c *ZosmfClient) ListArchived(ctx context.Context, filters workflow.FilterSet) ([]models.ArchivedWorkflowSummary, error) {
	path, err := workflow.BuildQuery(c.resource(workflow.ArchivedResource), filters.ArchivedFilters())
	if err != nil {
		return nil, err
	}
	var out models.ArchivedWorkflowList
	if err := c.do(ctx, "list archived workflows", http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if out.ArchivedWorkflows == nil {
		return []models.ArchivedWorkflowSummary{}, nil
	}
	return out.ArchivedWorkflows, nil
}

// Definition describes a workflow definition file on the host.
func (c *ZosmfClient) Definition(ctx context.Context, path string, opts workflow.PropertiesOptions) (*models.WorkflowDefinition, error) {
	if err := workflow.ValidateDefinitionPath(path); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set(workflow.DefinitionPathParam, path)
	if rd := opts.ReturnData(); rd != "" {
		q.Set(workflow.ReturnDataParam, rd)
	}
	var out models.WorkflowDefinition
	target := c.resource(workflow.DefinitionResource) + "?" + q.Encode()
	if err := c.do(ctx, "get workflow definition", http.MethodGet, target, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ZosmfClient) resource(name string) string {
	return workflow.ResourceRoot + "/" + c.version + "/" + name
}

func (c *ZosmfClient) instance(key, operation string) string {
	p := c.resource(workflow.WorkflowsResource) + "/" + url.PathEscape(key)
	if operation != "" {
		p += "/" + operation
	}
	return p
}

// do sends one request and decodes the JSON response into out when out is
// non-nil. A 409 becomes RemoteConflictError; any status outside expected
// becomes RemoteFailure.
func (c *ZosmfClient) do(ctx context.Context, op, method, path string, body, out interface{}, expected ...int) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		requestBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(workflow.CSRFHeader, "true")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("zosmf request", "op", op, "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: failed to make request: %w", op, err)
	}
	defer resp.Body.Close()

	if !statusIn(resp.StatusCode, expected) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("zosmf request failed", "op", op, "status", resp.StatusCode)
		if resp.StatusCode == http.StatusConflict {
			return &workflow.RemoteConflictError{Op: op, Status: resp.StatusCode, Body: string(raw)}
		}
		return &workflow.RemoteFailure{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response body: %w", op, err)
	}
	return nil
}

func statusIn(status int, expected []int) bool {
	for _, s := range expected {
		if status == s {
			return true
		}
	}
	return false
}
