// Package mcp exposes workflow operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/zowe/zowe-cli-sub009/internal/auth"
	"github.com/zowe/zowe-cli-sub009/internal/repository"
	"github.com/zowe/zowe-cli-sub009/internal/services"
	"github.com/zowe/zowe-cli-sub009/internal/workflow"
)

type Server struct {
	mcpServer       *server.MCPServer
	workflowService *services.WorkflowService
}

func NewServer(workflowService *services.WorkflowService, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"z/OSMF Workflows",
			version,
			server.WithToolCapabilities(true),
		),
		workflowService: workflowService,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func filterOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("name", mcp.Description("Workflow name, may contain * and ? wildcards")),
		mcp.WithString("category", mcp.Description("Workflow category: general or configuration")),
		mcp.WithString("system", mcp.Description("System the workflow runs on")),
		mcp.WithString("owner", mcp.Description("Owner user ID")),
		mcp.WithString("vendor", mcp.Description("Workflow vendor")),
		mcp.WithString("status_name", mcp.Description("Workflow status")),
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_workflows",
			append([]mcp.ToolOption{mcp.WithDescription("List active workflow instances")}, filterOptions()...)...,
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_archived_workflows",
			mcp.WithDescription("List archived workflow instances"),
			mcp.WithString("name", mcp.Description("Workflow name, may contain wildcards")),
			mcp.WithString("order_by", mcp.Description("asc or desc by archive time")),
		),
		s.handleListArchived,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_workflow",
			mcp.WithDescription("Get the properties of a workflow instance"),
			mcp.WithString("key", mcp.Required(), mcp.Description("Workflow key")),
			mcp.WithBoolean("include_steps", mcp.Description("Include the step tree")),
			mcp.WithBoolean("include_variables", mcp.Description("Include workflow variables")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("resolve_workflow_key",
			mcp.WithDescription("Find the key of the workflow with exactly this name"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
			mcp.WithBoolean("archived", mcp.Description("Search the archived registry")),
		),
		s.handleResolveKey,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("create_workflow",
			mcp.WithDescription("Create a workflow instance from a definition file"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
			mcp.WithString("definition_file", mcp.Required(), mcp.Description("Path of the definition file on the host")),
			mcp.WithString("system", mcp.Required(), mcp.Description("System the workflow runs on")),
			mcp.WithString("owner", mcp.Required(), mcp.Description("Owner user ID")),
			mcp.WithString("variables", mcp.Description("Comma separated name=value pairs")),
			mcp.WithString("comments", mcp.Description("Free-form comments")),
		),
		s.handleCreateWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("start_workflow",
			mcp.WithDescription("Start a workflow and optionally wait for it to finish"),
			mcp.WithString("key", mcp.Required(), mcp.Description("Workflow key")),
			mcp.WithString("step_name", mcp.Description("Run only from this step")),
			mcp.WithBoolean("perform_subsequent", mcp.Description("Run the steps after step_name too")),
			mcp.WithString("resolve_conflict", mcp.Description("outputFileValue, existingValue or leaveConflict")),
			mcp.WithBoolean("wait", mcp.Description("Wait for completion")),
			mcp.WithNumber("timeout_seconds", mcp.Description("Maximum wait in seconds")),
		),
		s.handleStartWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("wait_for_workflow",
			mcp.WithDescription("Wait for a running workflow or step to finish"),
			mcp.WithString("key", mcp.Required(), mcp.Description("Workflow key")),
			mcp.WithString("step_name", mcp.Description("Wait for this step only")),
			mcp.WithBoolean("perform_subsequent", mcp.Description("Wait for the steps after step_name too")),
			mcp.WithNumber("timeout_seconds", mcp.Description("Maximum wait in seconds")),
		),
		s.handleWait,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("step_summaries",
			mcp.WithDescription("Summarize every step of a workflow in tree order"),
			mcp.WithString("key", mcp.Required(), mcp.Description("Workflow key")),
		),
		s.handleStepSummaries,
	)

	for _, op := range []struct{ name, desc string }{
		{"cancel_workflow", "Cancel a workflow instance"},
		{"archive_workflow", "Archive a workflow instance"},
		{"delete_workflow", "Delete an active workflow instance"},
		{"delete_archived_workflow", "Delete an archived workflow instance"},
	} {
		s.mcpServer.AddTool(
			mcp.NewTool(op.name,
				mcp.WithDescription(op.desc),
				mcp.WithString("key", mcp.Required(), mcp.Description("Workflow key")),
			),
			s.keyedMutation(op.name),
		)
	}

	s.mcpServer.AddTool(
		mcp.NewTool("list_runs",
			mcp.WithDescription("List recorded wait outcomes, newest first"),
			mcp.WithString("key", mcp.Description("Only runs of this workflow")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of runs")),
		),
		s.handleListRuns,
	)
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, *mcp.CallToolResult) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, mcp.NewToolResultError("Invalid arguments type")
	}
	return args, nil
}

func stringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

func boolArg(args map[string]interface{}, name string) bool {
	v, _ := args[name].(bool)
	return v
}

func requiredString(args map[string]interface{}, name string) (string, *mcp.CallToolResult) {
	v := stringArg(args, name)
	if v == "" {
		return "", mcp.NewToolResultError("Missing required parameter: " + name)
	}
	return v, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// requireWrite rejects callers whose token lacks the write scope.
func requireWrite(ctx context.Context) *mcp.CallToolResult {
	if p, ok := auth.PrincipalFromContext(ctx); ok && !p.HasScope(auth.ScopeWorkflowWrite) {
		return mcp.NewToolResultError("Missing scope: " + auth.ScopeWorkflowWrite)
	}
	return nil
}

func waitOptions(args map[string]interface{}) services.WaitOptions {
	opts := services.WaitOptions{
		StepName:          stringArg(args, "step_name"),
		PerformSubsequent: boolArg(args, "perform_subsequent"),
	}
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		opts.Timeout = time.Duration(secs * float64(time.Second))
	}
	return opts
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}

	list, err := s.workflowService.ListWorkflows(ctx, workflow.FilterSet{
		Name:       stringArg(args, "name"),
		Category:   stringArg(args, "category"),
		System:     stringArg(args, "system"),
		Owner:      stringArg(args, "owner"),
		Vendor:     stringArg(args, "vendor"),
		StatusName: stringArg(args, "status_name"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}
	return jsonResult(list)
}

func (s *Server) handleListArchived(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}

	list, err := s.workflowService.ListArchivedWorkflows(ctx, workflow.FilterSet{
		Name:    stringArg(args, "name"),
		OrderBy: stringArg(args, "order_by"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list archived workflows: %v", err)), nil
	}
	return jsonResult(list)
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}
	key, bad := requiredString(args, "key")
	if bad != nil {
		return bad, nil
	}

	snap, err := s.workflowService.GetProperties(ctx, key, workflow.PropertiesOptions{
		IncludeSteps:     boolArg(args, "include_steps"),
		IncludeVariables: boolArg(args, "include_variables"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get workflow: %v", err)), nil
	}
	return jsonResult(snap)
}

func (s *Server) handleResolveKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}
	name, bad := requiredString(args, "name")
	if bad != nil {
		return bad, nil
	}

	resolve := s.workflowService.ResolveKeyByName
	if boolArg(args, "archived") {
		resolve = s.workflowService.ResolveArchivedKeyByName
	}
	key, found, err := resolve(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve workflow key: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("No workflow named %q", name)), nil
	}
	return mcp.NewToolResultText(key), nil
}

func (s *Server) handleCreateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := requireWrite(ctx); denied != nil {
		return denied, nil
	}
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}

	vars, err := workflow.ParseProperties(stringArg(args, "variables"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	created, err := s.workflowService.CreateWorkflow(ctx, workflow.CreateRequest{
		WorkflowName:           stringArg(args, "name"),
		WorkflowDefinitionFile: stringArg(args, "definition_file"),
		System:                 stringArg(args, "system"),
		Owner:                  stringArg(args, "owner"),
		Variables:              vars,
		Comments:               stringArg(args, "comments"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create workflow: %v", err)), nil
	}
	return jsonResult(created)
}

func (s *Server) handleStartWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := requireWrite(ctx); denied != nil {
		return denied, nil
	}
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}
	key, bad := requiredString(args, "key")
	if bad != nil {
		return bad, nil
	}

	start := workflow.StartOptions{
		StepName:               stringArg(args, "step_name"),
		ResolveConflictByUsing: stringArg(args, "resolve_conflict"),
	}
	if v, ok := args["perform_subsequent"].(bool); ok {
		start.PerformSubsequent = &v
	}

	if !boolArg(args, "wait") {
		if err := s.workflowService.StartWorkflow(ctx, key, start); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to start workflow: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Workflow %s started", key)), nil
	}

	res, err := s.workflowService.StartAndWait(ctx, key, start, waitOptions(args))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Workflow %s did not complete: %v", key, err)), nil
	}
	return jsonResult(res)
}

func (s *Server) handleWait(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}
	key, bad := requiredString(args, "key")
	if bad != nil {
		return bad, nil
	}

	res, err := s.workflowService.WaitForCompletion(ctx, key, waitOptions(args))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Workflow %s did not complete: %v", key, err)), nil
	}
	return jsonResult(res)
}

func (s *Server) handleStepSummaries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}
	key, bad := requiredString(args, "key")
	if bad != nil {
		return bad, nil
	}

	summaries, err := s.workflowService.GetStepSummaries(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to summarize steps: %v", err)), nil
	}
	return jsonResult(summaries)
}

func (s *Server) keyedMutation(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if denied := requireWrite(ctx); denied != nil {
			return denied, nil
		}
		args, bad := arguments(request)
		if bad != nil {
			return bad, nil
		}
		key, bad := requiredString(args, "key")
		if bad != nil {
			return bad, nil
		}

		var (
			out interface{}
			err error
		)
		switch tool {
		case "cancel_workflow":
			out, err = s.workflowService.CancelWorkflow(ctx, key)
		case "archive_workflow":
			out, err = s.workflowService.ArchiveWorkflow(ctx, key)
		case "delete_workflow":
			err = s.workflowService.DeleteWorkflow(ctx, key)
		case "delete_archived_workflow":
			err = s.workflowService.DeleteArchivedWorkflow(ctx, key)
		default:
			return mcp.NewToolResultError("Unknown tool: " + tool), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s %s failed: %v", tool, key, err)), nil
		}
		if out == nil {
			return mcp.NewToolResultText(fmt.Sprintf("Workflow %s deleted", key)), nil
		}
		return jsonResult(out)
	}
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := arguments(request)
	if bad != nil {
		return bad, nil
	}

	filter := repository.RunFilter{WorkflowKey: stringArg(args, "key")}
	if limit, ok := args["limit"].(float64); ok {
		filter.Limit = int(limit)
	}
	runs, err := s.workflowService.Runs(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list runs: %v", err)), nil
	}
	return jsonResult(runs)
}

// MountHTTPHandlers serves the SSE transport under /mcp. Each handler is
// wrapped by middleware, outermost first.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer, middleware ...func(http.Handler) http.Handler) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				return auth.WithPrincipal(ctx, p)
			}
			return ctx
		}),
	)

	wrap := func(h http.Handler) http.Handler {
		for i := len(middleware) - 1; i >= 0; i-- {
			h = middleware[i](h)
		}
		return h
	}

	mux.Handle("/mcp", wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})))
	mux.Handle("/mcp/sse", wrap(sseServer))
	mux.Handle("/mcp/message", wrap(sseServer))
}
