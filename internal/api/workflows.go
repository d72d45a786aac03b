// Package api exposes a workflow backend as the z/OSMF workflow REST API.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oapi-codegen/runtime"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/zowe/zowe-cli-sub009/internal/services"
	"github.com/zowe/zowe-cli-sub009/internal/workflow"
)

// BasePath is the route prefix of the workflow REST API. The version is a
// path parameter.
const BasePath = workflow.ResourceRoot + "/:version"

// EchoRouter is satisfied by both *echo.Echo and *echo.Group.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// Server holds the dependencies for the API server.
type Server struct {
	Backend services.WorkflowBackend
}

// NewServer creates a new Server.
func NewServer(backend services.WorkflowBackend) *Server {
	return &Server{Backend: backend}
}

// RegisterHandlers mounts the workflow routes on router. The router is
// expected to be rooted at BasePath.
func RegisterHandlers(router EchoRouter, s *Server) {
	router.POST("/"+workflow.WorkflowsResource, s.CreateWorkflow)
	router.GET("/"+workflow.WorkflowsResource, s.ListWorkflows)
	router.GET("/"+workflow.WorkflowsResource+"/:key", s.GetWorkflow)
	router.DELETE("/"+workflow.WorkflowsResource+"/:key", s.DeleteWorkflow)
	router.PUT("/"+workflow.WorkflowsResource+"/:key/"+workflow.StartOperation, s.StartWorkflow)
	router.PUT("/"+workflow.WorkflowsResource+"/:key/"+workflow.CancelOperation, s.CancelWorkflow)
	router.POST("/"+workflow.WorkflowsResource+"/:key/"+workflow.ArchiveOperation, s.ArchiveWorkflow)
	router.GET("/"+workflow.ArchivedResource, s.ListArchivedWorkflows)
	router.DELETE("/"+workflow.ArchivedResource+"/:key", s.DeleteArchivedWorkflow)
	router.GET("/"+workflow.DefinitionResource, s.GetDefinition)
}

// NewRouter builds an echo instance serving backend under BasePath plus a
// /health endpoint. mw runs on the workflow routes only, after the CSRF
// check.
func NewRouter(backend services.WorkflowBackend, service string, mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(service))

	h := NewHandler(service, workflow.DefaultVersion)
	e.GET("/health", h.HandleHealth)

	g := e.Group(BasePath, append([]echo.MiddlewareFunc{RequireCSRFHeader}, mw...)...)
	RegisterHandlers(g, NewServer(backend))
	return e
}

// CreateWorkflow creates a workflow instance
// (POST /workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	var req workflow.CreateRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	created, err := s.Backend.Create(c.Request().Context(), req)
	if err != nil {
		return writeBackendError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// GetWorkflow returns the properties of a workflow instance
// (GET /workflows/{key}?returnData=steps,variables)
func (s *Server) GetWorkflow(c echo.Context) error {
	var returnData string
	if err := runtime.BindQueryParameter("form", true, false, workflow.ReturnDataParam, c.QueryParams(), &returnData); err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	}
	snap, err := s.Backend.Properties(c.Request().Context(), c.Param("key"), workflow.ParseReturnData(returnData))
	if err != nil {
		return writeBackendError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// StartWorkflow starts automation
// (PUT /workflows/{key}/operations/start)
func (s *Server) StartWorkflow(c echo.Context) error {
	var opts workflow.StartOptions
	if err := c.Bind(&opts); err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if err := s.Backend.Start(c.Request().Context(), c.Param("key"), opts); err != nil {
		return writeBackendError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// CancelWorkflow cancels a workflow
// (PUT /workflows/{key}/operations/cancel)
func (s *Server) CancelWorkflow(c echo.Context) error {
	out, err := s.Backend.Cancel(c.Request().Context(), c.Param("key"))
	if err != nil {
		return writeBackendError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteWorkflow removes a workflow
// (DELETE /workflows/{key})
func (s *Server) DeleteWorkflow(c echo.Context) error {
	if err := s.Backend.Delete(c.Request().Context(), c.Param("key")); err != nil {
		return writeBackendError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ArchiveWorkflow archives a workflow
// (POST /workflows/{key}/operations/archive)
func (s *Server) ArchiveWorkflow(c echo.Context) error {
	out, err := s.Backend.Archive(c.Request().Context(), c.Param("key"))
	if err != nil {
		return writeBackendError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteArchivedWorkflow removes an archived workflow
// (DELETE /archivedworkflows/{key})
func (s *Server) DeleteArchivedWorkflow(c echo.Context) error {
	if err := s.Backend.DeleteArchived(c.Request().Context(), c.Param("key")); err != nil {
		return writeBackendError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListWorkflows lists active workflows
// (GET /workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	filters, err := bindFilters(c, false)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	}
	list, err := s.Backend.ListActive(c.Request().Context(), filters)
	if err != nil {
		return writeBackendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"workflows": list})
}

// ListArchivedWorkflows lists archived workflows
// (GET /archivedworkflows)
func (s *Server) ListArchivedWorkflows(c echo.Context) error {
	filters, err := bindFilters(c, true)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	}
	list, err := s.Backend.ListArchived(c.Request().Context(), filters)
	if err != nil {
		return writeBackendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"archivedWorkflows": list})
}

// GetDefinition describes a definition file
// (GET /workflowDefinition?definitionFilePath=...)
func (s *Server) GetDefinition(c echo.Context) error {
	var path, returnData string
	params := c.QueryParams()
	if err := runtime.BindQueryParameter("form", true, true, workflow.DefinitionPathParam, params, &path); err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	}
	if err := runtime.BindQueryParameter("form", true, false, workflow.ReturnDataParam, params, &returnData); err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	}
	def, err := s.Backend.Definition(c.Request().Context(), path, workflow.ParseReturnData(returnData))
	if err != nil {
		return writeBackendError(c, err)
	}
	return c.JSON(http.StatusOK, def)
}

type queryTarget struct {
	name string
	dest *string
}

func bindFilters(c echo.Context, archived bool) (workflow.FilterSet, error) {
	var f workflow.FilterSet
	targets := []queryTarget{
		{workflow.FilterWorkflowName, &f.Name},
		{workflow.FilterCategory, &f.Category},
		{workflow.FilterSystem, &f.System},
		{workflow.FilterStatusName, &f.StatusName},
		{workflow.FilterOwner, &f.Owner},
		{workflow.FilterVendor, &f.Vendor},
	}
	if archived {
		targets = append(targets,
			queryTarget{workflow.FilterOrderBy, &f.OrderBy},
			queryTarget{workflow.FilterView, &f.View},
		)
	}
	params := c.QueryParams()
	for _, t := range targets {
		if err := runtime.BindQueryParameter("form", true, false, t.name, params, t.dest); err != nil {
			return f, err
		}
	}
	return f, nil
}
