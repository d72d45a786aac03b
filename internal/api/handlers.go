package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zowe/zowe-cli-sub009/internal/workflow"
)

// Handler contains the service-level HTTP handlers.
type Handler struct {
	service string
	version string
	started time.Time
}

// NewHandler creates a new Handler.
func NewHandler(service, version string) *Handler {
	return &Handler{service: service, version: version, started: time.Now()}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   h.service,
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(c echo.Context, status int, title, detail string) error {
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, problem)
}

// writeBackendError maps a backend error to its HTTP status.
func writeBackendError(c echo.Context, err error) error {
	var (
		verr     *workflow.ValidationError
		perr     *workflow.ParseError
		conflict *workflow.RemoteConflictError
		failure  *workflow.RemoteFailure
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &perr):
		return writeError(c, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.As(err, &conflict):
		return writeError(c, http.StatusConflict, "Conflict", conflict.Body)
	case errors.As(err, &failure):
		return writeError(c, failure.Status, http.StatusText(failure.Status), failure.Body)
	default:
		return writeError(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}

// RequireCSRFHeader rejects requests that do not carry the z/OSMF CSRF
// header, as the real service does.
func RequireCSRFHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(workflow.CSRFHeader) == "" {
			return writeError(c, http.StatusForbidden, "Forbidden", "missing "+workflow.CSRFHeader+" header")
		}
		return next(c)
	}
}
