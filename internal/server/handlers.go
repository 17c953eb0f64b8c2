// Package server exposes the traceability operations over HTTP with gin.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dshills/reqtrace/internal/document"
	"github.com/dshills/reqtrace/internal/engine"
	"github.com/dshills/reqtrace/internal/render"
	"github.com/dshills/reqtrace/internal/schema"
)

// Handlers serves the /v1 API from one engine.Service.
type Handlers struct {
	svc    *engine.Service
	logger *slog.Logger
}

// NewHandlers creates Handlers for svc. A nil logger uses slog.Default().
func NewHandlers(svc *engine.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// ImpactRequest is the body of POST /v1/projects/:project/impact.
type ImpactRequest struct {
	RequirementID     string `json:"requirement_id" binding:"required"`
	ChangeDescription string `json:"change_description"`
	ChangeType        string `json:"change_type"`
}

// ErrorResponse is returned for requests rejected before an operation runs.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// getOrCreateRequestID echoes X-Request-ID or assigns a new one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, engine.ErrRequirementNotFound), errors.Is(err, document.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidArgument),
		errors.Is(err, document.ErrInvalidProject),
		errors.Is(err, render.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrDocumentFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respond writes result with the status implied by its outcome.
func (h *Handlers) respond(c *gin.Context, requestID string, o schema.Outcome, result any) {
	status := statusFor(o.Err())
	if status != http.StatusOK {
		h.logger.Warn("Request failed",
			"request_id", requestID,
			"path", c.FullPath(),
			"status", status,
			"error", o.Error,
		)
	}
	c.JSON(status, result)
}

// HandleMatrix handles GET /v1/projects/:project/matrix.
func (h *Handlers) HandleMatrix(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	res := h.svc.GenerateTraceabilityMatrix(c.Request.Context(), c.Param("project"))
	h.respond(c, requestID, res.Outcome, res)
}

// HandleRequirement handles GET /v1/projects/:project/requirements/:id.
func (h *Handlers) HandleRequirement(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	res := h.svc.GetRequirementDetails(c.Request.Context(), c.Param("project"), c.Param("id"))
	h.respond(c, requestID, res.Outcome, res)
}

// HandleImpact handles POST /v1/projects/:project/impact.
func (h *Handlers) HandleImpact(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req ImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     fmt.Sprintf("invalid request body: %v", err),
			RequestID: requestID,
		})
		return
	}
	res := h.svc.AnalyzeChangeImpact(c.Request.Context(), c.Param("project"),
		req.RequirementID, req.ChangeDescription, req.ChangeType)
	h.respond(c, requestID, res.Outcome, res)
}

// HandleValidation handles GET /v1/projects/:project/validation.
func (h *Handlers) HandleValidation(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	res := h.svc.ValidateTraceability(c.Request.Context(), c.Param("project"))
	h.respond(c, requestID, res.Outcome, res)
}

// HandleGaps handles GET /v1/projects/:project/gaps.
func (h *Handlers) HandleGaps(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	res := h.svc.AnalyzeTraceabilityGaps(c.Request.Context(), c.Param("project"))
	h.respond(c, requestID, res.Outcome, res)
}

// HandleExport handles GET /v1/projects/:project/export?format=csv.
//
// The payload is returned as-is with its content type and a download file
// name. With envelope=true the ExportResult is returned as JSON instead.
func (h *Handlers) HandleExport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	res := h.svc.ExportTraceabilityMatrix(c.Request.Context(), c.Param("project"), c.DefaultQuery("format", "json"))
	if !res.Success || c.Query("envelope") == "true" {
		h.respond(c, requestID, res.Outcome, res)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	c.Data(http.StatusOK, res.ContentType, []byte(res.Content))
}

// HandleCompare handles GET /v1/projects/:project/compare/:head.
func (h *Handlers) HandleCompare(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	res := h.svc.CompareProjects(c.Request.Context(), c.Param("project"), c.Param("head"))
	h.respond(c, requestID, res.Outcome, res)
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}
