// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyze

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/DebtScope/services/analyze/callgraph"
)

// ServiceVersion is the analyze service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the analyze service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleAnalyze handles POST /v1/analyze/graph.
//
// Description:
//
//	Builds the call graph for a project and returns its counters. A
//	cached graph is returned without rebuilding.
//
// Request Body:
//
//	AnalyzeRequest
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Validation error
//	409 Conflict: Build already in progress
//	504 Gateway Timeout: Build timed out
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("building graph", "project_root", req.ProjectRoot)

	resp, err := h.svc.Analyze(c.Request.Context(), req.ProjectRoot, req.ExcludePatterns)
	if err != nil {
		writeServiceError(c, logger, err, "ANALYZE_FAILED")
		return
	}

	logger.Info("graph ready",
		"project_root", resp.ProjectRoot,
		"functions", resp.Functions,
		"edges_resolved", resp.EdgesResolved,
		"cached", resp.Cached,
		"duration_ms", resp.DurationMs)

	c.JSON(http.StatusOK, resp)
}

// HandleCallers handles GET /v1/analyze/callers.
//
// Query Parameters:
//
//	project_root: project the graph was built for (required)
//	function: "file:name:line" identity (required)
//
// Response:
//
//	200 OK: CallersResponse (may be empty array)
//	400 Bad Request: Missing parameters, malformed identity, or graph
//	  not built
//	404 Not Found: Function not in graph
func (h *Handlers) HandleCallers(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCallers")

	projectRoot, function, ok := requireFunctionParams(c, logger)
	if !ok {
		return
	}

	callers, err := h.svc.Callers(c.Request.Context(), projectRoot, function)
	if err != nil {
		writeServiceError(c, logger, err, "QUERY_FAILED")
		return
	}

	c.JSON(http.StatusOK, CallersResponse{Function: function, Callers: callers})
}

// HandleCallees handles GET /v1/analyze/callees.
func (h *Handlers) HandleCallees(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCallees")

	projectRoot, function, ok := requireFunctionParams(c, logger)
	if !ok {
		return
	}

	callees, err := h.svc.Callees(c.Request.Context(), projectRoot, function)
	if err != nil {
		writeServiceError(c, logger, err, "QUERY_FAILED")
		return
	}

	c.JSON(http.StatusOK, CalleesResponse{Function: function, Callees: callees})
}

// HandleTransitive handles GET /v1/analyze/transitive.
//
// Query Parameters:
//
//	project_root: project the graph was built for (required)
//	function: "file:name:line" identity (required)
//	depth: maximum hop count (optional, clamps to the configured cap)
//	direction: "callees" (default) or "callers"
func (h *Handlers) HandleTransitive(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTransitive")

	projectRoot, function, ok := requireFunctionParams(c, logger)
	if !ok {
		return
	}

	depth := 0
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			logger.Warn("invalid depth", "depth", raw)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "depth must be an integer",
				Code:  "INVALID_PARAMETER",
			})
			return
		}
		depth = parsed
	}

	resp, err := h.svc.Transitive(c.Request.Context(), projectRoot, function, depth, c.Query("direction"))
	if err != nil {
		writeServiceError(c, logger, err, "QUERY_FAILED")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleCriticality handles GET /v1/analyze/criticality.
func (h *Handlers) HandleCriticality(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCriticality")

	projectRoot, function, ok := requireFunctionParams(c, logger)
	if !ok {
		return
	}

	resp, err := h.svc.Criticality(c.Request.Context(), projectRoot, function)
	if err != nil {
		writeServiceError(c, logger, err, "QUERY_FAILED")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleDelegation handles GET /v1/analyze/delegation.
func (h *Handlers) HandleDelegation(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDelegation")

	projectRoot, function, ok := requireFunctionParams(c, logger)
	if !ok {
		return
	}

	resp, err := h.svc.Delegation(c.Request.Context(), projectRoot, function)
	if err != nil {
		writeServiceError(c, logger, err, "QUERY_FAILED")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/analyze/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStats")

	projectRoot := c.Query("project_root")
	if projectRoot == "" {
		logger.Warn("missing project_root parameter")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "project_root parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	resp, err := h.svc.Stats(c.Request.Context(), projectRoot)
	if err != nil {
		writeServiceError(c, logger, err, "QUERY_FAILED")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/analyze/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": ServiceVersion,
	})
}

// HandleReady handles GET /v1/analyze/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// requireFunctionParams extracts the project_root and function query
// parameters, writing a 400 response when either is missing.
func requireFunctionParams(c *gin.Context, logger *slog.Logger) (projectRoot, function string, ok bool) {
	projectRoot = c.Query("project_root")
	function = c.Query("function")
	if projectRoot == "" || function == "" {
		logger.Warn("missing parameters",
			"project_root", projectRoot, "function", function)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "project_root and function parameters are required",
			Code:  "MISSING_PARAMETER",
		})
		return "", "", false
	}
	return projectRoot, function, true
}

// writeServiceError maps service sentinels to HTTP statuses and sends
// the uniform error envelope.
func writeServiceError(c *gin.Context, logger *slog.Logger, err error, defaultCode string) {
	statusCode := http.StatusInternalServerError
	errCode := defaultCode

	switch {
	case errors.Is(err, ErrRelativePath):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_PATH"
	case errors.Is(err, ErrPathTraversal):
		statusCode = http.StatusBadRequest
		errCode = "PATH_TRAVERSAL"
	case errors.Is(err, ErrProjectTooLarge):
		statusCode = http.StatusBadRequest
		errCode = "PROJECT_TOO_LARGE"
	case errors.Is(err, ErrBuildInProgress):
		statusCode = http.StatusConflict
		errCode = "BUILD_IN_PROGRESS"
	case errors.Is(err, ErrBuildTimeout):
		statusCode = http.StatusGatewayTimeout
		errCode = "BUILD_TIMEOUT"
	case errors.Is(err, ErrGraphNotBuilt):
		statusCode = http.StatusBadRequest
		errCode = "GRAPH_NOT_BUILT"
	case errors.Is(err, callgraph.ErrMalformedID):
		statusCode = http.StatusBadRequest
		errCode = "MALFORMED_FUNCTION_ID"
	case errors.Is(err, callgraph.ErrUnknownFunction):
		statusCode = http.StatusNotFound
		errCode = "FUNCTION_NOT_FOUND"
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "error", err, "code", errCode)
	}
	c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}
