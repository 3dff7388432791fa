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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all analyze routes with the router.
//
// Description:
//
//	Registers all /v1/analyze/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/analyze/graph - Build (or fetch cached) call graph
//	GET  /v1/analyze/callers - Direct callers of a function
//	GET  /v1/analyze/callees - Direct resolved callees of a function
//	GET  /v1/analyze/transitive - Bounded transitive closure
//	GET  /v1/analyze/criticality - Criticality score
//	GET  /v1/analyze/delegation - Delegation classification
//	GET  /v1/analyze/stats - Graph and cache counters
//	GET  /v1/analyze/health - Health check
//	GET  /v1/analyze/ready - Readiness check
//
// Example:
//
//	svc, _ := analyze.NewService(config.Default())
//	handlers := analyze.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	analyze.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	group := rg.Group("/analyze")
	{
		// Graph lifecycle
		group.POST("/graph", handlers.HandleAnalyze)

		// Edge queries
		group.GET("/callers", handlers.HandleCallers)
		group.GET("/callees", handlers.HandleCallees)
		group.GET("/transitive", handlers.HandleTransitive)

		// Analytics
		group.GET("/criticality", handlers.HandleCriticality)
		group.GET("/delegation", handlers.HandleDelegation)
		group.GET("/stats", handlers.HandleStats)

		// Health checks
		group.GET("/health", handlers.HandleHealth)
		group.GET("/ready", handlers.HandleReady)
	}
}
