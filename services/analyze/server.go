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
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/DebtScope/pkg/telemetry"
)

// NewRouter assembles the Gin engine for the analyze service.
//
// Description:
//
//	Builds an engine with panic recovery, otelgin tracing middleware,
//	the /metrics endpoint when the prometheus exporter is active, and
//	all /v1/analyze routes registered.
//
// Inputs:
//
//	handlers - The handlers instance
//
// Outputs:
//
//	*gin.Engine - Ready to Run
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("debtscope-analyze"))

	if mh := telemetry.MetricsHandler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}
