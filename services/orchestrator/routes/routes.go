// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ClarionAI/clarion/pkg/extensions"
	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/assembly"
	"github.com/ClarionAI/clarion/services/feedback"
	"github.com/ClarionAI/clarion/services/orchestrator/handlers"
	"github.com/ClarionAI/clarion/services/orchestrator/middleware"
	"github.com/ClarionAI/clarion/services/orchestrator/observability"
)

// Deps bundles everything the route tree needs. All fields are
// required except Refresher.
type Deps struct {
	Analyzer  *analysis.Analyzer
	Assembly  *assembly.Orchestrator
	Store     *feedback.Store
	Refresher *feedback.Refresher
	Options   extensions.ServiceOptions
	Metrics   *observability.RewriteMetrics
}

// SetupRoutes wires all HTTP endpoints. /health and /metrics are
// unauthenticated; everything under /v1 passes through the configured
// AuthProvider.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(middleware.RequestID())

	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(deps.Options.AuthProvider))
	{
		v1.POST("/rewrite", handlers.HandleRewrite(deps.Analyzer, deps.Assembly, deps.Options, deps.Metrics))
		v1.POST("/analyze", handlers.HandleAnalyze(deps.Analyzer, deps.Metrics))
		v1.POST("/feedback", handlers.HandleFeedback(deps.Store, deps.Refresher, deps.Metrics))
		v1.GET("/progress/ws", handlers.HandleProgressWS(deps.Assembly.Tracker(), deps.Metrics))
	}
}
