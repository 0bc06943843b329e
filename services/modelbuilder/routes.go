// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modelbuilder

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/telemetry"
)

// RegisterRoutes registers the model builder routes under rg.
//
// Routes:
//
//	POST   /modelbuilder/sessions
//	GET    /modelbuilder/sessions/:id
//	DELETE /modelbuilder/sessions/:id
//	POST   /modelbuilder/sessions/:id/import
//	GET    /modelbuilder/sessions/:id/import/ws
//	GET    /modelbuilder/sessions/:id/objects/:object_id/cards
//	POST   /modelbuilder/sessions/:id/objects
//	PATCH  /modelbuilder/sessions/:id/objects/:object_id
//	DELETE /modelbuilder/sessions/:id/objects/:object_id
//	POST   /modelbuilder/sessions/:id/validate
//	GET    /modelbuilder/sessions/:id/timeseries/daily
//	POST   /modelbuilder/sessions/:id/timeseries/export
//	GET    /modelbuilder/health
//	GET    /modelbuilder/ready
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	mb := rg.Group("/modelbuilder")
	{
		// Session lifecycle
		mb.POST("/sessions", handlers.HandleCreateSession)
		mb.GET("/sessions/:id", handlers.HandleSnapshot)
		mb.DELETE("/sessions/:id", handlers.HandleDeleteSession)

		// Import
		mb.POST("/sessions/:id/import", handlers.HandleImport)
		mb.GET("/sessions/:id/import/ws", handlers.HandleImportWebSocket)

		// Objects and cards
		mb.GET("/sessions/:id/objects/:object_id/cards", handlers.HandleCards)
		mb.POST("/sessions/:id/objects", handlers.HandleCreateObject)
		mb.PATCH("/sessions/:id/objects/:object_id", handlers.HandleEditObject)
		mb.DELETE("/sessions/:id/objects/:object_id", handlers.HandleDeleteObject)

		// Results
		mb.POST("/sessions/:id/validate", handlers.HandleValidate)
		mb.GET("/sessions/:id/timeseries/daily", handlers.HandleDaily)
		mb.POST("/sessions/:id/timeseries/export", handlers.HandleExport)

		// Health checks
		mb.GET("/health", handlers.HandleHealth)
		mb.GET("/ready", handlers.HandleReady)
	}
}

// NewRouter builds the gin engine serving handlers under /v1, with
// tracing, HTTP metrics and, when the prometheus exporter is active,
// /metrics at the root. httpMetrics may be nil.
func NewRouter(handlers *Handlers, serviceName string, httpMetrics *telemetry.HTTPMetrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	if httpMetrics != nil {
		router.Use(httpMetrics.GinMiddleware())
	}
	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}
	RegisterRoutes(router.Group("/v1"), handlers)
	return router
}
