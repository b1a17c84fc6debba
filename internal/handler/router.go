package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragserver/internal/middleware"
)

type RouterDeps struct {
	Ingest          *IngestHandler
	Query           *QueryHandler
	Collections     *CollectionHandler
	System          *SystemHandler
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/system/health", deps.System.Health)

	limited := api.Group("")
	if deps.RateLimitWindow > 0 {
		limited.Use(middleware.RateLimit(deps.RateLimitWindow))
	}
	limited.POST("/ingest/text", deps.Ingest.IngestText)
	limited.POST("/ingest/file", deps.Ingest.IngestFile)
	limited.POST("/query", deps.Query.Query)

	api.GET("/ingest/jobs", deps.Ingest.ListJobs)
	api.GET("/ingest/jobs/:id", deps.Ingest.GetJob)
	api.POST("/ingest/jobs/:id/cancel", deps.Ingest.CancelJob)

	api.GET("/collections", deps.Collections.List)
	api.GET("/collections/:name/stats", deps.Collections.Stats)
	api.DELETE("/collections/:name", deps.Collections.Delete)
}
