package main

import (
	"github.com/gin-gonic/gin"
	"github.com/secure-ai-studio/backend/internal/middleware"
	"github.com/secure-ai-studio/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for the spend path. Read-only routes stay unthrottled.
	spendLimiter := middleware.NewRateLimiter(svc.cfg.RateLimit.PerMinute, svc.cfg.RateLimit.Burst)

	// Health and metrics
	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.metricsHandler.Metrics)

	// Signed download links resolve outside the /api prefix so the token is
	// the full path identity.
	r.GET("/files/:token", svc.storageHandler.Download)

	// API routes
	api := r.Group("/api")
	{
		spend := api.Group("", spendLimiter.Middleware())
		{
			spend.POST("/generate", svc.generateHandler.Submit)
			spend.POST("/uploads", svc.storageHandler.IssueUpload)
		}

		api.GET("/status/:job_id", svc.generateHandler.Status)
		api.POST("/jobs/:job_id/cancel", svc.generateHandler.Cancel)

		api.GET("/budget-status", svc.budgetHandler.Status)
		api.POST("/reset-budget", svc.budgetHandler.Reset)

		api.GET("/providers", svc.providerHandler.List)

		api.GET("/usage/stats", svc.usageHandler.GetStats)
		api.GET("/usage/providers", svc.usageHandler.GetProviderBreakdown)
	}
}
