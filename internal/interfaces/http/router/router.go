// Package router wires the HTTP surface of the sync engine: the operational
// sync API, the inbound webhook and the health endpoints.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopfront/backend/internal/infrastructure/config"
	"github.com/shopfront/backend/internal/interfaces/http/handler"
	"github.com/shopfront/backend/internal/interfaces/http/middleware"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Ping() error
}

// Config collects everything the router needs to assemble the HTTP surface
type Config struct {
	SyncHandler    *handler.SyncHandler
	WebhookHandler *handler.WebhookHandler
	Webhook        config.WebhookConfig
	HTTP           config.HTTPConfig
	Database       HealthChecker
	Logger         *zap.Logger
}

// Setup installs middleware and registers all routes on the engine
func Setup(engine *gin.Engine, cfg Config) {
	middleware.SetupValidator()

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.CORS())
	engine.Use(middleware.Secure())
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	engine.Use(middleware.Tracing())

	registerHealthRoutes(engine, cfg.Database)

	api := engine.Group("/api/v1")

	sync := api.Group("/sync")
	{
		sync.GET("/status", cfg.SyncHandler.GetStatus)
		sync.POST("/full", cfg.SyncHandler.TriggerFullSync)
		sync.POST("/delta", cfg.SyncHandler.TriggerDeltaSync)
		sync.GET("/dead-letters", cfg.SyncHandler.ListDeadLetters)
		sync.POST("/dead-letters/:id/requeue", cfg.SyncHandler.RequeueDeadLetter)
		sync.POST("/dead-letters/:id/unrecoverable", cfg.SyncHandler.MarkUnrecoverable)
		sync.GET("/logs", cfg.SyncHandler.ListLogs)
		sync.GET("/statistics", cfg.SyncHandler.GetStatistics)
	}

	webhookLimiter := middleware.NewRateLimiter(120, time.Minute)
	webhooks := api.Group("/webhooks",
		middleware.RateLimit(webhookLimiter),
		middleware.WebhookSignature(cfg.Webhook),
	)
	{
		webhooks.POST("/scale-report", cfg.WebhookHandler.HandleScaleReport)
	}
}

func registerHealthRoutes(engine *gin.Engine, db HealthChecker) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/ready", func(c *gin.Context) {
		if db != nil {
			if err := db.Ping(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}
