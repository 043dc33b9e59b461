package http

import (
	"github.com/gin-gonic/gin"
	"github.com/productcomposite/backend/config"
	"github.com/productcomposite/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.Logger, tracingEnabled bool) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	if tracingEnabled {
		router.Use(TracingMiddleware(cfg.Telemetry.ServiceName))
	}
	router.Use(logger.GinMiddleware(log))
	router.Use(logger.Recovery(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	router.GET("/product-composite/:productId", handler.GetProductComposite)

	return router
}
