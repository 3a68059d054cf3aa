package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/config"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(logger.Recovery(log))
	router.Use(logger.GinMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.RateLimit.PerIP)))

	router.GET("/health", handler.HealthCheck)

	imports := router.Group("/import")
	{
		imports.POST("/start", handler.StartImport)
		imports.GET("/:id/status", handler.ImportStatus)
	}

	products := router.Group("/products")
	{
		products.GET("", handler.ListProducts)
		products.POST("/bulk", handler.BulkAction)
		products.GET("/:id/raw-data", handler.ProductRawData)
		products.POST("/:id/update-from-source", handler.UpdateFromSource)
		products.DELETE("/:id", handler.DeleteProduct)
	}

	return router
}
