package http

import (
	"github.com/gin-gonic/gin"
	"github.com/shopscan/backend/config"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		search := v1.Group("/search")
		{
			search.POST("/by-barcode", handler.SearchByBarcode)
			search.GET("/by-name", handler.SearchByName)
			search.POST("/by-image", handler.SearchByImage)
			search.GET("/smart", handler.SmartSearch)
		}

		marketplace := v1.Group("/marketplace")
		{
			marketplace.GET("/status", handler.MarketplaceStatus)
			marketplace.GET("/stores", handler.MarketplaceStores)
			marketplace.GET("/search", handler.MarketplaceSearch)
			marketplace.GET("/category/:categoryId", handler.MarketplaceCategory)
			marketplace.POST("/affiliate-link", handler.AffiliateLink)
		}

		vision := v1.Group("/vision")
		{
			vision.GET("/status", handler.VisionStatus)
			vision.POST("/analyze", handler.VisionAnalyze)
			vision.POST("/suggest", handler.VisionSuggest)
		}

		products := v1.Group("/products")
		{
			products.GET("", handler.ListProducts)
			products.GET("/:id", handler.GetProduct)
		}
	}

	return router
}
