package api

import (
	"github.com/daeho-lim/shopcollect/internal/api/handler"
	"github.com/daeho-lim/shopcollect/internal/api/middleware"
	"github.com/daeho-lim/shopcollect/internal/config"
	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/service"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	batchService *service.BatchService,
	collector *service.Collector,
	store *service.ProductStore,
	cfg *config.ServerConfig,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	batchHandler := handler.NewBatchHandler(batchService)
	productHandler := handler.NewProductHandler(collector, store)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Batch collection
		batch := v1.Group("/batch")
		{
			batch.POST("/upload", batchHandler.Upload)
			batch.GET("/list", batchHandler.List)
			batch.GET("/:id/status", batchHandler.Status)
			batch.GET("/:id/keywords", batchHandler.Keywords)
			batch.GET("/:id/stream", batchHandler.Stream)
			batch.POST("/:id/start", batchHandler.Start)
			batch.POST("/:id/pause", batchHandler.Pause)
			batch.POST("/:id/resume", batchHandler.Resume)
			batch.POST("/:id/cancel", batchHandler.Cancel)
			batch.DELETE("/:id", batchHandler.Delete)
		}

		// Products
		products := v1.Group("/products")
		{
			products.POST("/collect", productHandler.Collect)
			products.GET("/search", productHandler.Search)
			products.GET("/stats/summary", productHandler.Stats)
			products.GET("/history/recent", productHandler.RecentHistory)
			products.GET("/history/keyword/:keyword", productHandler.KeywordHistory)
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
			products.DELETE("/:id", productHandler.Delete)
		}
	}

	return r
}
