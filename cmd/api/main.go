package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daeho-lim/shopcollect/internal/api"
	"github.com/daeho-lim/shopcollect/internal/config"
	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/naver"
	"github.com/daeho-lim/shopcollect/internal/repository"
	"github.com/daeho-lim/shopcollect/internal/service"
)

func main() {
	// Initialize logger from environment (supports rotation and file output)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	historyRepo := repository.NewSearchHistoryRepository(db)
	batchRepo := repository.NewBatchRepository(db)

	// Initialize search client
	searchClient := naver.NewClient(&naver.Config{
		ClientID:       cfg.Naver.ClientID,
		ClientSecret:   cfg.Naver.ClientSecret,
		APIURL:         cfg.Naver.APIURL,
		RequestTimeout: cfg.Naver.RequestTimeout,
		RetryCount:     cfg.Naver.RetryCount,
		PageSize:       cfg.Naver.PageSize,
	})

	// Initialize services
	store := service.NewProductStore(productRepo, historyRepo, &service.StoreConfig{
		UpdateChunkSize: cfg.Batch.UpdateChunkSize,
	})

	collector := service.NewCollector(searchClient, store, &service.CollectorConfig{
		Timeout:    cfg.Batch.CollectTimeout,
		MaxResults: cfg.Batch.CollectMaxResults,
	})

	broadcaster := service.NewBroadcaster(cfg.Batch.SubscriberBuffer)

	batchService := service.NewBatchService(batchRepo, collector, broadcaster, &service.BatchServiceConfig{
		RateLimitSeconds: cfg.Batch.RateLimitSeconds,
	})

	// Setup router
	router := api.SetupRouter(batchService, collector, store, &cfg.Server, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
