package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/daeho-lim/shopcollect/internal/config"
	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/naver"
	"github.com/daeho-lim/shopcollect/internal/repository"
	"github.com/daeho-lim/shopcollect/internal/service"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "shopcollect-cli",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	query := flag.String("query", "", "Keyword to collect products for")
	maxResults := flag.Int("max", 0, "Maximum number of items to collect (default from config)")
	sort := flag.String("sort", "sim", "Sort order: sim, date, asc, dsc")
	force := flag.Bool("force", false, "Collect even if the keyword was collected before")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *query == "" {
		appLogger.Fatal("Flag -query is required")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"query": *query,
		"max":   *maxResults,
		"sort":  *sort,
		"force": *force,
	}).Info("Starting collection")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories and services
	productRepo := repository.NewProductRepository(db)
	historyRepo := repository.NewSearchHistoryRepository(db)

	searchClient := naver.NewClient(&naver.Config{
		ClientID:       cfg.Naver.ClientID,
		ClientSecret:   cfg.Naver.ClientSecret,
		APIURL:         cfg.Naver.APIURL,
		RequestTimeout: cfg.Naver.RequestTimeout,
		RetryCount:     cfg.Naver.RetryCount,
		PageSize:       cfg.Naver.PageSize,
	})

	store := service.NewProductStore(productRepo, historyRepo, &service.StoreConfig{
		UpdateChunkSize: cfg.Batch.UpdateChunkSize,
	})

	collector := service.NewCollector(searchClient, store, &service.CollectorConfig{
		Timeout:    cfg.Batch.CollectTimeout,
		MaxResults: cfg.Batch.CollectMaxResults,
	})

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Run collection
	result, err := collector.CollectKeyword(ctx, &service.CollectRequest{
		Query:      *query,
		MaxResults: *maxResults,
		Sort:       *sort,
		Force:      *force,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Collection failed")
	}

	if result.Skipped {
		appLogger.WithFields(logger.Fields{
			"query":             result.Query,
			"last_collected_at": result.LastCollectedAt,
		}).Info("Keyword already collected, use -force to collect again")
		return
	}

	appLogger.WithFields(logger.Fields{
		"collected": result.Collected,
		"total":     result.Total,
		"new":       result.New,
		"updated":   result.Updated,
	}).Info("Collection completed")
}
