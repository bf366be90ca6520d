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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/medtel/channel-analytics/internal/analytics"
	"github.com/medtel/channel-analytics/internal/api"
	"github.com/medtel/channel-analytics/internal/config"
	"github.com/medtel/channel-analytics/internal/detection"
	"github.com/medtel/channel-analytics/internal/loader"
	"github.com/medtel/channel-analytics/internal/notifications"
	"github.com/medtel/channel-analytics/internal/pipeline"
	"github.com/medtel/channel-analytics/internal/platform"
	"github.com/medtel/channel-analytics/internal/scheduler"
	"github.com/medtel/channel-analytics/internal/scraper"
	"github.com/medtel/channel-analytics/internal/staging"
	"github.com/medtel/channel-analytics/internal/store"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Channel Analytics Service")

	// Initialize the message store
	messageStore, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open message store: %v", err)
	}
	defer messageStore.Close()

	// Initialize the staging area
	stagingStore := staging.NewFSStore(cfg.StagingDir)

	// Initialize the Telegram client and connect in the background
	telegramClient, err := platform.NewTelegram(cfg.TelegramAPIID, cfg.TelegramAPIHash, cfg.SessionFile)
	if err != nil {
		logrus.Fatalf("Failed to initialize telegram client: %v", err)
	}
	go func() {
		if err := telegramClient.Start(context.Background()); err != nil {
			logrus.Fatalf("Telegram client failed: %v", err)
		}
	}()
	defer telegramClient.Close()

	// Initialize pipeline stages
	scraperService := scraper.NewService(cfg, telegramClient, stagingStore)
	loaderService := loader.NewService(stagingStore, messageStore)
	detectionService := detection.NewService(cfg.MediaDir, cfg.ProcessedDir)
	notificationService := notifications.NewService(cfg)

	pipelineService := pipeline.NewService(scraperService, loaderService, detectionService, notificationService)
	analyticsService := analytics.NewService(messageStore)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, pipelineService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up the HTTP API
	apiServer := api.NewServer(analyticsService, pipelineService)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
