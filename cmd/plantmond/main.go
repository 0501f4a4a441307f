package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"plant-monitor-backend/config"
	"plant-monitor-backend/internal/aggregate"
	"plant-monitor-backend/internal/api"
	"plant-monitor-backend/internal/blob"
	"plant-monitor-backend/internal/classifier"
	"plant-monitor-backend/internal/db"
	"plant-monitor-backend/internal/labelmap"
	"plant-monitor-backend/internal/notification"
	"plant-monitor-backend/internal/pipeline"
	"plant-monitor-backend/internal/store"
	"plant-monitor-backend/internal/watering"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "plant-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Web push is optional; without VAPID keys alert notifications are
	// logged and dropped.
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys not configured; push notifications disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	limiter := watering.NewLimiter(watering.Config{
		MaxDuration: time.Duration(cfg.Watering.MaxDurationSeconds) * time.Second,
		Cooldown:    time.Duration(cfg.Watering.CooldownMinutes) * time.Minute,
		MaxPerHour:  cfg.Watering.MaxPerHour,
	})

	blobs, err := blob.NewFileStore(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		logger.Fatalf("failed to initialize blob storage: %v", err)
	}

	var cls classifier.Classifier
	if cfg.Classifier.Enabled {
		cls = classifier.NewHTTPClassifier(&cfg.Classifier)
		logger.Printf("classifier enabled: %s", cfg.Classifier.URL)
	} else {
		logger.Println("classifier disabled; images stored without identification")
	}

	mapper := labelmap.NewMapper(appStore)

	// Inference worker pool
	pipelineSvc := pipeline.NewService(cfg.WorkerPool.Size, appStore, blobs, cls, mapper)
	pipelineSvc.Start(ctx)

	// Notification worker pool
	notifier := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
	notifier.Start(ctx)

	// Hourly rollups and retention cleanup in the background
	aggSvc := aggregate.NewService(cfg, appStore)
	go aggSvc.Run(ctx)

	// Initialize router
	router := api.NewRouter(cfg, appStore, limiter, pipelineSvc, notifier, blobs.Dir())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
