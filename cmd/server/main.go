package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adlens/adlens/internal"
	"github.com/adlens/adlens/internal/analyzer"
	"github.com/adlens/adlens/internal/analyzer/mock"
	"github.com/adlens/adlens/internal/analyzer/remote"
	"github.com/adlens/adlens/internal/billing"
	"github.com/adlens/adlens/internal/docstore"
	"github.com/adlens/adlens/internal/handler"
	"github.com/adlens/adlens/internal/metrics"
	"github.com/adlens/adlens/internal/middleware"
	"github.com/adlens/adlens/internal/service"
	"github.com/adlens/adlens/internal/storage"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize document store
	var store docstore.Store
	switch cfg.DocstoreProvider {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		if err := internal.RunMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		store = docstore.NewPostgresStore(db)
		logger.Info("Database ready")
	default:
		store = docstore.NewMemoryStore()
		logger.Warn("Using in-memory document store; data will not survive restarts")
	}

	// Initialize blob storage
	var blobs storage.Storage
	switch cfg.StorageProvider {
	case "r2":
		blobs, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		blobs, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize analysis provider
	var provider analyzer.Provider
	switch cfg.AnalyzerProvider {
	case "remote":
		provider = remote.New(analyzer.ProviderConfig{
			BaseURL:        cfg.AnalyzerURL,
			RequestTimeout: cfg.AnalyzerRequestTimeout,
		}, logger)
	default:
		provider = mock.New(logger)
	}
	logger.Info("Analyzer ready", "provider", cfg.AnalyzerProvider)

	// Billing core
	clock := billing.SystemClock{}
	plans := billing.NewPlanStore(store)
	mirror := billing.NewMirror(store, clock, logger)
	gate := billing.NewGate(plans, mirror, clock, logger)
	engine := billing.NewEngine(plans, mirror, clock, logger)
	reconciler := billing.NewReconciler(plans, mirror, clock, logger)

	// Monthly reset sweep
	if cfg.ReconcileEnabled {
		runner, err := billing.NewRunner(reconciler, cfg.ReconcileSchedule, logger)
		if err != nil {
			return fmt.Errorf("reconcile runner initialization failed: %w", err)
		}
		runner.Start()
		defer runner.Stop()
		logger.Info("Monthly reset sweep scheduled", "schedule", cfg.ReconcileSchedule)
	}

	// Initialize services
	planService := service.NewPlanService(engine, plans, mirror, clock, logger)
	brandService := service.NewBrandService(store, blobs, service.NewImagingProcessor(), logger)
	analysisService := service.NewAnalysisService(store, blobs, provider, gate, plans, brandService, logger)
	profileService := service.NewProfileService(store, logger)

	// Initialize handlers
	planHandler := handler.NewPlanHandler(planService, reconciler, logger)
	analysisHandler := handler.NewAnalysisHandler(analysisService, logger)
	brandHandler := handler.NewBrandHandler(brandService, logger)
	profileHandler := handler.NewProfileHandler(profileService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics (optionally behind basic auth)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	planHandler.RegisterRoutes(mux)
	analysisHandler.RegisterRoutes(mux)
	brandHandler.RegisterRoutes(mux)
	profileHandler.RegisterRoutes(mux)

	// Wrap with request logging and metrics
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	root := metrics.Middleware(loggingMw.Handler(mux))

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
