package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/tilevault/internal/app"
	"github.com/cesargomez89/tilevault/internal/config"
	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/downloader"
	httpapp "github.com/cesargomez89/tilevault/internal/http"
	"github.com/cesargomez89/tilevault/internal/httpclient"
	"github.com/cesargomez89/tilevault/internal/logger"
	"github.com/cesargomez89/tilevault/internal/sources"
	"github.com/cesargomez89/tilevault/internal/store"
	"github.com/cesargomez89/tilevault/internal/tilestore"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize DB
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	tileStore := tilestore.New(db, cfg.CacheSize)

	// Source catalog: built-ins, then the optional file, then custom sources
	sourceManager := sources.NewManager(store.NewSettingsRepo(db), appLogger)
	if cfg.SourcesFile != "" {
		if err := sourceManager.LoadFile(cfg.SourcesFile); err != nil {
			appLogger.Error("Failed to load sources file", "path", cfg.SourcesFile, "error", err)
			os.Exit(1)
		}
	}
	if err := sourceManager.LoadCustom(); err != nil {
		appLogger.Warn("Failed to restore custom sources", "error", err)
	}

	// Initialize Scheduler
	client := httpclient.NewClient(nil, cfg.UserAgent, cfg.FetchTimeout)
	gate := httpclient.NewGate(cfg.RateLimit)
	scheduler := downloader.NewScheduler(tileStore, db, client, gate, cfg.Concurrency, cfg.ProgressFlushEvery, appLogger)
	defer scheduler.Stop()

	tileService := app.NewTileService(db, tileStore, scheduler, sourceManager, cfg, appLogger)
	if _, err := tileService.ResumeInterrupted(context.Background()); err != nil {
		appLogger.Error("Failed to resume interrupted jobs", "error", err)
	}

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := httpapp.NewHandler(tileService, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exiting")
}
