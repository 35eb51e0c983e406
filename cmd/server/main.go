// Package main is the entry point of the bike demand prediction API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/your-org/bikeshare-demand/internal/artifact"
	"github.com/your-org/bikeshare-demand/internal/config"
	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/internal/http/handler"
	"github.com/your-org/bikeshare-demand/internal/inference"
	"github.com/your-org/bikeshare-demand/internal/learning"
	"github.com/your-org/bikeshare-demand/pkg/logger"
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", config.DefaultPath, "Path to the configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger.SetGlobalLogLevel(cfg.LogLevel)
	defer logger.Sync()
	log := logger.Zap()
	logger.Infof("Loaded configuration from: %s", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Model ---
	source, closeSource, err := datastore.OpenSource(ctx, cfg, log)
	if err != nil {
		logger.Fatalf("Failed to open dataset source: %v", err)
	}
	defer closeSource()

	pipeline, err := learning.NewPipeline(cfg.Training, log)
	if err != nil {
		logger.Fatalf("Failed to build training pipeline: %v", err)
	}

	svc, err := inference.Startup(ctx, inference.Deps{
		Store:   artifact.NewFileStore(cfg.Artifacts.Dir, log),
		Trainer: pipeline,
		Source:  source,
		Logger:  log,
	})
	if err != nil {
		logger.Fatalf("Failed to start inference service: %v", err)
	}
	m := svc.Manifest()
	logger.Infof("Serving %s model %s (schema %s, origin %s)", m.Algorithm, m.ID, m.SchemaVersion, svc.Origin())

	// --- HTTP Server ---
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.NewRouter(svc, log),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal, draining connections...")
	case err := <-errCh:
		if err != nil {
			logger.Errorf("HTTP server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server shut down gracefully.")
}
