package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/your-org/bikeshare-demand/internal/artifact"
	"github.com/your-org/bikeshare-demand/internal/config"
	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/internal/learning"
	"github.com/your-org/bikeshare-demand/pkg/logger"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config file")
	flag.Parse()

	// 設定とロガーを初期化
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	logger.SetGlobalLogLevel(cfg.LogLevel)
	defer logger.Sync()
	log := logger.Zap()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := datastore.OpenSource(ctx, cfg, log)
	if err != nil {
		logger.Fatalf("Failed to open dataset source: %v", err)
	}
	defer closeSource()

	pipeline, err := learning.NewPipeline(cfg.Training, log)
	if err != nil {
		logger.Fatalf("Failed to build training pipeline: %v", err)
	}

	// 既存のアーティファクトの有無に関わらず再学習して保存する
	frame, err := source.LoadFrame(ctx)
	if err != nil {
		logger.Fatalf("Failed to load training dataset: %v", err)
	}
	result, err := pipeline.Train(ctx, frame)
	if err != nil {
		logger.Fatalf("Training failed: %v", err)
	}
	bundle, err := artifact.NewBundle(result)
	if err != nil {
		logger.Fatalf("Failed to build artifact: %v", err)
	}
	if err := artifact.NewFileStore(cfg.Artifacts.Dir, log).Save(ctx, bundle); err != nil {
		logger.Fatalf("Failed to save artifact: %v", err)
	}

	logger.Infof("Saved %s model %s to %s (R²=%.4f, RMSE=%.2f)",
		bundle.Manifest.Algorithm, bundle.Manifest.ID, cfg.Artifacts.Dir, result.Best.R2, result.Best.RMSE)
}
