package datastore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/bikeshare-demand/internal/config"
)

// OpenSource returns the dataset source selected by cfg. The returned close
// func releases the database pool, if any, and is never nil.
func OpenSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Source, func(), error) {
	switch cfg.Dataset.Source {
	case "", "csv":
		logger.Info("Using CSV dataset", zap.String("path", cfg.Dataset.Path))
		return CSVSource{Path: cfg.Dataset.Path}, func() {}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Using postgres dataset", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
		return NewRepository(pool, logger), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown dataset source %q", cfg.Dataset.Source)
}
