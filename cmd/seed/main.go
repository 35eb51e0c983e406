// Command seed applies the database migrations and loads an hour.csv file
// into the hourly_rentals table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/your-org/bikeshare-demand/db/schema"
	"github.com/your-org/bikeshare-demand/internal/config"
	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/pkg/logger"
)

func main() {
	// --- Argument Parsing ---
	configPath := flag.String("config", config.DefaultPath, "Path to the configuration file")
	csvPath := flag.String("csv", "", "CSV file to load (defaults to dataset.path)")
	migrateOnly := flag.Bool("migrate-only", false, "Apply migrations without loading data")
	flag.Parse()

	// --- Config and Logger Setup ---
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration to get DB settings: %v", err)
	}
	logger.SetGlobalLogLevel(cfg.LogLevel)
	defer logger.Sync()
	if cfg.DBName == "" {
		logger.Fatal("DB_NAME is required to seed the database.")
	}

	// --- Migrations ---
	version, err := schema.Migrate(cfg.DatabaseURL())
	if err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Infof("Database schema at version %d.", version)
	if *migrateOnly {
		return
	}

	path := *csvPath
	if path == "" {
		path = cfg.Dataset.Path
	}
	ctx := context.Background()
	frame, err := datastore.LoadFrameCSV(ctx, path)
	if err != nil {
		logger.Fatalf("Failed to read %s: %v", path, err)
	}
	if missing := frame.Missing(datastore.TrackedColumns()); len(missing) > 0 {
		logger.Fatalf("%s lacks required columns %v", path, missing)
	}

	// --- Database Connection ---
	dbpool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		logger.Fatalf("Unable to connect to database: %v", err)
	}
	defer dbpool.Close()

	n, err := datastore.NewRepository(dbpool, logger.Zap()).CopyFrame(ctx, frame)
	if err != nil {
		logger.Fatalf("Failed to load rows: %v", err)
	}
	logger.Infof("Successfully loaded %d rows from %s.", n, path)
}
