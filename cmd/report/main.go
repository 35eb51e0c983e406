// Command report prints the persisted model's leaderboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/your-org/bikeshare-demand/internal/artifact"
	"github.com/your-org/bikeshare-demand/internal/config"
	"github.com/your-org/bikeshare-demand/internal/learning"
	"github.com/your-org/bikeshare-demand/pkg/logger"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the configuration file")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// If config fails to load, we can't even start the logger properly.
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Logger Setup ---
	l := logger.NewLogger(cfg.LogLevel)

	store := artifact.NewFileStore(cfg.Artifacts.Dir, logger.NewZap(cfg.LogLevel))
	res := store.Load(context.Background())
	if res.Status != artifact.StatusLoaded {
		l.Fatalf("No usable artifact in %s (%s): %v", cfg.Artifacts.Dir, res.Status, res.Reason)
	}

	if err := writeReport(os.Stdout, res.Bundle.Manifest); err != nil {
		l.Fatalf("Failed to write report: %v", err)
	}
}

// writeReport renders the artifact header and every candidate, best first.
func writeReport(w io.Writer, m artifact.Manifest) error {
	fmt.Fprintf(w, "artifact:  %s\n", m.ID)
	fmt.Fprintf(w, "trained:   %s\n", m.TrainedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "schema:    %s (%d features)\n", m.SchemaVersion, len(m.Columns))
	fmt.Fprintf(w, "rows:      %d train / %d test\n\n", m.TrainRows, m.TestRows)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "rank\talgorithm\tR²\tMAE\tRMSE\t\t")
	for i, met := range learning.Rank(m.Metrics) {
		mark := ""
		if met.Algorithm == m.Algorithm {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n", i+1, met.Algorithm,
			fixed(met.R2, 4), fixed(met.MAE, 2), fixed(met.RMSE, 2), mark)
	}
	return tw.Flush()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
