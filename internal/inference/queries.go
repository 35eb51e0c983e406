package inference

import (
	"errors"
	"slices"
	"time"

	"github.com/your-org/bikeshare-demand/internal/artifact"
	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/internal/features"
	"github.com/your-org/bikeshare-demand/internal/learning"
)

// Paging limits for held-out data.
const (
	DefaultPageLimit  = 100
	MaxPageLimit      = 500
	DefaultChartLimit = 200
)

// ErrNoTestData is returned when the resident artifact has no held-out rows.
var ErrNoTestData = errors.New("no test data available")

// Page is a window over the held-out split.
type Page struct {
	Data   []datastore.Sample `json:"data"`
	Total  int                `json:"total"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
}

// TestData returns rows [offset, offset+limit) of the held-out split.
// A non-positive limit means DefaultPageLimit, larger limits are capped at
// MaxPageLimit, and an offset past the end yields an empty page.
func (s *Service) TestData(offset, limit int) Page {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)
	offset = max(offset, 0)

	split := s.bundle.TestSplit
	start := min(offset, len(split))
	end := min(start+limit, len(split))
	return Page{
		Data:   slices.Clone(split[start:end]),
		Total:  len(split),
		Offset: offset,
		Limit:  limit,
	}
}

// IndexedSample is a held-out row with its position in the split.
type IndexedSample struct {
	datastore.Sample
	Index int `json:"_index"`
}

// TestSample returns one held-out row chosen uniformly at random.
func (s *Service) TestSample() (IndexedSample, error) {
	n := len(s.bundle.TestSplit)
	if n == 0 {
		return IndexedSample{}, ErrNoTestData
	}
	i := s.pick(n)
	return IndexedSample{Sample: s.bundle.TestSplit[i], Index: i}, nil
}

// Comparison pairs actual and predicted counts for charting.
type Comparison struct {
	Actual    []float64 `json:"actual"`
	Predicted []float64 `json:"predicted"`
	Total     int       `json:"total"`
}

// ActualVsPredicted returns the first limit held-out rows with the
// predictions computed at startup.
func (s *Service) ActualVsPredicted(limit int) Comparison {
	if limit <= 0 {
		limit = DefaultChartLimit
	}
	total := len(s.bundle.TestSplit)
	n := min(limit, total)
	out := Comparison{
		Actual:    make([]float64, n),
		Predicted: slices.Clone(s.predicted[:n]),
		Total:     total,
	}
	for i := 0; i < n; i++ {
		out.Actual[i] = s.bundle.TestSplit[i].Cnt
	}
	return out
}

// LeaderboardEntry is one candidate's held-out score.
type LeaderboardEntry struct {
	learning.Metrics
	Best bool `json:"best"`
}

// Leaderboard lists every candidate by R² descending, then RMSE ascending.
func (s *Service) Leaderboard() []LeaderboardEntry {
	ranked := learning.Rank(s.bundle.Manifest.Metrics)
	entries := make([]LeaderboardEntry, len(ranked))
	for i, m := range ranked {
		entries[i] = LeaderboardEntry{Metrics: m, Best: m.Algorithm == s.bundle.Manifest.Algorithm}
	}
	return entries
}

// Summary describes the resident model.
type Summary struct {
	ArtifactID    string    `json:"artifact_id"`
	Algorithm     string    `json:"algorithm"`
	SchemaVersion string    `json:"schema_version"`
	TrainedAt     time.Time `json:"trained_at"`
	Retrained     bool      `json:"retrained"`
	StartedAt     time.Time `json:"started_at"`
	TrainCount    int       `json:"train_count"`
	TestCount     int       `json:"test_count"`
	TotalCount    int       `json:"total_count"`
	FeatureCount  int       `json:"feature_count"`
	BestR2        float64   `json:"best_r2"`
	BestMAE       float64   `json:"best_mae"`
	BestRMSE      float64   `json:"best_rmse"`
}

// Summary returns counts and the selected model's scores.
func (s *Service) Summary() Summary {
	m := s.bundle.Manifest
	out := Summary{
		ArtifactID:    m.ID,
		Algorithm:     m.Algorithm,
		SchemaVersion: m.SchemaVersion,
		TrainedAt:     m.TrainedAt,
		Retrained:     s.origin != artifact.StatusLoaded,
		StartedAt:     s.startedAt,
		TrainCount:    m.TrainRows,
		TestCount:     len(s.bundle.TestSplit),
		TotalCount:    m.TrainRows + len(s.bundle.TestSplit),
		FeatureCount:  features.NumColumns(),
	}
	if best, ok := s.bundle.BestMetrics(); ok {
		out.BestR2, out.BestMAE, out.BestRMSE = best.R2, best.MAE, best.RMSE
	}
	return out
}
