// Package artifact persists the trained model, its fitted transformer and the
// held-out split, and loads them back for serving.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/internal/features"
	"github.com/your-org/bikeshare-demand/internal/learning"
)

var (
	// ErrMissing means no complete artifact exists in the store.
	ErrMissing = errors.New("artifact missing")
	// ErrIncompatible means an artifact exists but cannot serve the current schema.
	ErrIncompatible = errors.New("artifact incompatible")
)

// Manifest is the metadata persisted in model.json alongside the
// serialized regressor.
type Manifest struct {
	ID            string             `json:"id"`
	Algorithm     string             `json:"algorithm"`
	SchemaVersion string             `json:"schema_version"`
	Columns       []string           `json:"columns"`
	TrainedAt     time.Time          `json:"trained_at"`
	TrainRows     int                `json:"train_rows"`
	TestRows      int                `json:"test_rows"`
	TestSplitHash string             `json:"test_split_sha256"`
	Metrics       []learning.Metrics `json:"metrics"`
	Params        json.RawMessage    `json:"params"`
}

// Bundle is everything the inference service needs.
type Bundle struct {
	Manifest    Manifest
	Model       learning.Model
	Transformer *features.Transformer
	TestSplit   []datastore.Sample
}

// BestMetrics returns the metrics of the selected algorithm.
func (b *Bundle) BestMetrics() (learning.Metrics, bool) {
	for _, m := range b.Manifest.Metrics {
		if m.Algorithm == b.Manifest.Algorithm {
			return m, true
		}
	}
	return learning.Metrics{}, false
}

// NewBundle wraps a training result under a fresh artifact id.
func NewBundle(res *learning.Result) (*Bundle, error) {
	if res == nil || res.Model == nil || res.Transformer == nil {
		return nil, fmt.Errorf("incomplete training result")
	}
	return &Bundle{
		Manifest: Manifest{
			ID:            uuid.NewString(),
			Algorithm:     res.Model.Algorithm(),
			SchemaVersion: res.Transformer.SchemaVersion,
			Columns:       res.Transformer.Columns,
			TrainedAt:     res.TrainedAt,
			TrainRows:     len(res.Train),
			TestRows:      len(res.Test),
			Metrics:       res.Metrics,
		},
		Model:       res.Model,
		Transformer: res.Transformer,
		TestSplit:   res.Test,
	}, nil
}
