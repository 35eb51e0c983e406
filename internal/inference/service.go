// Package inference serves predictions from the resident model artifact.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/bikeshare-demand/internal/artifact"
	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/internal/features"
	"github.com/your-org/bikeshare-demand/internal/learning"
	"github.com/your-org/bikeshare-demand/internal/telemetry"
)

// Store persists and restores model bundles.
type Store interface {
	Load(ctx context.Context) artifact.LoadResult
	Save(ctx context.Context, b *artifact.Bundle) error
}

// Trainer fits a model bundle from a dataset frame.
type Trainer interface {
	Train(ctx context.Context, frame *datastore.Frame) (*learning.Result, error)
}

// Deps are the collaborators Startup needs.
type Deps struct {
	Store   Store
	Trainer Trainer
	Source  datastore.Source
	Logger  *zap.Logger
	// Pick returns a uniform index in [0, n). Defaults to math/rand/v2.
	Pick func(n int) int
}

// ValidationError is returned for a record the model cannot score.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Prediction is the response to one prediction request.
type Prediction struct {
	Prediction float64  `json:"prediction"`
	Actual     *float64 `json:"actual,omitempty"`
	ErrorAbs   *float64 `json:"error_abs,omitempty"`
	ErrorPct   *float64 `json:"error_pct,omitempty"`
}

// Service holds the resident artifact. It is read-only after Startup and
// safe for concurrent use.
type Service struct {
	bundle    *artifact.Bundle
	predicted []float64
	origin    artifact.Status
	logger    *zap.Logger
	pick      func(n int) int
	startedAt time.Time
}

// Startup loads the persisted artifact, or retrains and saves a new one when
// it is missing or incompatible. Training and save failures abort startup.
func Startup(ctx context.Context, deps Deps) (*Service, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	res := deps.Store.Load(ctx)
	bundle := res.Bundle
	if res.Status != artifact.StatusLoaded {
		log.Warn("Model artifact unavailable, retraining",
			zap.Stringer("status", res.Status),
			zap.Error(res.Reason))
		telemetry.CountRetrain(res.Status.String())

		var err error
		bundle, err = retrain(ctx, deps, log)
		if err != nil {
			return nil, err
		}
	} else {
		log.Info("Loaded model artifact",
			zap.String("artifact_id", bundle.Manifest.ID),
			zap.String("algorithm", bundle.Manifest.Algorithm))
	}

	return newService(bundle, res.Status, deps.Pick, log)
}

func retrain(ctx context.Context, deps Deps, log *zap.Logger) (*artifact.Bundle, error) {
	frame, err := deps.Source.LoadFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load training dataset: %w", err)
	}
	result, err := deps.Trainer.Train(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	bundle, err := artifact.NewBundle(result)
	if err != nil {
		return nil, fmt.Errorf("failed to build artifact: %w", err)
	}
	if err := deps.Store.Save(ctx, bundle); err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}
	log.Info("Retrained model artifact",
		zap.String("artifact_id", bundle.Manifest.ID),
		zap.String("algorithm", bundle.Manifest.Algorithm),
		zap.Float64("r2", result.Best.R2))
	return bundle, nil
}

func newService(b *artifact.Bundle, origin artifact.Status, pick func(int) int, log *zap.Logger) (*Service, error) {
	if b == nil || b.Model == nil || b.Transformer == nil {
		return nil, errors.New("incomplete model bundle")
	}
	if pick == nil {
		pick = rand.IntN
	}
	s := &Service{
		bundle:    b,
		origin:    origin,
		logger:    log,
		pick:      pick,
		startedAt: time.Now().UTC(),
	}

	s.predicted = make([]float64, len(b.TestSplit))
	for i, sample := range b.TestSplit {
		v, err := s.score(sample.Record)
		if err != nil {
			return nil, fmt.Errorf("test split row %d: %w", i, err)
		}
		s.predicted[i] = v
	}

	log.Debug("Scored held-out split", zap.Int("rows", len(s.predicted)))
	telemetry.SetModel(b.Manifest.ID, b.Manifest.Algorithm, b.Manifest.SchemaVersion)
	return s, nil
}

// score returns the clipped prediction rounded to one decimal.
func (s *Service) score(r features.Record) (float64, error) {
	x, err := s.bundle.Transformer.Transform(r)
	if err != nil {
		return 0, err
	}
	raw := math.Max(0, s.bundle.Model.Predict(x))
	return decimal.NewFromFloat(raw).Round(1).InexactFloat64(), nil
}

// Predict scores r. When actual is given the response also carries the
// absolute error and the error as a percentage of max(actual, 1).
func (s *Service) Predict(r features.Record, actual *float64) (Prediction, error) {
	pred, err := s.score(r)
	if err != nil {
		var se *features.SchemaError
		if errors.As(err, &se) {
			return Prediction{}, &ValidationError{Err: err}
		}
		return Prediction{}, err
	}

	out := Prediction{Prediction: pred}
	if actual != nil {
		a := *actual
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return Prediction{}, &ValidationError{Err: &features.SchemaError{Field: "actual", Reason: "must be a finite number"}}
		}
		errAbs := math.Abs(pred - a)
		errPct := errAbs / math.Max(a, 1) * 100
		out.Actual, out.ErrorAbs, out.ErrorPct = &a, &errAbs, &errPct
	}
	return out, nil
}

// Origin returns the load status seen at startup. Anything other than
// StatusLoaded means the resident model was retrained.
func (s *Service) Origin() artifact.Status { return s.origin }

// Manifest returns the resident artifact's metadata.
func (s *Service) Manifest() artifact.Manifest { return s.bundle.Manifest }
