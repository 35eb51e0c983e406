package learning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/bikeshare-demand/internal/config"
	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/internal/features"
	"github.com/your-org/bikeshare-demand/internal/telemetry"
)

// Split modes.
const (
	SplitRandom = "random"
	SplitDate   = "date"
)

// ErrEmptyDataset is wrapped by TrainingError when no usable row remains.
var ErrEmptyDataset = errors.New("dataset has no usable rows")

// TrainingError は学習が続行できない失敗を表します。リトライはしません。
type TrainingError struct {
	Stage string
	Err   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed at %s: %v", e.Stage, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// Result は学習の成果物です。保存は呼び出し側が行います。
type Result struct {
	Model       Model
	Metrics     []Metrics
	Best        Metrics
	Transformer *features.Transformer
	Train       []datastore.Sample
	Test        []datastore.Sample
	TrainedAt   time.Time
}

// Pipelineは候補モデルの学習・評価・選択を行うバッチ学習パイプラインです。
type Pipeline struct {
	cfg       config.TrainingConf
	splitDate time.Time
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipelineは新しいPipelineを生成します。
func NewPipeline(cfg config.TrainingConf, logger *zap.Logger) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, logger: logger, now: time.Now}
	switch cfg.SplitMode {
	case SplitRandom, "":
	case SplitDate:
		d, err := time.Parse(time.DateOnly, cfg.SplitDate)
		if err != nil {
			return nil, fmt.Errorf("invalid split date %q: %w", cfg.SplitDate, err)
		}
		p.splitDate = d
	default:
		return nil, fmt.Errorf("unknown split mode %q", cfg.SplitMode)
	}
	seen := make(map[string]bool, len(cfg.Algorithms))
	for _, name := range cfg.Algorithms {
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("algorithm %q listed twice", name)
		}
		seen[name] = true
	}
	if len(cfg.Algorithms) == 0 {
		return nil, errors.New("no candidate algorithms configured")
	}
	return p, nil
}

// Train は frame から候補モデルを学習し、評価用データで最良のものを選びます。
func (p *Pipeline) Train(ctx context.Context, frame *datastore.Frame) (*Result, error) {
	if frame == nil || frame.Len() == 0 {
		return nil, &TrainingError{Stage: "load", Err: ErrEmptyDataset}
	}
	required := datastore.TrackedColumns()
	if p.cfg.SplitMode == SplitDate {
		required = append(required, datastore.DateColumn)
	}
	if missing := frame.Missing(required); len(missing) > 0 {
		return nil, &TrainingError{Stage: "load", Err: fmt.Errorf("missing required columns %v", missing)}
	}

	imputer := features.FitImputer(frame)
	samples, stats := frame.Samples(imputer)
	if stats.MissingTarget > 0 || stats.Invalid > 0 {
		p.logger.Warn("Dropped unusable rows",
			zap.Int("missing_target", stats.MissingTarget),
			zap.Int("invalid", stats.Invalid))
	}
	if len(samples) == 0 {
		return nil, &TrainingError{Stage: "prepare", Err: ErrEmptyDataset}
	}

	train, test, err := p.split(samples)
	if err != nil {
		return nil, &TrainingError{Stage: "split", Err: err}
	}
	p.logger.Info("Split dataset",
		zap.String("mode", p.splitMode()),
		zap.Int("train", len(train)),
		zap.Int("test", len(test)))

	tr := features.Fit(records(train))
	tr.Imputer = imputer
	xTrain, err := tr.TransformAll(records(train))
	if err != nil {
		return nil, &TrainingError{Stage: "transform", Err: err}
	}
	xTest, err := tr.TransformAll(records(test))
	if err != nil {
		return nil, &TrainingError{Stage: "transform", Err: err}
	}
	yTrain, yTest := targets(train), targets(test)

	var (
		models  []Model
		metrics []Metrics
	)
	for _, m := range p.candidates() {
		start := time.Now()
		if err := m.Fit(ctx, xTrain, yTrain); err != nil {
			if ctx.Err() != nil {
				return nil, &TrainingError{Stage: "fit", Err: ctx.Err()}
			}
			p.logger.Warn("Candidate failed to fit", zap.String("algorithm", m.Algorithm()), zap.Error(err))
			continue
		}
		elapsed := time.Since(start)
		telemetry.ObserveTraining(m.Algorithm(), elapsed)

		met := Evaluate(m.Algorithm(), yTest, PredictAll(m, xTest))
		if math.IsNaN(met.R2) {
			p.logger.Warn("Candidate has no finite R² on the test split", zap.String("algorithm", met.Algorithm))
			continue
		}
		telemetry.SetCandidateR2(m.Algorithm(), met.R2)
		p.logger.Info("Evaluated candidate",
			zap.String("algorithm", met.Algorithm),
			zap.Float64("mae", met.MAE),
			zap.Float64("rmse", met.RMSE),
			zap.Float64("r2", met.R2),
			zap.Duration("fit_time", elapsed))

		models = append(models, m)
		metrics = append(metrics, met)
	}

	best, err := SelectBest(metrics)
	if err != nil {
		return nil, &TrainingError{Stage: "select", Err: err}
	}
	p.logger.Info("Selected model",
		zap.String("algorithm", metrics[best].Algorithm),
		zap.Float64("r2", metrics[best].R2))

	return &Result{
		Model:       models[best],
		Metrics:     metrics,
		Best:        metrics[best],
		Transformer: tr,
		Train:       train,
		Test:        test,
		TrainedAt:   p.now().UTC(),
	}, nil
}

func (p *Pipeline) splitMode() string {
	if p.cfg.SplitMode == "" {
		return SplitRandom
	}
	return p.cfg.SplitMode
}

// split partitions samples into train and test, each kept in input order.
func (p *Pipeline) split(samples []datastore.Sample) (train, test []datastore.Sample, err error) {
	switch p.splitMode() {
	case SplitDate:
		undated := 0
		for _, s := range samples {
			d, ok := s.Date()
			switch {
			case !ok:
				undated++
			case d.Before(p.splitDate):
				train = append(train, s)
			default:
				test = append(test, s)
			}
		}
		if undated > 0 {
			p.logger.Warn("Dropped rows without dteday", zap.Int("rows", undated))
		}
	default:
		n := len(samples)
		frac := p.cfg.TestFraction.Float64()
		if frac <= 0 || frac >= 1 {
			frac = 0.2
		}
		nTest := int(math.Ceil(frac * float64(n)))
		rng := rand.New(rand.NewPCG(p.cfg.Seed, p.cfg.Seed))
		perm := rng.Perm(n)
		testIdx := slices.Clone(perm[:nTest])
		slices.Sort(testIdx)
		isTest := make([]bool, n)
		for _, i := range testIdx {
			isTest[i] = true
		}
		for i, s := range samples {
			if isTest[i] {
				test = append(test, s)
			} else {
				train = append(train, s)
			}
		}
	}

	if len(train) == 0 {
		return nil, nil, errors.New("train split is empty")
	}
	if len(test) == 0 {
		return nil, nil, errors.New("test split is empty")
	}
	return train, test, nil
}

// candidates builds fresh, untrained models in configured order.
func (p *Pipeline) candidates() []Model {
	c := p.cfg
	out := make([]Model, 0, len(c.Algorithms))
	for _, name := range c.Algorithms {
		switch name {
		case AlgorithmLinear:
			out = append(out, NewLinearRegression(c.Linear.Ridge))
		case AlgorithmTree:
			out = append(out, NewDecisionTree(c.Tree.MaxDepth, c.Tree.MinSamplesLeaf, c.Seed))
		case AlgorithmForest:
			out = append(out, NewRandomForest(c.Forest.Trees, c.Forest.MaxDepth, c.Forest.MinSamplesLeaf, c.Forest.MaxFeatures.Float64(), c.Seed))
		case AlgorithmBoosting:
			out = append(out, NewGradientBoosting(c.Boosting.Estimators, c.Boosting.LearningRate, c.Boosting.MaxDepth, c.Boosting.MinSamplesLeaf, c.Boosting.Subsample.Float64(), c.Seed))
		}
	}
	return out
}

func records(samples []datastore.Sample) []features.Record {
	out := make([]features.Record, len(samples))
	for i, s := range samples {
		out[i] = s.Record
	}
	return out
}

func targets(samples []datastore.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Cnt
	}
	return out
}
