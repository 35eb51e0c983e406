package learning

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// GradientBoosting fits shallow trees to the residuals of squared loss.
type GradientBoosting struct {
	Estimators     int             `json:"estimators"`
	LearningRate   float64         `json:"learning_rate"`
	MaxDepth       int             `json:"max_depth"`
	MinSamplesLeaf int             `json:"min_samples_leaf"`
	Subsample      float64         `json:"subsample"`
	Seed           uint64          `json:"seed"`
	Init           float64         `json:"init"`
	Stages         []*DecisionTree `json:"stages"`
}

// NewGradientBoosting creates an untrained booster. subsample of 1 uses every row per stage.
func NewGradientBoosting(estimators int, learningRate float64, maxDepth, minSamplesLeaf int, subsample float64, seed uint64) *GradientBoosting {
	return &GradientBoosting{
		Estimators:     estimators,
		LearningRate:   learningRate,
		MaxDepth:       maxDepth,
		MinSamplesLeaf: minSamplesLeaf,
		Subsample:      subsample,
		Seed:           seed,
	}
}

func (g *GradientBoosting) Algorithm() string { return AlgorithmBoosting }

// Fit starts from the target mean and adds LearningRate times each stage's tree.
func (g *GradientBoosting) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}
	if g.Estimators < 1 {
		return fmt.Errorf("boosting needs at least one estimator, got %d", g.Estimators)
	}
	if g.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", g.LearningRate)
	}

	n := len(x)
	rng := rand.New(rand.NewPCG(g.Seed, 0x6762))
	g.Init = stat.Mean(y, nil)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.Init
	}
	residual := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	sampleSize := n
	if g.Subsample > 0 && g.Subsample < 1 {
		sampleSize = max(1, int(g.Subsample*float64(n)))
	}

	stages := make([]*DecisionTree, 0, g.Estimators)
	for m := 0; m < g.Estimators; m++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		rows := all
		if sampleSize < n {
			rows = rng.Perm(n)[:sampleSize]
		}
		tree := &DecisionTree{MaxDepth: g.MaxDepth, MinSamplesLeaf: g.MinSamplesLeaf, Seed: g.Seed + uint64(m)}
		if err := tree.fitRows(ctx, x, residual, rows, rng); err != nil {
			return fmt.Errorf("stage %d: %w", m, err)
		}
		for i := range pred {
			pred[i] += g.LearningRate * tree.Predict(x[i])
		}
		stages = append(stages, tree)
	}
	g.Stages = stages
	return nil
}

// Predict returns Init plus the shrunk sum of the stage predictions.
func (g *GradientBoosting) Predict(x []float64) float64 {
	v := g.Init
	for _, t := range g.Stages {
		v += g.LearningRate * t.Predict(x)
	}
	return v
}

func (g *GradientBoosting) validate(width int) error {
	if len(g.Stages) == 0 {
		return fmt.Errorf("booster has no stages")
	}
	for i, t := range g.Stages {
		if t == nil {
			return fmt.Errorf("stage %d is missing", i)
		}
		if err := t.validate(width); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return nil
}
