package learning

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest averages bagged regression trees grown on feature subsets.
type RandomForest struct {
	Trees          int             `json:"trees"`
	MaxDepth       int             `json:"max_depth"`
	MinSamplesLeaf int             `json:"min_samples_leaf"`
	MaxFeatures    float64         `json:"max_features"`
	Seed           uint64          `json:"seed"`
	Estimators     []*DecisionTree `json:"estimators"`
}

// NewRandomForest creates an untrained forest.
func NewRandomForest(trees, maxDepth, minSamplesLeaf int, maxFeatures float64, seed uint64) *RandomForest {
	return &RandomForest{
		Trees:          trees,
		MaxDepth:       maxDepth,
		MinSamplesLeaf: minSamplesLeaf,
		MaxFeatures:    maxFeatures,
		Seed:           seed,
	}
}

func (f *RandomForest) Algorithm() string { return AlgorithmForest }

// Fit grows the trees concurrently. Each tree draws its bootstrap sample and
// feature subsets from its own generator, so the result does not depend on
// scheduling.
func (f *RandomForest) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}
	if f.Trees < 1 {
		return fmt.Errorf("forest needs at least one tree, got %d", f.Trees)
	}

	n := len(x)
	trees := make([]*DecisionTree, f.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(f.Seed, uint64(i)+1))
			rows := make([]int, n)
			for j := range rows {
				rows[j] = rng.IntN(n)
			}
			tree := &DecisionTree{
				MaxDepth:       f.MaxDepth,
				MinSamplesLeaf: f.MinSamplesLeaf,
				MaxFeatures:    f.MaxFeatures,
				Seed:           f.Seed + uint64(i),
			}
			if err := tree.fitRows(gctx, x, y, rows, rng); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.Estimators = trees
	return nil
}

// Predict returns the mean prediction of the trees.
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.Estimators) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Estimators {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Estimators))
}

func (f *RandomForest) validate(width int) error {
	if len(f.Estimators) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i, t := range f.Estimators {
		if t == nil {
			return fmt.Errorf("tree %d is missing", i)
		}
		if err := t.validate(width); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
