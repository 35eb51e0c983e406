package learning

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics は評価用データに対する1候補モデルの精度です。
type Metrics struct {
	Algorithm string  `json:"algorithm"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	R2        float64 `json:"r2"`
}

// ClipNonNegative returns a copy of preds with negative values set to 0.
// Rental counts cannot be negative.
func ClipNonNegative(preds []float64) []float64 {
	out := make([]float64, len(preds))
	for i, p := range preds {
		out[i] = math.Max(0, p)
	}
	return out
}

// Evaluate computes MAE, RMSE and R² of preds against actual. Predictions
// are clipped at zero first. R² is NaN when it is undefined.
func Evaluate(algorithm string, actual, preds []float64) Metrics {
	m := Metrics{Algorithm: algorithm}
	n := len(actual)
	if n == 0 || n != len(preds) {
		m.MAE, m.RMSE, m.R2 = math.NaN(), math.NaN(), math.NaN()
		return m
	}
	clipped := ClipNonNegative(preds)
	m.MAE = floats.Distance(actual, clipped, 1) / float64(n)
	m.RMSE = floats.Distance(actual, clipped, 2) / math.Sqrt(float64(n))
	m.R2 = stat.RSquaredFrom(clipped, actual, nil)
	if math.IsInf(m.R2, 0) {
		// constant target: R² is undefined
		m.R2 = math.NaN()
	}
	return m
}

// SelectBest returns the index of the candidate with the highest R²,
// breaking ties by the lowest RMSE. NaN scores never win.
func SelectBest(candidates []Metrics) (int, error) {
	best := -1
	for i, m := range candidates {
		if math.IsNaN(m.R2) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		if better(m, candidates[best]) {
			best = i
		}
	}
	if best < 0 {
		return -1, errors.New("no candidate produced a finite R²")
	}
	return best, nil
}

// Rank returns a copy of candidates ordered best first. Candidates without a
// finite R² sort last.
func Rank(candidates []Metrics) []Metrics {
	out := slices.Clone(candidates)
	slices.SortStableFunc(out, func(a, b Metrics) int {
		switch {
		case math.IsNaN(a.R2) && math.IsNaN(b.R2):
			return 0
		case math.IsNaN(a.R2):
			return 1
		case math.IsNaN(b.R2):
			return -1
		case better(a, b):
			return -1
		case better(b, a):
			return 1
		}
		return 0
	})
	return out
}

func better(a, b Metrics) bool {
	return a.R2 > b.R2 || (a.R2 == b.R2 && a.RMSE < b.RMSE)
}
