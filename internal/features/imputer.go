package features

import (
	"math"
	"slices"
)

// ColumnSource exposes raw input columns by name. Missing cells are NaN.
type ColumnSource interface {
	Column(name string) []float64
}

// Imputer holds the fill value of every raw input column.
// Numeric columns use the median, categorical columns the mode.
type Imputer struct {
	Fill map[string]float64 `json:"fill"`
}

// FitImputer computes fill values from the observed cells of src.
// A column with no observed value falls back to the low end of its range.
func FitImputer(src ColumnSource) *Imputer {
	im := &Imputer{Fill: make(map[string]float64, len(inputColumns))}
	for _, c := range inputColumns {
		observed := make([]float64, 0)
		for _, v := range src.Column(c.name) {
			if !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			im.Fill[c.name] = c.lo
			continue
		}
		if c.categorical {
			im.Fill[c.name] = mode(observed)
		} else {
			im.Fill[c.name] = median(observed)
		}
	}
	return im
}

// Value returns v, or the fill value of column name when v is missing.
// A nil Imputer leaves missing values as NaN.
func (im *Imputer) Value(name string, v float64) float64 {
	if !math.IsNaN(v) || im == nil {
		return v
	}
	if fill, ok := im.Fill[name]; ok {
		return fill
	}
	return v
}

func median(xs []float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mode picks the most frequent value, the smallest one on ties.
func mode(xs []float64) float64 {
	counts := make(map[float64]int, 16)
	for _, x := range xs {
		counts[x]++
	}
	best, bestCount := math.Inf(1), 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}
