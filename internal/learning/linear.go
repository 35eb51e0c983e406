package learning

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearRegression is ordinary least squares with a small ridge term on the
// normal equations, so collinear one-hot blocks still factorize.
type LinearRegression struct {
	Ridge     float64   `json:"ridge"`
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// NewLinearRegression creates an untrained linear model.
func NewLinearRegression(ridge float64) *LinearRegression {
	return &LinearRegression{Ridge: ridge}
}

func (m *LinearRegression) Algorithm() string { return AlgorithmLinear }

// Fit solves (XcᵀXc + λI)β = Xcᵀyc on centered data and recovers the intercept.
func (m *LinearRegression) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}
	n, p := len(x), len(x[0])

	xMean := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		xMean[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i := range x {
		for j := 0; j < p; j++ {
			xc.Set(i, j, x[i][j]-xMean[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, xc.T())
	var xty mat.VecDense
	xty.MulVec(xc.T(), yc)

	ridge := m.Ridge
	if ridge <= 0 {
		ridge = 1e-9
	}
	var beta mat.VecDense
	var solved bool
	for attempt := 0; attempt < 6 && !solved; attempt++ {
		a := mat.NewSymDense(p, nil)
		a.CopySym(gram)
		for j := 0; j < p; j++ {
			a.SetSym(j, j, a.At(j, j)+ridge)
		}
		var chol mat.Cholesky
		if chol.Factorize(a) {
			if err := chol.SolveVecTo(&beta, &xty); err == nil {
				solved = true
				break
			}
		}
		ridge *= 100
	}
	if !solved {
		return errors.New("normal equations are not positive definite")
	}

	m.Coef = make([]float64, p)
	m.Intercept = yMean
	for j := 0; j < p; j++ {
		m.Coef[j] = beta.AtVec(j)
		m.Intercept -= m.Coef[j] * xMean[j]
	}
	return nil
}

// Predict returns intercept + coef·x.
func (m *LinearRegression) Predict(x []float64) float64 {
	v := m.Intercept
	for j, c := range m.Coef {
		v += c * x[j]
	}
	return v
}

func (m *LinearRegression) validate(width int) error {
	if len(m.Coef) != width {
		return fmt.Errorf("%d coefficients, want %d", len(m.Coef), width)
	}
	return nil
}
