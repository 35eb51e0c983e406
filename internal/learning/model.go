package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// アルゴリズム名。アーティファクトにはこの名前で保存されます。
const (
	AlgorithmLinear   = "linear_regression"
	AlgorithmTree     = "decision_tree"
	AlgorithmForest   = "random_forest"
	AlgorithmBoosting = "gradient_boosting"
)

// ErrUnknownAlgorithm is returned when decoding a model of an unregistered algorithm.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Modelは学習済み回帰モデルのインターフェースです。
type Model interface {
	// Fitは与えられた特徴量行列と目的変数でモデルを訓練します。
	Fit(ctx context.Context, x [][]float64, y []float64) error
	// Predictは1行分の特徴量から予測値を返します。
	Predict(x []float64) float64
	// Algorithmはアルゴリズム名を返します。
	Algorithm() string
}

var registry = map[string]func() Model{
	AlgorithmLinear:   func() Model { return &LinearRegression{} },
	AlgorithmTree:     func() Model { return &DecisionTree{} },
	AlgorithmForest:   func() Model { return &RandomForest{} },
	AlgorithmBoosting: func() Model { return &GradientBoosting{} },
}

// Encode はモデルのパラメータをJSONにシリアライズします。
func Encode(m Model) (json.RawMessage, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s model: %w", m.Algorithm(), err)
	}
	return raw, nil
}

// Decode は Encode で保存されたモデルを復元します。
// width は特徴量ベクトルの列数で、モデルが参照する列はこの範囲に収まる必要があります。
func Decode(algorithm string, raw json.RawMessage, width int) (Model, error) {
	newModel, ok := registry[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	m := newModel()
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("failed to decode %s model: %w", algorithm, err)
	}
	if v, ok := m.(interface{ validate(width int) error }); ok {
		if err := v.validate(width); err != nil {
			return nil, fmt.Errorf("invalid %s model: %w", algorithm, err)
		}
	}
	return m, nil
}

// PredictAll predicts every row of x.
func PredictAll(m Model, x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = m.Predict(row)
	}
	return out
}

func checkTrainingSet(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return errors.New("empty training set")
	}
	if len(x) != len(y) {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", len(x), len(y))
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}
	return nil
}
