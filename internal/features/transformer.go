package features

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Transformer is the fitted feature pipeline: imputation statistics and a
// standard scaler over the engineered columns.
type Transformer struct {
	SchemaVersion string    `json:"schema_version"`
	Columns       []string  `json:"columns"`
	Mean          []float64 `json:"mean"`
	Scale         []float64 `json:"scale"`
	Imputer       *Imputer  `json:"imputer,omitempty"`
}

// Fit fits the scaler on the engineered vectors of records.
// Columns with zero variance keep a scale of 1.
func Fit(records []Record) *Transformer {
	n := NumColumns()
	t := &Transformer{
		SchemaVersion: SchemaVersion,
		Columns:       Columns(),
		Mean:          make([]float64, n),
		Scale:         make([]float64, n),
	}
	if len(records) == 0 {
		for j := range t.Scale {
			t.Scale[j] = 1
		}
		return t
	}

	rows := make([][]float64, len(records))
	for i, r := range records {
		rows[i] = Engineer(r)
	}
	col := make([]float64, len(rows))
	for j := 0; j < n; j++ {
		for i := range rows {
			col[i] = rows[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		t.Mean[j], t.Scale[j] = mean, std
	}
	return t
}

// Transform validates r, engineers its features and scales them.
func (t *Transformer) Transform(r Record) ([]float64, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	v := Engineer(r)
	for j := range v {
		v[j] = (v[j] - t.Mean[j]) / t.Scale[j]
	}
	return v, nil
}

// TransformAll transforms records in order, stopping at the first invalid one.
func (t *Transformer) TransformAll(records []Record) ([][]float64, error) {
	out := make([][]float64, len(records))
	for i, r := range records {
		v, err := t.Transform(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Compatible reports whether the fitted state matches the current schema.
func (t *Transformer) Compatible() error {
	if t.SchemaVersion != SchemaVersion {
		return fmt.Errorf("transformer schema %q, want %q", t.SchemaVersion, SchemaVersion)
	}
	if !slices.Equal(t.Columns, columns) {
		return fmt.Errorf("transformer columns do not match schema %s", SchemaVersion)
	}
	if len(t.Mean) != len(columns) || len(t.Scale) != len(columns) {
		return fmt.Errorf("transformer has %d/%d scaler entries, want %d", len(t.Mean), len(t.Scale), len(columns))
	}
	for j, s := range t.Scale {
		if s == 0 {
			return fmt.Errorf("transformer scale for %s is zero", columns[j])
		}
	}
	return nil
}
