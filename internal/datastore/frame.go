package datastore

import (
	"math"
	"slices"
	"time"

	"github.com/your-org/bikeshare-demand/internal/features"
)

const (
	// DateColumn holds the calendar day of an hourly row.
	DateColumn = "dteday"
	// TargetColumn holds the hourly rental count.
	TargetColumn = "cnt"
	dateLayout   = time.DateOnly
)

// TrackedColumns returns the numeric columns a Frame keeps, inputs first.
func TrackedColumns() []string {
	return append(features.InputColumns(), TargetColumn)
}

// Frame は生データセットの列指向ビューです。欠損セルは NaN で保持します。
type Frame struct {
	header []string
	cols   map[string][]float64
	dates  []time.Time
	n      int
}

// NewFrame creates an empty frame for a source whose header is header.
func NewFrame(header []string) *Frame {
	f := &Frame{
		header: slices.Clone(header),
		cols:   make(map[string][]float64),
	}
	for _, name := range TrackedColumns() {
		f.cols[name] = nil
	}
	return f
}

// Header returns the column names present in the source.
func (f *Frame) Header() []string { return slices.Clone(f.header) }

// Has reports whether the source provided the named column.
func (f *Frame) Has(name string) bool { return slices.Contains(f.header, name) }

// Missing returns the required columns the source did not provide.
func (f *Frame) Missing(required []string) []string {
	var out []string
	for _, name := range required {
		if !f.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Column returns the values of a tracked column. Missing cells are NaN.
func (f *Frame) Column(name string) []float64 { return f.cols[name] }

// Date returns the day of row i, zero when unknown.
func (f *Frame) Date(i int) time.Time { return f.dates[i] }

// Append adds a row. Tracked columns absent from values are stored as NaN.
func (f *Frame) Append(date time.Time, values map[string]float64) {
	for name := range f.cols {
		v, ok := values[name]
		if !ok {
			v = math.NaN()
		}
		f.cols[name] = append(f.cols[name], v)
	}
	f.dates = append(f.dates, date)
	f.n++
}

// SampleStats counts the rows Samples could not turn into samples.
type SampleStats struct {
	MissingTarget int
	Invalid       int
}

// Samples fills missing inputs with im and converts every usable row.
// Rows without a target or with an out-of-domain value are skipped.
func (f *Frame) Samples(im *features.Imputer) ([]Sample, SampleStats) {
	var stats SampleStats
	samples := make([]Sample, 0, f.n)
	target := f.cols[TargetColumn]

	for i := 0; i < f.n; i++ {
		cnt := target[i]
		if math.IsNaN(cnt) {
			stats.MissingTarget++
			continue
		}
		rec, err := features.RecordFromValues(func(name string) float64 {
			return im.Value(name, f.cols[name][i])
		})
		if err != nil || cnt < 0 || math.IsInf(cnt, 0) {
			stats.Invalid++
			continue
		}
		s := Sample{Record: rec, Cnt: cnt}
		if d := f.dates[i]; !d.IsZero() {
			s.Dteday = d.Format(dateLayout)
		}
		samples = append(samples, s)
	}
	return samples, stats
}

// FrameFromSamples rebuilds a frame from samples, such as a persisted split.
func FrameFromSamples(samples []Sample) *Frame {
	f := NewFrame(append([]string{DateColumn}, TrackedColumns()...))
	for _, s := range samples {
		values := make(map[string]float64, len(f.cols))
		for _, name := range features.InputColumns() {
			values[name] = s.Value(name)
		}
		values[TargetColumn] = s.Cnt
		d, _ := s.Date()
		f.Append(d, values)
	}
	return f
}
