package datastore

import "context"

// Source loads the canonical training dataset.
type Source interface {
	LoadFrame(ctx context.Context) (*Frame, error)
}

// CSVSource reads the dataset from a CSV file on disk.
type CSVSource struct {
	Path string
}

// LoadFrame implements Source.
func (s CSVSource) LoadFrame(ctx context.Context) (*Frame, error) {
	return LoadFrameCSV(ctx, s.Path)
}

var (
	_ Source = CSVSource{}
	_ Source = (*Repository)(nil)
)
