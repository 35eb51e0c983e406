package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/your-org/bikeshare-demand/internal/csvwriter"
	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/internal/features"
	"github.com/your-org/bikeshare-demand/internal/learning"
)

// Files inside the artifact directory.
const (
	ModelFile       = "model.json"
	TransformerFile = "transformer.json"
	TestSplitFile   = "test_split.csv"
)

// Status is the outcome of a load attempt.
type Status int

const (
	StatusLoaded Status = iota
	StatusMissing
	StatusIncompatible
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusMissing:
		return "missing"
	case StatusIncompatible:
		return "incompatible"
	}
	return "unknown"
}

// LoadResult reports what Load found. Reason wraps ErrMissing or
// ErrIncompatible when Status is not StatusLoaded.
type LoadResult struct {
	Status Status
	Bundle *Bundle
	Reason error
}

func missing(format string, args ...any) LoadResult {
	return LoadResult{Status: StatusMissing, Reason: fmt.Errorf("%w: %s", ErrMissing, fmt.Sprintf(format, args...))}
}

func incompatible(format string, args ...any) LoadResult {
	return LoadResult{Status: StatusIncompatible, Reason: fmt.Errorf("%w: %s", ErrIncompatible, fmt.Sprintf(format, args...))}
}

// transformerFile ties the fitted transformer to the model it was saved with.
type transformerFile struct {
	ArtifactID  string                `json:"artifact_id"`
	Transformer *features.Transformer `json:"transformer"`
}

// FileStore keeps one artifact in a directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logger}
}

// Dir returns the artifact directory.
func (s *FileStore) Dir() string { return s.dir }

// Save writes the bundle. The test split and transformer go first and
// model.json last, so an interrupted save never loads as complete.
func (s *FileStore) Save(ctx context.Context, b *Bundle) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}

	params, err := learning.Encode(b.Model)
	if err != nil {
		return err
	}
	manifest := b.Manifest
	manifest.Params = params
	manifest.TestRows = len(b.TestSplit)

	if err := ctx.Err(); err != nil {
		return err
	}
	sum, err := s.writeTestSplit(b.TestSplit)
	if err != nil {
		return err
	}
	manifest.TestSplitHash = sum

	if err := writeJSONAtomic(filepath.Join(s.dir, TransformerFile), transformerFile{
		ArtifactID:  manifest.ID,
		Transformer: b.Transformer,
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(s.dir, ModelFile), manifest); err != nil {
		return err
	}
	b.Manifest = manifest

	s.logger.Info("Saved model artifact",
		zap.String("dir", s.dir),
		zap.String("artifact_id", manifest.ID),
		zap.String("algorithm", manifest.Algorithm),
		zap.Int("test_rows", manifest.TestRows))
	return nil
}

// Load reads the artifact back. Missing or unusable artifacts are reported
// in the result, never as a panic or process exit.
func (s *FileStore) Load(ctx context.Context) LoadResult {
	if err := ctx.Err(); err != nil {
		return LoadResult{Status: StatusMissing, Reason: fmt.Errorf("%w: %w", ErrMissing, err)}
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, ModelFile))
	if errors.Is(err, fs.ErrNotExist) {
		return missing("%s not found in %s", ModelFile, s.dir)
	}
	if err != nil {
		return incompatible("read %s: %v", ModelFile, err)
	}
	if err := validateManifest(raw); err != nil {
		return incompatible("%s: %v", ModelFile, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return incompatible("decode %s: %v", ModelFile, err)
	}
	if manifest.SchemaVersion != features.SchemaVersion {
		return incompatible("model schema %q, want %q", manifest.SchemaVersion, features.SchemaVersion)
	}
	if !slices.Equal(manifest.Columns, features.Columns()) {
		return incompatible("model columns do not match schema %s", features.SchemaVersion)
	}

	raw, err = os.ReadFile(filepath.Join(s.dir, TransformerFile))
	if errors.Is(err, fs.ErrNotExist) {
		return missing("%s not found in %s", TransformerFile, s.dir)
	}
	if err != nil {
		return incompatible("read %s: %v", TransformerFile, err)
	}
	var tf transformerFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return incompatible("decode %s: %v", TransformerFile, err)
	}
	if tf.Transformer == nil {
		return incompatible("%s has no transformer", TransformerFile)
	}
	if tf.ArtifactID != manifest.ID {
		return incompatible("transformer belongs to artifact %s, model is %s", tf.ArtifactID, manifest.ID)
	}
	if err := tf.Transformer.Compatible(); err != nil {
		return incompatible("%v", err)
	}

	model, err := learning.Decode(manifest.Algorithm, manifest.Params, features.NumColumns())
	if err != nil {
		return incompatible("%v", err)
	}

	split, res, ok := s.readTestSplit(ctx, manifest, tf.Transformer)
	if !ok {
		return res
	}

	return LoadResult{
		Status: StatusLoaded,
		Bundle: &Bundle{
			Manifest:    manifest,
			Model:       model,
			Transformer: tf.Transformer,
			TestSplit:   split,
		},
	}
}

func (s *FileStore) writeTestSplit(samples []datastore.Sample) (string, error) {
	w, err := csvwriter.NewWriter(filepath.Join(s.dir, TestSplitFile), s.logger)
	if err != nil {
		return "", err
	}
	tracked := datastore.TrackedColumns()
	if err := w.Write(append([]string{datastore.DateColumn}, tracked...)); err != nil {
		w.Abort()
		return "", err
	}
	for _, sample := range samples {
		row := make([]string, 0, len(tracked)+1)
		row = append(row, sample.Dteday)
		for _, name := range features.InputColumns() {
			row = append(row, strconv.FormatFloat(sample.Value(name), 'g', -1, 64))
		}
		row = append(row, strconv.FormatFloat(sample.Cnt, 'g', -1, 64))
		if err := w.Write(row); err != nil {
			w.Abort()
			return "", err
		}
	}
	return w.Commit()
}

func (s *FileStore) readTestSplit(ctx context.Context, manifest Manifest, tr *features.Transformer) ([]datastore.Sample, LoadResult, bool) {
	raw, err := os.ReadFile(filepath.Join(s.dir, TestSplitFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, missing("%s not found in %s", TestSplitFile, s.dir), false
	}
	if err != nil {
		return nil, incompatible("read %s: %v", TestSplitFile, err), false
	}
	sum := sha256.Sum256(raw)
	if manifest.TestSplitHash != "" && hex.EncodeToString(sum[:]) != manifest.TestSplitHash {
		return nil, incompatible("%s does not match artifact %s", TestSplitFile, manifest.ID), false
	}

	frame, err := datastore.ReadFrameCSV(ctx, bytes.NewReader(raw))
	if err != nil {
		return nil, incompatible("parse %s: %v", TestSplitFile, err), false
	}
	if missingCols := frame.Missing(datastore.TrackedColumns()); len(missingCols) > 0 {
		return nil, incompatible("%s lacks columns %v", TestSplitFile, missingCols), false
	}
	im := tr.Imputer
	if im == nil {
		im = features.FitImputer(frame)
	}
	samples, stats := frame.Samples(im)
	if stats.MissingTarget > 0 || stats.Invalid > 0 || len(samples) != manifest.TestRows {
		return nil, incompatible("%s has %d usable rows, want %d", TestSplitFile, len(samples), manifest.TestRows), false
	}
	return samples, LoadResult{}, true
}

// writeJSONAtomic encodes v into a temp file next to path and renames it into place.
func writeJSONAtomic(path string, v any) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", filepath.Base(path), err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}
