// Package csvwriter writes CSV files that appear on disk only once complete.
package csvwriter

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Writer is a CSV writer backed by a temp file in the target directory.
// Commit renames the temp file onto the target path.
type Writer struct {
	path   string
	file   *os.File
	writer *csv.Writer
	digest hash.Hash
	logger *zap.Logger
	rows   int
	done   bool
	mu     sync.Mutex
}

// NewWriter creates a new CSV writer for filePath.
func NewWriter(filePath string, logger *zap.Logger) (*Writer, error) {
	file, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	digest := sha256.New()
	return &Writer{
		path:   filePath,
		file:   file,
		writer: csv.NewWriter(io.MultiWriter(file, digest)),
		digest: digest,
		logger: logger,
	}, nil
}

// Write writes a record to the CSV file.
func (w *Writer) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return errors.New("csv writer already closed")
	}
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to CSV: %w", err)
	}
	w.rows++
	return nil
}

// Commit flushes, syncs and renames the file into place. It returns the
// hex SHA-256 of the written bytes.
func (w *Writer) Commit() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return "", errors.New("csv writer already closed")
	}
	w.done = true

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.discard()
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.discard()
		return "", fmt.Errorf("failed to sync CSV: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.file.Name())
		return "", fmt.Errorf("failed to close CSV: %w", err)
	}
	if err := os.Rename(w.file.Name(), w.path); err != nil {
		_ = os.Remove(w.file.Name())
		return "", fmt.Errorf("failed to move CSV into place: %w", err)
	}

	sum := hex.EncodeToString(w.digest.Sum(nil))
	w.logger.Debug("Committed CSV file", zap.String("path", w.path), zap.Int("rows", w.rows), zap.String("sha256", sum))
	return sum, nil
}

// Abort removes the temp file. It is a no-op after Commit.
func (w *Writer) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.done = true
	w.discard()
}

func (w *Writer) discard() {
	_ = w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("Failed to remove temp CSV file", zap.String("path", w.file.Name()), zap.Error(err))
	}
}
