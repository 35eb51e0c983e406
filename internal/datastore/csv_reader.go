package datastore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/bikeshare-demand/pkg/logger"
)

// ReadFrameCSV reads an hourly rental CSV into a Frame.
// The file is expected to have a header row; columns are matched by name so
// extra columns (instant, atemp, casual, registered, ...) are ignored.
// Empty cells and NA markers become NaN, unparsable rows are skipped.
func ReadFrameCSV(ctx context.Context, r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewFrame(nil), nil // Empty file is not an error
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	frame := NewFrame(header)
	tracked := TrackedColumns()

	line := 1
	skipped := 0
	for {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record at line %d: %w", line, err)
		}
		if len(record) != len(header) {
			logger.Warnf("Skipping line %d due to invalid number of columns: expected %d, got %d", line, len(header), len(record))
			skipped++
			continue
		}

		values := make(map[string]float64, len(tracked))
		ok := true
		for _, name := range tracked {
			i, present := index[name]
			if !present {
				continue
			}
			v, err := parseCell(record[i])
			if err != nil {
				logger.Warnf("Skipping line %d due to %s parse error: %v", line, name, err)
				ok = false
				break
			}
			values[name] = v
		}
		if !ok {
			skipped++
			continue
		}

		var date time.Time
		if i, present := index[DateColumn]; present && strings.TrimSpace(record[i]) != "" {
			date, err = time.Parse(dateLayout, strings.TrimSpace(record[i]))
			if err != nil {
				logger.Warnf("Skipping line %d due to date parse error: %v", line, err)
				skipped++
				continue
			}
		}
		frame.Append(date, values)
	}

	if skipped > 0 {
		logger.Warnf("Skipped %d malformed rows while reading dataset", skipped)
	}
	return frame, nil
}

// LoadFrameCSV opens filePath and reads it with ReadFrameCSV.
func LoadFrameCSV(ctx context.Context, filePath string) (*Frame, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	frame, err := ReadFrameCSV(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	logger.Infof("Loaded %d rows from %s", frame.Len(), filePath)
	return frame, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", s)
	}
	return v, nil
}
