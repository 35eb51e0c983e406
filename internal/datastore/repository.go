package datastore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// rentalsTable is created by db/schema/001_hourly_rentals.up.sql.
const rentalsTable = "hourly_rentals"

// Pool is an interface that abstracts the pgxpool.Pool for testability.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Repository handles database operations for the hourly rentals dataset.
type Repository struct {
	db     Pool
	logger *zap.Logger
}

// NewRepository creates a new Repository.
func NewRepository(db Pool, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// FetchFrame はデータベースから全ての時間別レンタル行を取得して Frame を返します。
// NULL のセルは NaN として扱い、補完は学習パイプラインに任せます。
func (r *Repository) FetchFrame(ctx context.Context) (*Frame, error) {
	query := `
        SELECT
            COALESCE(to_char(dteday, 'YYYY-MM-DD'), ''),
            COALESCE(season::float8, 'NaN'), COALESCE(yr::float8, 'NaN'),
            COALESCE(mnth::float8, 'NaN'), COALESCE(hr::float8, 'NaN'),
            COALESCE(holiday::float8, 'NaN'), COALESCE(weekday::float8, 'NaN'),
            COALESCE(workingday::float8, 'NaN'), COALESCE(weathersit::float8, 'NaN'),
            COALESCE(temp, 'NaN'), COALESCE(hum, 'NaN'), COALESCE(windspeed, 'NaN'),
            COALESCE(cnt::float8, 'NaN')
        FROM hourly_rentals
        ORDER BY id ASC;
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", rentalsTable, err)
	}
	defer rows.Close()

	tracked := TrackedColumns()
	frame := NewFrame(append([]string{DateColumn}, tracked...))
	for rows.Next() {
		var day string
		vals := make([]float64, len(tracked))
		dest := make([]any, 0, len(tracked)+1)
		dest = append(dest, &day)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", rentalsTable, err)
		}

		var date time.Time
		if day != "" {
			if date, err = time.Parse(dateLayout, day); err != nil {
				return nil, fmt.Errorf("failed to parse dteday %q: %w", day, err)
			}
		}
		values := make(map[string]float64, len(tracked))
		for i, name := range tracked {
			values[name] = vals[i]
		}
		frame.Append(date, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", rentalsTable, err)
	}

	r.logger.Info("Fetched dataset from database", zap.String("table", rentalsTable), zap.Int("rows", frame.Len()))
	return frame, nil
}

// CopyFrame bulk-loads every row of frame into hourly_rentals.
func (r *Repository) CopyFrame(ctx context.Context, frame *Frame) (int64, error) {
	tracked := TrackedColumns()
	columns := append([]string{DateColumn}, tracked...)

	source := pgx.CopyFromSlice(frame.Len(), func(i int) ([]any, error) {
		row := make([]any, 0, len(columns))
		if d := frame.Date(i); d.IsZero() {
			row = append(row, nil)
		} else {
			row = append(row, d)
		}
		for _, name := range tracked {
			row = append(row, copyValue(name, frame.Column(name)[i]))
		}
		return row, nil
	})

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{rentalsTable}, columns, source)
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows into %s: %w", rentalsTable, err)
	}
	r.logger.Info("Copied dataset into database", zap.String("table", rentalsTable), zap.Int64("rows", n))
	return n, nil
}

// copyValue maps a frame cell to the column's Go type, nil for missing.
func copyValue(name string, v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	switch name {
	case "temp", "hum", "windspeed":
		return v
	case TargetColumn:
		return int32(math.Round(v))
	default:
		return int16(v)
	}
}

// LoadFrame implements Source by reading the whole table.
func (r *Repository) LoadFrame(ctx context.Context) (*Frame, error) {
	return r.FetchFrame(ctx)
}
