package datastore

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rentalColumns() []string {
	return append([]string{DateColumn}, TrackedColumns()...)
}

func TestRepository_FetchFrame(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock, zap.NewNop())

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(rentalColumns()).
			AddRow("2011-01-01", 1.0, 0.0, 1.0, 0.0, 0.0, 6.0, 0.0, 1.0, 0.24, 0.81, 0.0, 16.0).
			AddRow("", 1.0, 0.0, 1.0, 1.0, 0.0, 6.0, 0.0, 1.0, math.NaN(), 0.80, 0.0, 40.0)

		mock.ExpectQuery("SELECT (.+) FROM hourly_rentals").WillReturnRows(rows)

		frame, err := repo.FetchFrame(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, frame.Len())

		assert.Equal(t, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), frame.Date(0))
		assert.True(t, frame.Date(1).IsZero())
		assert.Equal(t, []float64{16, 40}, frame.Column(TargetColumn))
		assert.True(t, math.IsNaN(frame.Column("temp")[1]))
		assert.Empty(t, frame.Missing(TrackedColumns()))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		mock.ExpectQuery(".*").WillReturnError(assert.AnError)

		_, err := repo.FetchFrame(ctx)
		assert.ErrorIs(t, err, assert.AnError)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_CopyFrame(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock, zap.NewNop())

	frame := NewFrame(rentalColumns())
	frame.Append(time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), map[string]float64{
		"season": 1, "yr": 0, "mnth": 1, "hr": 0, "holiday": 0, "weekday": 6,
		"workingday": 0, "weathersit": 1, "temp": 0.24, "hum": 0.81, "windspeed": 0, "cnt": 16,
	})

	mock.ExpectCopyFrom(pgx.Identifier{"hourly_rentals"}, rentalColumns()).WillReturnResult(1)

	n, err := repo.CopyFrame(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet(), "there were unfulfilled expectations")
}

func TestCopyValue(t *testing.T) {
	assert.Nil(t, copyValue("temp", math.NaN()))
	assert.Equal(t, 0.5, copyValue("hum", 0.5))
	assert.Equal(t, int16(3), copyValue("season", 3))
	assert.Equal(t, int32(42), copyValue(TargetColumn, 42))
}
