package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/bikeshare-demand/internal/artifact"
	"github.com/your-org/bikeshare-demand/internal/features"
	"github.com/your-org/bikeshare-demand/internal/learning"
)

func TestWriteReport(t *testing.T) {
	m := artifact.Manifest{
		ID:            "5f0c1c2e-0000-4000-8000-000000000001",
		Algorithm:     learning.AlgorithmBoosting,
		SchemaVersion: features.SchemaVersion,
		Columns:       features.Columns(),
		TrainedAt:     time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		TrainRows:     13903,
		TestRows:      3476,
		Metrics: []learning.Metrics{
			{Algorithm: learning.AlgorithmLinear, MAE: 105.123, RMSE: 141.5, R2: 0.5691},
			{Algorithm: learning.AlgorithmTree, MAE: 50.5, RMSE: 75.25, R2: 0.828},
			{Algorithm: learning.AlgorithmForest, MAE: 41, RMSE: 63.1, R2: 0.8784},
			{Algorithm: learning.AlgorithmBoosting, MAE: 37.456, RMSE: 58.004, R2: 0.89749},
		},
	}

	var sb strings.Builder
	require.NoError(t, writeReport(&sb, m))
	out := sb.String()

	assert.Contains(t, out, "artifact:  "+m.ID)
	assert.Contains(t, out, "trained:   2026-05-06 07:08:09 UTC")
	assert.Contains(t, out, "rows:      13903 train / 3476 test")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	table := lines[len(lines)-4:]
	assert.Contains(t, table[0], learning.AlgorithmBoosting)
	assert.Contains(t, table[0], "0.8975")
	assert.Contains(t, table[0], "58.00")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(table[0]), "*"))
	assert.Contains(t, table[1], learning.AlgorithmForest)
	assert.Contains(t, table[2], learning.AlgorithmTree)
	assert.Contains(t, table[3], learning.AlgorithmLinear)
	assert.Contains(t, table[3], "105.12")
	assert.NotContains(t, table[3], "*")
}
