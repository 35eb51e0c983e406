package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/bikeshare-demand/internal/config"
)

func TestOpenSource(t *testing.T) {
	cfg := config.Default()
	cfg.Dataset.Path = "data/hour.csv"

	src, closeFn, err := OpenSource(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	closeFn()
	assert.Equal(t, CSVSource{Path: "data/hour.csv"}, src)

	cfg.Dataset.Source = "s3"
	_, _, err = OpenSource(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, `unknown dataset source "s3"`)
}
