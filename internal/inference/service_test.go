package inference

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/bikeshare-demand/internal/artifact"
	"github.com/your-org/bikeshare-demand/internal/config"
	"github.com/your-org/bikeshare-demand/internal/datastore"
	"github.com/your-org/bikeshare-demand/internal/features"
	"github.com/your-org/bikeshare-demand/internal/learning"
)

// MockStore is a mock for the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context) artifact.LoadResult {
	args := m.Called(ctx)
	return args.Get(0).(artifact.LoadResult)
}

func (m *MockStore) Save(ctx context.Context, b *artifact.Bundle) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

// MockTrainer is a mock for the Trainer interface.
type MockTrainer struct {
	mock.Mock
}

func (m *MockTrainer) Train(ctx context.Context, frame *datastore.Frame) (*learning.Result, error) {
	args := m.Called(ctx, frame)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*learning.Result), args.Error(1)
}

// MockSource is a mock for datastore.Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) LoadFrame(ctx context.Context) (*datastore.Frame, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datastore.Frame), args.Error(1)
}

func fixtureSamples(n int) []datastore.Sample {
	out := make([]datastore.Sample, n)
	start := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		day := start.AddDate(0, 0, i/24)
		out[i] = datastore.Sample{
			Record: features.Record{
				Season: 1, Yr: 1, Mnth: int(day.Month()), Hr: i % 24, Holiday: 0,
				Weekday: int(day.Weekday()), Workingday: 1, Weathersit: i%4 + 1,
				Temp: float64(i%10) / 10, Hum: 0.6, Windspeed: 0.2,
			},
			Dteday: day.Format(time.DateOnly),
			Cnt:    float64(i % 300),
		}
	}
	return out
}

func fixtureResult(train, test int, intercept float64) *learning.Result {
	samples := fixtureSamples(train + test)
	records := make([]features.Record, len(samples))
	for i, s := range samples {
		records[i] = s.Record
	}
	tr := features.Fit(records)
	model := &learning.LinearRegression{Intercept: intercept, Coef: make([]float64, features.NumColumns())}
	return &learning.Result{
		Model: model,
		Metrics: []learning.Metrics{
			{Algorithm: learning.AlgorithmTree, MAE: 50, RMSE: 80, R2: 0.828},
			{Algorithm: learning.AlgorithmLinear, MAE: 100, RMSE: 140, R2: 0.569},
			{Algorithm: learning.AlgorithmBoosting, MAE: 40, RMSE: 60, R2: 0.897},
			{Algorithm: learning.AlgorithmForest, MAE: 45, RMSE: 70, R2: 0.878},
		},
		Best:        learning.Metrics{Algorithm: learning.AlgorithmLinear, MAE: 100, RMSE: 140, R2: 0.569},
		Transformer: tr,
		Train:       samples[:train],
		Test:        samples[train:],
		TrainedAt:   time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
}

func fixtureService(t *testing.T, test int, intercept float64) *Service {
	t.Helper()
	b, err := artifact.NewBundle(fixtureResult(10, test, intercept))
	require.NoError(t, err)
	s, err := newService(b, artifact.StatusLoaded, func(n int) int { return n - 1 }, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestStartup_LoadsExistingArtifact(t *testing.T) {
	b, err := artifact.NewBundle(fixtureResult(10, 5, 42))
	require.NoError(t, err)

	store := new(MockStore)
	store.On("Load", mock.Anything).Return(artifact.LoadResult{Status: artifact.StatusLoaded, Bundle: b})
	trainer := new(MockTrainer)
	source := new(MockSource)

	svc, err := Startup(context.Background(), Deps{Store: store, Trainer: trainer, Source: source, Logger: zap.NewNop()})
	require.NoError(t, err)

	assert.Equal(t, artifact.StatusLoaded, svc.Origin())
	assert.Equal(t, b.Manifest.ID, svc.Manifest().ID)
	assert.False(t, svc.Summary().Retrained)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	trainer.AssertNotCalled(t, "Train", mock.Anything, mock.Anything)
	source.AssertNotCalled(t, "LoadFrame", mock.Anything)
}

func TestStartup_RetrainsWhenUnavailable(t *testing.T) {
	for _, status := range []artifact.Status{artifact.StatusMissing, artifact.StatusIncompatible} {
		t.Run(status.String(), func(t *testing.T) {
			frame := datastore.NewFrame(datastore.TrackedColumns())
			store := new(MockStore)
			store.On("Load", mock.Anything).Return(artifact.LoadResult{Status: status, Reason: artifact.ErrMissing})
			store.On("Save", mock.Anything, mock.AnythingOfType("*artifact.Bundle")).Return(nil)
			source := new(MockSource)
			source.On("LoadFrame", mock.Anything).Return(frame, nil)
			trainer := new(MockTrainer)
			trainer.On("Train", mock.Anything, frame).Return(fixtureResult(10, 5, 42), nil)

			svc, err := Startup(context.Background(), Deps{Store: store, Trainer: trainer, Source: source})
			require.NoError(t, err)

			assert.Equal(t, status, svc.Origin())
			assert.True(t, svc.Summary().Retrained)
			assert.Equal(t, learning.AlgorithmLinear, svc.Manifest().Algorithm)
			store.AssertExpectations(t)
			source.AssertExpectations(t)
			trainer.AssertExpectations(t)
		})
	}
}

func TestStartup_Failures(t *testing.T) {
	boom := errors.New("boom")
	frame := datastore.NewFrame(datastore.TrackedColumns())

	testCases := []struct {
		name  string
		setup func(store *MockStore, source *MockSource, trainer *MockTrainer)
		want  string
	}{
		{
			name: "dataset unavailable",
			setup: func(store *MockStore, source *MockSource, trainer *MockTrainer) {
				source.On("LoadFrame", mock.Anything).Return(nil, boom)
			},
			want: "failed to load training dataset",
		},
		{
			name: "training fails",
			setup: func(store *MockStore, source *MockSource, trainer *MockTrainer) {
				source.On("LoadFrame", mock.Anything).Return(frame, nil)
				trainer.On("Train", mock.Anything, frame).Return(nil, boom)
			},
			want: "failed to train model",
		},
		{
			name: "save fails",
			setup: func(store *MockStore, source *MockSource, trainer *MockTrainer) {
				source.On("LoadFrame", mock.Anything).Return(frame, nil)
				trainer.On("Train", mock.Anything, frame).Return(fixtureResult(10, 5, 42), nil)
				store.On("Save", mock.Anything, mock.Anything).Return(boom)
			},
			want: "failed to save artifact",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(MockStore)
			store.On("Load", mock.Anything).Return(artifact.LoadResult{Status: artifact.StatusMissing, Reason: artifact.ErrMissing})
			source := new(MockSource)
			trainer := new(MockTrainer)
			tc.setup(store, source, trainer)

			svc, err := Startup(context.Background(), Deps{Store: store, Trainer: trainer, Source: source})
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestStartup_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewFileStore(filepath.Join(t.TempDir(), "artifacts"), zap.NewNop())
	pipeline, err := learning.NewPipeline(config.TrainingConf{
		SplitMode:    learning.SplitRandom,
		TestFraction: 0.25,
		Seed:         7,
		Algorithms:   []string{learning.AlgorithmLinear, learning.AlgorithmTree},
		Linear:       config.LinearConf{Ridge: 1e-6},
		Tree:         config.TreeConf{MaxDepth: 6, MinSamplesLeaf: 2},
	}, zap.NewNop())
	require.NoError(t, err)

	source := new(MockSource)
	source.On("LoadFrame", mock.Anything).Return(datastore.FrameFromSamples(fixtureSamples(240)), nil).Once()
	deps := Deps{Store: store, Trainer: pipeline, Source: source, Logger: zap.NewNop()}

	first, err := Startup(ctx, deps)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusMissing, first.Origin())
	assert.Equal(t, 60, first.Summary().TestCount)
	assert.Equal(t, 240, first.Summary().TotalCount)

	second, err := Startup(ctx, deps)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusLoaded, second.Origin())
	assert.Equal(t, first.Manifest().ID, second.Manifest().ID)
	assert.Equal(t, first.ActualVsPredicted(0), second.ActualVsPredicted(0))
	source.AssertNumberOfCalls(t, "LoadFrame", 1)

	row := second.TestData(0, 1).Data[0]
	actual := 150.0
	got, err := second.Predict(row.Record, &actual)
	require.NoError(t, err)
	require.NotNil(t, got.ErrorAbs)
	require.NotNil(t, got.ErrorPct)
	assert.Equal(t, math.Abs(got.Prediction-150), *got.ErrorAbs)
	assert.Equal(t, *got.ErrorAbs/150*100, *got.ErrorPct)
}

func TestStartup_RetrainsWhenModelDoesNotFitVector(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "artifacts")
	store := artifact.NewFileStore(dir, zap.NewNop())
	pipeline, err := learning.NewPipeline(config.TrainingConf{
		SplitMode:    learning.SplitRandom,
		TestFraction: 0.25,
		Seed:         7,
		Algorithms:   []string{learning.AlgorithmLinear},
		Linear:       config.LinearConf{Ridge: 1e-6},
	}, zap.NewNop())
	require.NoError(t, err)

	source := new(MockSource)
	source.On("LoadFrame", mock.Anything).Return(datastore.FrameFromSamples(fixtureSamples(240)), nil)
	deps := Deps{Store: store, Trainer: pipeline, Source: source, Logger: zap.NewNop()}

	first, err := Startup(ctx, deps)
	require.NoError(t, err)

	// widen the persisted coefficients past the feature vector
	path := filepath.Join(dir, artifact.ModelFile)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	m["params"] = map[string]any{"ridge": 0.0, "intercept": 1.0, "coef": make([]float64, features.NumColumns()+7)}
	raw, err = json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	var second *Service
	require.NotPanics(t, func() { second, err = Startup(ctx, deps) })
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusIncompatible, second.Origin())
	assert.NotEqual(t, first.Manifest().ID, second.Manifest().ID)
	source.AssertNumberOfCalls(t, "LoadFrame", 2)
}

func TestService_Predict(t *testing.T) {
	s := fixtureService(t, 5, 123.44)
	r := fixtureSamples(1)[0].Record

	got, err := s.Predict(r, nil)
	require.NoError(t, err)
	assert.Equal(t, 123.4, got.Prediction)
	assert.Nil(t, got.Actual)
	assert.Nil(t, got.ErrorAbs)
	assert.Nil(t, got.ErrorPct)

	actual := 100.0
	got, err = s.Predict(r, &actual)
	require.NoError(t, err)
	require.NotNil(t, got.Actual)
	assert.Equal(t, 100.0, *got.Actual)
	assert.InDelta(t, 23.4, *got.ErrorAbs, 1e-9)
	assert.InDelta(t, 23.4, *got.ErrorPct, 1e-9)

	// error_pct is relative to at least one rental.
	zero := 0.0
	got, err = s.Predict(r, &zero)
	require.NoError(t, err)
	assert.InDelta(t, 123.4, *got.ErrorAbs, 1e-9)
	assert.InDelta(t, 12340, *got.ErrorPct, 1e-6)
}

func TestService_PredictClipsNegative(t *testing.T) {
	s := fixtureService(t, 5, -37.2)

	got, err := s.Predict(fixtureSamples(1)[0].Record, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Prediction)
}

func TestService_PredictValidation(t *testing.T) {
	s := fixtureService(t, 5, 10)
	base := fixtureSamples(1)[0].Record

	testCases := []struct {
		name   string
		mutate func(r *features.Record)
		actual *float64
		field  string
	}{
		{name: "hour out of range", mutate: func(r *features.Record) { r.Hr = 24 }, field: "hr"},
		{name: "season zero", mutate: func(r *features.Record) { r.Season = 0 }, field: "season"},
		{name: "humidity above one", mutate: func(r *features.Record) { r.Hum = 1.5 }, field: "hum"},
		{name: "temperature NaN", mutate: func(r *features.Record) { r.Temp = math.NaN() }, field: "temp"},
		{name: "actual infinite", mutate: func(r *features.Record) {}, actual: ptr(math.Inf(1)), field: "actual"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			tc.mutate(&r)

			_, err := s.Predict(r, tc.actual)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			var se *features.SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.field, se.Field)
		})
	}
}

func TestService_TestData(t *testing.T) {
	s := fixtureService(t, 3000, 10)

	testCases := []struct {
		name       string
		offset     int
		limit      int
		wantLen    int
		wantLimit  int
		wantOffset int
	}{
		{name: "first page", offset: 0, limit: 200, wantLen: 200, wantLimit: 200},
		{name: "last partial page", offset: 2900, limit: 200, wantLen: 100, wantLimit: 200, wantOffset: 2900},
		{name: "default limit", offset: 0, limit: 0, wantLen: DefaultPageLimit, wantLimit: DefaultPageLimit},
		{name: "limit capped", offset: 10, limit: 10000, wantLen: MaxPageLimit, wantLimit: MaxPageLimit, wantOffset: 10},
		{name: "past the end", offset: 5000, limit: 50, wantLen: 0, wantLimit: 50, wantOffset: 5000},
		{name: "negative offset", offset: -3, limit: 5, wantLen: 5, wantLimit: 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := s.TestData(tc.offset, tc.limit)
			assert.Len(t, page.Data, tc.wantLen)
			assert.Equal(t, 3000, page.Total)
			assert.Equal(t, tc.wantLimit, page.Limit)
			assert.Equal(t, tc.wantOffset, page.Offset)
			if tc.wantLen > 0 {
				assert.Equal(t, s.bundle.TestSplit[max(tc.offset, 0)], page.Data[0])
			}
		})
	}
}

func TestService_TestSample(t *testing.T) {
	s := fixtureService(t, 25, 10)

	got, err := s.TestSample()
	require.NoError(t, err)
	assert.Equal(t, 24, got.Index)
	assert.Equal(t, s.bundle.TestSplit[24], got.Sample)

	empty := fixtureService(t, 0, 10)
	_, err = empty.TestSample()
	assert.ErrorIs(t, err, ErrNoTestData)
}

func TestService_ActualVsPredicted(t *testing.T) {
	s := fixtureService(t, 300, 55.55)

	got := s.ActualVsPredicted(0)
	assert.Equal(t, 300, got.Total)
	require.Len(t, got.Actual, DefaultChartLimit)
	require.Len(t, got.Predicted, DefaultChartLimit)
	for i := range got.Actual {
		assert.Equal(t, s.bundle.TestSplit[i].Cnt, got.Actual[i])
		assert.Equal(t, 55.6, got.Predicted[i])
	}

	assert.Len(t, s.ActualVsPredicted(1000).Actual, 300)
}

func TestService_Leaderboard(t *testing.T) {
	s := fixtureService(t, 5, 10)

	board := s.Leaderboard()
	require.Len(t, board, 4)
	var order []string
	for _, e := range board {
		order = append(order, e.Algorithm)
	}
	assert.Equal(t, []string{
		learning.AlgorithmBoosting, learning.AlgorithmForest, learning.AlgorithmTree, learning.AlgorithmLinear,
	}, order)
	assert.True(t, board[3].Best)
	assert.False(t, board[0].Best)
}

func TestService_Summary(t *testing.T) {
	s := fixtureService(t, 5, 10)

	got := s.Summary()
	assert.Equal(t, learning.AlgorithmLinear, got.Algorithm)
	assert.Equal(t, features.SchemaVersion, got.SchemaVersion)
	assert.Equal(t, 10, got.TrainCount)
	assert.Equal(t, 5, got.TestCount)
	assert.Equal(t, 15, got.TotalCount)
	assert.Equal(t, features.NumColumns(), got.FeatureCount)
	assert.Equal(t, 0.569, got.BestR2)
	assert.Equal(t, 140.0, got.BestRMSE)
	assert.False(t, got.StartedAt.IsZero())
}

func ptr(v float64) *float64 { return &v }
