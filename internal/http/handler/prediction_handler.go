package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/bikeshare-demand/internal/features"
	"github.com/your-org/bikeshare-demand/internal/inference"
	"github.com/your-org/bikeshare-demand/internal/telemetry"
)

// Predictor is the read-only view of the inference service the routes need.
type Predictor interface {
	Predict(r features.Record, actual *float64) (inference.Prediction, error)
	TestData(offset, limit int) inference.Page
	TestSample() (inference.IndexedSample, error)
	ActualVsPredicted(limit int) inference.Comparison
	Leaderboard() []inference.LeaderboardEntry
	Summary() inference.Summary
}

// PredictionHandler は予測APIのHTTPリクエストを処理します。
type PredictionHandler struct {
	svc    Predictor
	logger *zap.Logger
}

// NewPredictionHandler は新しいPredictionHandlerを作成します。
func NewPredictionHandler(svc Predictor, logger *zap.Logger) *PredictionHandler {
	return &PredictionHandler{svc: svc, logger: logger}
}

// RegisterRoutes はchiルーターに予測関連のルートを登録します。
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predict", h.Predict)
	r.Get("/test-data", h.GetTestData)
	r.Get("/test-sample", h.GetTestSample)
	r.Get("/actual-vs-predicted", h.GetActualVsPredicted)
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/summary", h.GetSummary)
}

// Predict scores one record and optionally compares it with an observed count.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := decodePredictRequest(r.Body)
	if err != nil {
		h.predictFailed(w, r, err)
		return
	}

	pred, err := h.svc.Predict(req.Record, req.Actual)
	if err != nil {
		h.predictFailed(w, r, err)
		return
	}
	telemetry.ObservePrediction(telemetry.OutcomeOK)
	writeJSON(w, http.StatusOK, pred)
}

func (h *PredictionHandler) predictFailed(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr *requestError
		se     *features.SchemaError
		ve     *inference.ValidationError
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &ve), errors.As(err, &se):
		telemetry.ObservePrediction(telemetry.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		telemetry.ObservePrediction(telemetry.OutcomeError)
		h.logger.Error("Prediction failed", zap.Error(err), zap.String("path", r.URL.Path))
		writeError(w, http.StatusInternalServerError, "Prediction failed")
	}
}

// GetTestData returns a page of the held-out split.
func (h *PredictionHandler) GetTestData(w http.ResponseWriter, r *http.Request) {
	offset, ok := intParam(w, r, "offset", 0)
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit", inference.DefaultPageLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.TestData(offset, limit))
}

// GetTestSample returns one random held-out row.
func (h *PredictionHandler) GetTestSample(w http.ResponseWriter, r *http.Request) {
	sample, err := h.svc.TestSample()
	if errors.Is(err, inference.ErrNoTestData) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Failed to pick test sample", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to pick test sample")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// GetActualVsPredicted returns chart data for the held-out split.
func (h *PredictionHandler) GetActualVsPredicted(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", inference.DefaultChartLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ActualVsPredicted(limit))
}

// GetLeaderboard returns every candidate's held-out metrics.
func (h *PredictionHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Leaderboard())
}

// GetSummary describes the resident model.
func (h *PredictionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Summary())
}

// intParam reads a non-negative integer query parameter. Zero keeps its
// meaning for the query (limit=0 is the default page size).
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, "Invalid query parameter: "+name)
		return 0, false
	}
	return v, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
