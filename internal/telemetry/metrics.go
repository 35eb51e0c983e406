// Package telemetry holds the Prometheus collectors of the service.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bikeshare_predictions_total",
		Help: "Total number of prediction requests by outcome.",
	}, []string{"outcome"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bikeshare_http_request_duration_seconds",
		Help:    "Duration of API requests.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"route", "method", "status"})
	trainingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bikeshare_training_duration_seconds",
		Help:    "Duration of fitting one candidate model.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	}, []string{"algorithm"})
	candidateR2 = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bikeshare_candidate_r2",
		Help: "Held-out R² of each candidate from the last training run.",
	}, []string{"algorithm"})
	retrainsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bikeshare_startup_retrains_total",
		Help: "Total number of retrains triggered at startup, by load status.",
	}, []string{"status"})
	modelInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bikeshare_model_info",
		Help: "Resident model, always 1.",
	}, []string{"artifact_id", "algorithm", "schema_version"})
)

// Prediction outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// ObservePrediction counts one prediction request.
func ObservePrediction(outcome string) {
	predictionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the duration of one API request.
func ObserveRequest(route, method, status string, d time.Duration) {
	httpDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
}

// ObserveTraining records how long one candidate took to fit.
func ObserveTraining(algorithm string, d time.Duration) {
	trainingDuration.WithLabelValues(algorithm).Observe(d.Seconds())
}

// SetCandidateR2 exports the held-out R² of a candidate.
func SetCandidateR2(algorithm string, r2 float64) {
	candidateR2.WithLabelValues(algorithm).Set(r2)
}

// CountRetrain counts a startup retrain caused by the given load status.
func CountRetrain(status string) {
	retrainsTotal.WithLabelValues(status).Inc()
}

// SetModel marks the resident model.
func SetModel(artifactID, algorithm, schemaVersion string) {
	modelInfo.Reset()
	modelInfo.WithLabelValues(artifactID, algorithm, schemaVersion).Set(1)
}
