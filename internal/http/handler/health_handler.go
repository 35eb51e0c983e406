package handler

import (
	"net/http"

	"github.com/your-org/bikeshare-demand/internal/inference"
)

// HealthChecker reports the artifact the process is serving.
type HealthChecker interface {
	Summary() inference.Summary
}

// HealthCheckHandler returns 200 with the resident artifact id.
// It can be used for health checks by Docker or other services. The
// service only exists after Startup has finished, so reaching this handler
// means a model is loaded.
func HealthCheckHandler(svc HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := svc.Summary()
		writeJSON(w, http.StatusOK, map[string]string{
			"status":      "ok",
			"artifact_id": s.ArtifactID,
			"algorithm":   s.Algorithm,
		})
	}
}
