package handler

import (
	"net/http"
	"time"

	"github.com/deskhand/deskhand/internal/defaults"
	"github.com/deskhand/deskhand/internal/httputil"
	"github.com/deskhand/deskhand/internal/svc"
)

// HealthResponse is the daemon liveness payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Contexts  int    `json:"contexts"`
}

func HealthCheckHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, &HealthResponse{
			Status:    "healthy",
			Version:   defaults.Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Contexts:  svcCtx.Hub.ClientCount(),
		})
	}
}

// GetStatusHandler returns the coordinator's in-memory snapshot.
func GetStatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, svcCtx.Coordinator.Status())
	}
}
