package handler

import (
	"errors"
	"net/http"

	"github.com/deskhand/deskhand/internal/coordinator"
	"github.com/deskhand/deskhand/internal/httputil"
	"github.com/deskhand/deskhand/internal/platform"
	"github.com/deskhand/deskhand/internal/svc"
)

// ObserveTabRequest announces a tab to the coordinator.
type ObserveTabRequest struct {
	TabID string `json:"tabId"`
	URL   string `json:"url"`
}

// ObserveTabResponse carries the classification back. Monitored is true only
// when a daemon-side extractor exists for the platform; otherwise the tab's
// own context does the polling and reports via /message.
type ObserveTabResponse struct {
	Platform  platform.ID `json:"platform"`
	Monitored bool        `json:"monitored"`
}

// ObserveTabHandler classifies a tab URL and, when possible, attaches a
// daemon-side monitor to it.
func ObserveTabHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ObserveTabRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.TabID == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "tabId is required")
			return
		}

		id, err := svcCtx.Coordinator.ObserveTab(req.TabID, req.URL)
		if err != nil {
			if errors.Is(err, coordinator.ErrUnsupportedPlatform) {
				// Still record the classification when the URL matched a
				// platform but no extractor serves it.
				svcCtx.Coordinator.ObservePlatform(id)
				httputil.OkJSON(w, ObserveTabResponse{Platform: id, Monitored: false})
				return
			}
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, ObserveTabResponse{Platform: id, Monitored: true})
	}
}

// ReleaseTabHandler detaches a tab's monitor when its page goes away.
func ReleaseTabHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID := httputil.PathVar(r, "tabID")
		if tabID == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "tabID is required")
			return
		}
		svcCtx.Coordinator.ReleaseTab(tabID)
		w.WriteHeader(http.StatusNoContent)
	}
}
