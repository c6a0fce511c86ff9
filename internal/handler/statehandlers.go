package handler

import (
	"net/http"

	"github.com/deskhand/deskhand/internal/httputil"
	"github.com/deskhand/deskhand/internal/svc"
	"github.com/deskhand/deskhand/internal/types"
)

// ToggleEnabledHandler flips the enabled flag. The ack is synchronous; the
// resulting state change reaches other contexts over the realtime hub.
func ToggleEnabledHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ToggleRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, svcCtx.Coordinator.ToggleEnabled(req.Enabled))
	}
}

// SetLanguageHandler updates the reply language preference.
func SetLanguageHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LanguageRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, svcCtx.Coordinator.SetLanguage(req.Language))
	}
}

// ReportMessageHandler accepts a newly detected customer message from a page
// context. Identical repeats are acknowledged without a broadcast.
func ReportMessageHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CustomerMessage
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, svcCtx.Coordinator.ReportMessage(req))
	}
}
