package handler

import (
	"errors"
	"net/http"

	"github.com/deskhand/deskhand/internal/httputil"
	"github.com/deskhand/deskhand/internal/suggest"
	"github.com/deskhand/deskhand/internal/svc"
	"github.com/deskhand/deskhand/internal/types"
)

// SuggestHandler runs the keyword/intent pipeline. It cannot fail: the worst
// case is the localized default reply.
func SuggestHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SuggestRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		lang := req.Language
		if lang == "" {
			lang = svcCtx.Coordinator.Status().Language
		}
		httputil.OkJSON(w, svcCtx.Engine.Suggest(r.Context(), req.Message, lang))
	}
}

// EscalateHandler runs the LLM escalation path. A failed generation call is
// the one error shown verbatim to the user; the popup renders it inline with
// a retry, it never blocks the rest of the UI.
func EscalateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SuggestRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		lang := req.Language
		if lang == "" {
			lang = svcCtx.Coordinator.Status().Language
		}

		suggestion, err := svcCtx.Engine.Escalate(r.Context(), req.Message, lang)
		if err != nil {
			if errors.Is(err, suggest.ErrNoGenerator) {
				httputil.ErrorWithCode(w, http.StatusPreconditionFailed, "no API key configured for reply generation")
				return
			}
			httputil.BadGateway(w, err.Error())
			return
		}
		httputil.OkJSON(w, suggestion)
	}
}
