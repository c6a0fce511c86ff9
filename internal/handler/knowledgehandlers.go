package handler

import (
	"net/http"

	"github.com/deskhand/deskhand/internal/httputil"
	"github.com/deskhand/deskhand/internal/knowledge"
	"github.com/deskhand/deskhand/internal/svc"
)

// GetKnowledgeHandler resolves a knowledge base for a context. The resolver
// never fails, so neither does this handler; only an unknown kind is a 404.
func GetKnowledgeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := knowledge.Kind(httputil.PathVar(r, "kind"))
		if kind != knowledge.KindFAQ && kind != knowledge.KindTraining {
			httputil.NotFound(w, "unknown knowledge kind")
			return
		}
		httputil.OkJSON(w, svcCtx.Coordinator.Knowledge(r.Context(), kind))
	}
}

// GetSelectorsHandler serves the per-platform DOM selector table to content
// contexts.
func GetSelectorsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, svcCtx.Selectors.All())
	}
}
