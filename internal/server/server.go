// Package server exposes the coordinator to popup and page contexts over a
// local HTTP and WebSocket surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/deskhand/deskhand/internal/handler"
	"github.com/deskhand/deskhand/internal/logging"
	"github.com/deskhand/deskhand/internal/svc"
)

// Options configures Run.
type Options struct {
	// Quiet suppresses request logging for clean CLI output.
	Quiet bool
}

// Run starts the daemon's HTTP surface on localhost and blocks until ctx is
// cancelled. The coordinator must already be started.
func Run(ctx context.Context, svcCtx *svc.ServiceContext, opts Options) error {
	port := svcCtx.Settings.Port
	if err := checkPortAvailable(port); err != nil {
		return fmt.Errorf("port %d is already in use - only one deskhand instance allowed", port)
	}

	r := chi.NewRouter()
	if !opts.Quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handler.GetStatusHandler(svcCtx))
		r.Post("/toggle", handler.ToggleEnabledHandler(svcCtx))
		r.Post("/language", handler.SetLanguageHandler(svcCtx))
		r.Post("/message", handler.ReportMessageHandler(svcCtx))
		r.Post("/suggest", handler.SuggestHandler(svcCtx))
		r.Post("/suggest/llm", handler.EscalateHandler(svcCtx))
		r.Get("/knowledge/{kind}", handler.GetKnowledgeHandler(svcCtx))
		r.Get("/platform/selectors", handler.GetSelectorsHandler(svcCtx))
		r.Post("/tabs", handler.ObserveTabHandler(svcCtx))
		r.Delete("/tabs/{tabID}", handler.ReleaseTabHandler(svcCtx))
		r.Get("/ws", handler.WebSocketHandler(svcCtx))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("deskhand listening on http://localhost:%d", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return err
	}
	return ln.Close()
}
