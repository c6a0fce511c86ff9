package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/deskhand/deskhand/internal/logging"
	"github.com/deskhand/deskhand/internal/realtime"
	"github.com/deskhand/deskhand/internal/svc"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon only listens on localhost; the extension contexts carry
	// extension origins that vary per browser, so origin is not checked.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades a context connection and pumps broadcast frames
// to it. Content contexts pass their tab ID as ?tab= so message broadcasts
// can skip the reporting tab; the popup gets a random identity.
func WebSocketHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Errorf("websocket upgrade failed: %v", err)
			return
		}

		id := r.URL.Query().Get("tab")
		if id == "" {
			id = uuid.NewString()
		}

		client := realtime.NewClient(conn, svcCtx.Hub, id)
		go client.Run()
	}
}
