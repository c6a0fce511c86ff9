// Package realtime fans state-changed and message-updated events out to every
// connected popup and page context over WebSocket. Delivery is best effort:
// a context that cannot keep up is dropped, never blocked on.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/deskhand/deskhand/internal/events"
	"github.com/deskhand/deskhand/internal/logging"
	"github.com/deskhand/deskhand/internal/types"
)

// Hub tracks connected clients and broadcasts frames to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub and starts its run loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Attach subscribes the hub to the coordinator's bus topics. State changes go
// to everyone; message updates go to every context except the reporting tab,
// which already has the message.
func (h *Hub) Attach(bus *events.Bus) {
	events.Subscribe(bus, events.TopicStateChanged, func(_ context.Context, s types.ExtensionState) error {
		h.broadcast(types.Event{Type: types.EventStateChanged, State: &s}, "")
		return nil
	})
	events.Subscribe(bus, events.TopicMessageUpdated, func(_ context.Context, msg types.CustomerMessage) error {
		h.broadcast(types.Event{
			Type:     types.EventMessageUpdated,
			Message:  msg.Message,
			Platform: msg.Platform,
		}, msg.TabID)
		return nil
	})
}

// Close disconnects all clients and stops the run loop.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected contexts.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for _, c := range h.clients {
				c.close()
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			logging.Debugf("realtime: context %s connected", c.ID)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				c.close()
			}
			h.mu.Unlock()
			logging.Debugf("realtime: context %s disconnected", c.ID)
		}
	}
}

// broadcast sends frame to every client except the one identified by exclude.
// Clients with a full send buffer are skipped; they are behind anyway and the
// next state read catches them up.
func (h *Hub) broadcast(frame types.Event, exclude string) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logging.Errorf("realtime: marshal broadcast: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if id == exclude {
			continue
		}
		if err := c.send(payload); err != nil {
			logging.Debugf("realtime: drop frame for %s: %v", id, err)
		}
	}
}
