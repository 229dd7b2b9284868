package notify

import (
	"context"

	"github.com/teslashibe/go-robo/pkg/hub"
	"github.com/teslashibe/go-robo/pkg/protocol"
)

// Hub forwards events to the dashboard websocket hub.
type Hub struct {
	hub *hub.Hub
}

// NewHub wraps h.
func NewHub(h *hub.Hub) *Hub {
	return &Hub{hub: h}
}

func (h *Hub) Name() string { return "hub" }

// Notify queues msg for every dashboard client. It never blocks.
func (h *Hub) Notify(_ context.Context, msg *protocol.Message) error {
	return h.hub.Publish(msg)
}

// Close is a no-op; the hub is owned by the web server.
func (h *Hub) Close() error { return nil }

var _ Sink = (*Hub)(nil)
