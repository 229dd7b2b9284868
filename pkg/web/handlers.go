package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-robo/pkg/hub"
	"github.com/teslashibe/go-robo/pkg/turn"
)

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	turn.Snapshot
	UptimeSeconds int64             `json:"uptime_seconds"`
	EventClients  int               `json:"event_clients"`
	Backends      map[string]string `json:"backends,omitempty"`
}

// TurnsResponse is returned by /api/turns.
type TurnsResponse struct {
	Turns   []turn.Metrics `json:"turns"`
	Average turn.Metrics   `json:"average"`
}

func (s *Server) snapshot() turn.Snapshot {
	if s.sources.Snapshot == nil {
		return turn.Snapshot{}
	}
	return s.sources.Snapshot()
}

// handleHealth reports 503 once the loop is shutting down
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.snapshot().State == turn.ShuttingDown {
		return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
	}
	return c.SendString("ok")
}

// handleStatus returns the loop snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Snapshot:      s.snapshot(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		EventClients:  s.events.Subscribers(),
		Backends:      s.sources.Backends,
	})
}

// handleTurns returns recent turn metrics, newest last
func (s *Server) handleTurns(c *fiber.Ctx) error {
	resp := TurnsResponse{Turns: []turn.Metrics{}}
	if s.sources.Turns != nil {
		resp.Turns = s.sources.Turns()
	}
	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(resp.Turns) {
		resp.Turns = resp.Turns[len(resp.Turns)-limit:]
	}
	if s.sources.Average != nil {
		resp.Average = s.sources.Average()
	}
	return c.JSON(resp)
}

// handleConversation returns the recent conversation
func (s *Server) handleConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	defer s.conversationMu.RUnlock()
	return c.JSON(s.conversation)
}

// handleEventsWS streams protocol events to a dashboard client
func (s *Server) handleEventsWS(c *websocket.Conn) {
	sub := hub.Subscribe(s.events, c)
	if sub == nil {
		return
	}
	sub.Serve()
}
