// Package web provides the robot's status dashboard: JSON status, recent
// turns, a live event websocket and Prometheus metrics.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-robo/pkg/hub"
	"github.com/teslashibe/go-robo/pkg/protocol"
	"github.com/teslashibe/go-robo/pkg/turn"
)

// Config configures the dashboard.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig listens on :8090.
func DefaultConfig() Config {
	return Config{Enabled: true, Addr: ":8090"}
}

// ConversationEntry is one line of the conversation log.
type ConversationEntry struct {
	Time    string `json:"time"`
	TurnID  string `json:"turn_id"`
	Role    string `json:"role"` // user, robot
	Message string `json:"message"`
}

// Sources feed the read-only endpoints. Nil fields are reported as empty.
type Sources struct {
	Snapshot func() turn.Snapshot
	Turns    func() []turn.Metrics
	Average  func() turn.Metrics
	Backends map[string]string
}

// Server is the dashboard server.
type Server struct {
	app     *fiber.App
	addr    string
	started time.Time
	logger  *slog.Logger

	sources Sources

	conversation   []ConversationEntry
	conversationMu sync.RWMutex

	events *hub.Hub
}

// NewServer creates the dashboard. reg is served on /metrics; a nil reg
// serves the default registry.
func NewServer(cfg Config, sources Sources, reg *prometheus.Registry, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:         cfg.Addr,
		started:      time.Now(),
		logger:       logger.With("component", "web.server"),
		sources:      sources,
		conversation: make([]ConversationEntry, 0, 100),
		events:       hub.New(logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Robo Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)

	var metrics = promhttp.Handler()
	if reg != nil {
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}
	app.Get("/metrics", adaptor.HTTPHandler(metrics))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/turns", s.handleTurns)
	api.Get("/conversation", s.handleConversation)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Events returns the hub that feeds /ws/events.
func (s *Server) Events() *hub.Hub { return s.events }

// Start runs the event hub and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.events.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web: listen %s: %w", s.addr, err)
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

// Name returns "dashboard".
func (s *Server) Name() string { return "dashboard" }

// Notify keeps transcripts and replies for /api/conversation.
func (s *Server) Notify(_ context.Context, msg *protocol.Message) error {
	var role, text string
	switch msg.Type {
	case protocol.TypeTranscript:
		var d protocol.TranscriptData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		role, text = "user", d.Text
	case protocol.TypeReply:
		var d protocol.ReplyData
		if err := msg.ParseData(&d); err != nil {
			return err
		}
		role, text = "robot", d.Text
	default:
		return nil
	}
	s.AddConversation(msg.TurnID, role, text)
	return nil
}

// Close is a no-op; Start owns the listener.
func (s *Server) Close() error { return nil }

// AddConversation appends to the conversation log (last 100 entries).
func (s *Server) AddConversation(turnID, role, message string) {
	entry := ConversationEntry{
		Time:    time.Now().Format("15:04:05"),
		TurnID:  turnID,
		Role:    role,
		Message: message,
	}

	s.conversationMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > 100 {
		s.conversation = s.conversation[1:]
	}
	s.conversationMu.Unlock()
}
