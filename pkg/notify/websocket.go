package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-robo/pkg/protocol"
)

// WebSocketConfig configures a push connection to a remote client.
type WebSocketConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// WebSocket pushes events as text frames to a remote endpoint. The
// connection is dialed lazily and re-dialed after a write failure.
type WebSocket struct {
	cfg    WebSocketConfig
	dialer websocket.Dialer
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebSocket creates a sink for cfg.URL. No connection is made yet.
func NewWebSocket(cfg WebSocketConfig, logger *slog.Logger) (*WebSocket, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("notify: websocket url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{
		cfg:    cfg,
		dialer: websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		logger: logger.With("component", "notify.websocket", "url", cfg.URL),
	}, nil
}

func (w *WebSocket) Name() string { return "websocket" }

// Notify writes msg, dialing first if needed.
func (w *WebSocket) Notify(ctx context.Context, msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if w.conn == nil {
		headers := http.Header{}
		for k, v := range w.cfg.Headers {
			headers.Set(k, v)
		}
		conn, resp, err := w.dialer.DialContext(ctx, w.cfg.URL, headers)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return fmt.Errorf("notify: dial: %w", err)
		}
		w.conn = conn
		w.logger.Info("connected")
	}

	deadline := time.Now().Add(w.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = w.conn.SetWriteDeadline(deadline)
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		w.conn.Close()
		w.conn = nil
		return fmt.Errorf("notify: write: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}

var _ Sink = (*WebSocket)(nil)
