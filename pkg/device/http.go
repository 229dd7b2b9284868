package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-robo/internal/httpc"
)

// HTTPConfig configures a robot daemon that exposes the eyes over HTTP.
type HTTPConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTP drives the eyes through the robot daemon's REST API.
type HTTP struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTP creates an HTTP device. Host-only addresses get port 8000.
func NewHTTP(cfg HTTPConfig, logger *slog.Logger) (*HTTP, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("device: http base url required")
	}
	if !strings.Contains(base, "://") {
		base = fmt.Sprintf("http://%s:8000", base)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		baseURL: base,
		timeout: cfg.Timeout,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  logger.With("component", "device.http"),
	}, nil
}

// Name returns "http".
func (h *HTTP) Name() string { return "http" }

// BaseURL returns the daemon address.
func (h *HTTP) BaseURL() string { return h.baseURL }

// Blink posts to /api/eyes/blink.
func (h *HTTP) Blink(ctx context.Context, target Target) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return h.post(ctx, "/api/eyes/blink", map[string]any{"target": target})
}

// Animate posts to /api/eyes/animate.
func (h *HTTP) Animate(ctx context.Context, target Target, kind Kind, intensity float64, duration time.Duration) error {
	if _, err := AnimateCommand(target, kind, intensity, duration); err != nil {
		return err
	}
	return h.post(ctx, "/api/eyes/animate", map[string]any{
		"target":      target,
		"kind":        kind,
		"intensity":   clamp(intensity),
		"duration_ms": duration.Milliseconds(),
	})
}

// Status returns the daemon state string.
func (h *HTTP) Status(ctx context.Context) (string, error) {
	ctx, cancel := withTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/daemon/status", nil)
	if err != nil {
		return "", err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("device: daemon status: %w", err)
	}
	defer resp.Body.Close()

	var status struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("device: decode daemon status: %w", err)
	}
	return status.State, nil
}

func (h *HTTP) post(ctx context.Context, path string, payload map[string]any) error {
	ctx, cancel := withTimeout(ctx, h.timeout)
	defer cancel()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("device: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("device: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("device: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Close is a no-op.
func (h *HTTP) Close() error { return nil }

var _ Device = (*HTTP)(nil)
