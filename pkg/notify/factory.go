package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-robo/pkg/hub"
)

// Config enables notification sinks.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	WebSocket WebSocketConfig `yaml:"websocket"`

	// Timeout bounds each notification.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig has MQTT and the remote websocket disabled.
func DefaultConfig() Config {
	return Config{MQTT: DefaultMQTTConfig(), Timeout: DefaultTimeout}
}

// New builds a Multi from cfg plus the dashboard hub when h is non-nil and
// any extra sinks. An MQTT connect failure is returned; the caller decides
// whether it is fatal.
func New(cfg Config, h *hub.Hub, logger *slog.Logger, extra ...Sink) (*Multi, error) {
	var sinks []Sink
	if cfg.MQTT.Enabled {
		m, err := NewMQTT(cfg.MQTT, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, m)
	}
	if cfg.WebSocket.URL != "" {
		ws, err := NewWebSocket(cfg.WebSocket, logger)
		if err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		sinks = append(sinks, ws)
	}
	if h != nil {
		sinks = append(sinks, NewHub(h))
	}
	return NewMulti(append(sinks, extra...)...), nil
}
