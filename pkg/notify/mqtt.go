package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/teslashibe/go-robo/pkg/protocol"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Topic is the base topic. Events go to <Topic>/<type>.
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retained bool   `yaml:"retained"`

	// ListeningPayload, when set, is also published verbatim on Topic for
	// listening events so simple clients can react without parsing JSON.
	ListeningPayload string `yaml:"listening_payload"`

	Timeout time.Duration `yaml:"timeout"`
}

// DefaultMQTTConfig returns a local broker configuration.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:           "tcp://127.0.0.1:1883",
		Topic:            "robo",
		ListeningPayload: "listening",
		Timeout:          DefaultTimeout,
	}
}

// Publisher is the part of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

var _ Publisher = mqtt.Client(nil)

// MQTT publishes events to a broker.
type MQTT struct {
	cfg    MQTTConfig
	client Publisher
	logger *slog.Logger
}

// NewMQTT connects to the broker. Paho reconnects automatically after the
// first successful connect.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	cfg = applyMQTTDefaults(cfg)
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "notify.mqtt", "broker", cfg.Broker)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetWriteTimeout(cfg.Timeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("connection lost", "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("notify: mqtt connect %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("notify: mqtt connect %s: %w", cfg.Broker, err)
	}
	logger.Info("connected", "client_id", cfg.ClientID)

	return NewMQTTWithClient(client, cfg, logger), nil
}

// NewMQTTWithClient wraps an existing publisher.
func NewMQTTWithClient(client Publisher, cfg MQTTConfig, logger *slog.Logger) *MQTT {
	cfg = applyMQTTDefaults(cfg)
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{cfg: cfg, client: client, logger: logger}
}

func applyMQTTDefaults(cfg MQTTConfig) MQTTConfig {
	def := DefaultMQTTConfig()
	if cfg.Broker == "" {
		cfg.Broker = def.Broker
	}
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "robo-" + uuid.NewString()[:8]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

func (m *MQTT) Name() string { return "mqtt" }

// Topic returns the topic an event type is published on.
func (m *MQTT) Topic(t protocol.MessageType) string {
	return m.cfg.Topic + "/" + string(t)
}

// Notify publishes msg as JSON on <Topic>/<type>.
func (m *MQTT) Notify(ctx context.Context, msg *protocol.Message) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := m.publish(ctx, m.Topic(msg.Type), data); err != nil {
		return err
	}
	if msg.Type == protocol.TypeListening && m.cfg.ListeningPayload != "" {
		return m.publish(ctx, m.cfg.Topic, []byte(m.cfg.ListeningPayload))
	}
	return nil
}

func (m *MQTT) publish(ctx context.Context, topic string, payload []byte) error {
	token := m.client.Publish(topic, m.cfg.QoS, m.cfg.Retained, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("notify: publish %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify: publish %s: %w", topic, ctx.Err())
	}
}

// Close disconnects, allowing 250ms for in-flight publishes.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

var _ Sink = (*MQTT)(nil)
