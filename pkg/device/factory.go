package device

import (
	"fmt"
	"log/slog"
)

// Backend names a Device implementation.
type Backend string

const (
	BackendSerial Backend = "serial"
	BackendHTTP   Backend = "http"
	BackendMock   Backend = "mock"
	BackendNone   Backend = "none"
)

// Config selects and configures a backend.
type Config struct {
	Backend Backend      `yaml:"backend"`
	Serial  SerialConfig `yaml:"serial"`
	HTTP    HTTPConfig   `yaml:"http"`
}

// DefaultConfig uses the serial brainboard.
func DefaultConfig() Config {
	return Config{
		Backend: BackendSerial,
		Serial:  DefaultSerialConfig(),
		HTTP:    HTTPConfig{BaseURL: "http://127.0.0.1:8000", Timeout: DefaultTimeout},
	}
}

// New creates the configured device.
func New(cfg Config, logger *slog.Logger) (Device, error) {
	var (
		d   Device
		err error
	)
	switch cfg.Backend {
	case BackendSerial:
		d, err = NewSerial(cfg.Serial, logger)
	case BackendHTTP:
		d, err = NewHTTP(cfg.HTTP, logger)
	case BackendMock:
		return NewMock(), nil
	case BackendNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("device: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}
