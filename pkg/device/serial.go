package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// SerialConfig configures the brainboard serial link.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`

	// Timeout bounds writing and draining one command.
	Timeout time.Duration `yaml:"timeout"`

	// ReplyTimeout bounds the wait for the board's reply line. It is
	// capped at Timeout.
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

// DefaultReplyTimeout is how long a command waits for the board to answer.
const DefaultReplyTimeout = 50 * time.Millisecond

// DefaultSerialConfig returns /dev/ttyS0 at 115200 baud with a 1s command
// bound and a 50ms reply bound.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Port:         "/dev/ttyS0",
		BaudRate:     115200,
		Timeout:      DefaultTimeout,
		ReplyTimeout: DefaultReplyTimeout,
	}
}

// Port is the subset of serial.Port the brainboard link uses.
type Port interface {
	io.ReadWriteCloser
	Drain() error
	SetReadTimeout(t time.Duration) error
}

var _ Port = serial.Port(nil)

// OpenSerialPort opens a real serial port in 8N1 mode.
func OpenSerialPort(name string, baud int) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", name, err)
	}
	return p, nil
}

// Serial speaks the brainboard line protocol. One command is in flight at a
// time; a command issued while the previous one is still blocked on the
// port is dropped with ErrBusy.
type Serial struct {
	cfg    SerialConfig
	port   Port
	logger *slog.Logger

	mu       sync.Mutex
	inflight atomic.Bool
	closed   atomic.Bool
}

// NewSerial opens cfg.Port and returns a ready device.
func NewSerial(cfg SerialConfig, logger *slog.Logger) (*Serial, error) {
	cfg = applySerialDefaults(cfg)
	port, err := OpenSerialPort(cfg.Port, cfg.BaudRate)
	if err != nil {
		return nil, err
	}
	return NewSerialWithPort(port, cfg, logger)
}

// NewSerialWithPort wraps an already opened port.
func NewSerialWithPort(port Port, cfg SerialConfig, logger *slog.Logger) (*Serial, error) {
	if port == nil {
		return nil, errors.New("device: nil port")
	}
	cfg = applySerialDefaults(cfg)
	if logger == nil {
		logger = slog.Default()
	}
	if err := port.SetReadTimeout(cfg.ReplyTimeout); err != nil {
		return nil, fmt.Errorf("device: set read timeout: %w", err)
	}
	return &Serial{
		cfg:    cfg,
		port:   port,
		logger: logger.With("component", "device.serial", "port", cfg.Port),
	}, nil
}

func applySerialDefaults(cfg SerialConfig) SerialConfig {
	def := DefaultSerialConfig()
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = def.BaudRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = def.ReplyTimeout
	}
	cfg.ReplyTimeout = min(cfg.ReplyTimeout, cfg.Timeout)
	return cfg
}

// Name returns "serial".
func (s *Serial) Name() string { return "serial" }

// Blink sends BLINK <target>.
func (s *Serial) Blink(ctx context.Context, target Target) error {
	cmd, err := BlinkCommand(target)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// Animate sends ANIM <target> <kind> <intensity> <duration_ms>.
func (s *Serial) Animate(ctx context.Context, target Target, kind Kind, intensity float64, duration time.Duration) error {
	cmd, err := AnimateCommand(target, kind, intensity, duration)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// Send writes one command line, drains the port and reads the reply line.
// Writing is bounded by the configured timeout and by ctx; once the line is
// out, a late or missing reply never fails the command.
func (s *Serial) Send(ctx context.Context, cmd Command) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.inflight.CompareAndSwap(false, true) {
		return ErrBusy
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	written := make(chan struct{})
	go func() {
		defer s.inflight.Store(false)
		done <- s.exchange(cmd, written)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case <-written:
			return nil
		default:
		}
		s.logger.Warn("command dropped", "cmd", string(cmd), "error", ctx.Err())
		return fmt.Errorf("device: %s: %w", cmd, ctx.Err())
	}
}

func (s *Serial) exchange(cmd Command, written chan<- struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.port, string(cmd)+"\n"); err != nil {
		return fmt.Errorf("device: write: %w", err)
	}
	if err := s.port.Drain(); err != nil {
		return fmt.Errorf("device: drain: %w", err)
	}
	close(written)

	reply, err := s.readLine()
	if err != nil {
		s.logger.Debug("no reply", "cmd", string(cmd), "error", err)
		return nil
	}
	if reply != "" {
		s.logger.Debug("reply", "cmd", string(cmd), "reply", reply)
	}
	return nil
}

// readLine reads until a newline or a read timeout. A zero-byte read means
// the port timed out.
func (s *Serial) readLine() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 64)
	for sb.Len() < 1024 {
		n, err := s.port.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if i := strings.IndexByte(chunk, '\n'); i >= 0 {
				sb.WriteString(chunk[:i])
				break
			}
			sb.WriteString(chunk)
		}
		if err != nil {
			return strings.TrimSpace(sb.String()), err
		}
		if n == 0 {
			break
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close closes the port.
func (s *Serial) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.port.Close()
}

var _ Device = (*Serial)(nil)
