// Package notify publishes turn events to external observers. Delivery is
// fire-and-forget: a failed notification is reported to the caller, which
// logs it and carries on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-robo/pkg/protocol"
)

// DefaultTimeout bounds one notification.
const DefaultTimeout = 2 * time.Second

var (
	ErrNotConnected = errors.New("notify: not connected")
	ErrClosed       = errors.New("notify: closed")
)

// Notifier delivers an event.
type Notifier interface {
	Notify(ctx context.Context, msg *protocol.Message) error
}

// Sink is a named Notifier backend.
type Sink interface {
	Notifier
	Name() string
	Close() error
}

// Multi fans an event out to every sink. All sinks are attempted; their
// errors are joined.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks. Nil entries are skipped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name lists the sinks, e.g. "mqtt+hub".
func (m *Multi) Name() string {
	if len(m.sinks) == 0 {
		return "none"
	}
	name := m.sinks[0].Name()
	for _, s := range m.sinks[1:] {
		name += "+" + s.Name()
	}
	return name
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Notify delivers msg to every sink.
func (m *Multi) Notify(ctx context.Context, msg *protocol.Message) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Name() string                                    { return "nop" }
func (Nop) Notify(context.Context, *protocol.Message) error { return nil }
func (Nop) Close() error                                    { return nil }

// Mock records events for tests.
type Mock struct {
	NotifyFunc func(ctx context.Context, msg *protocol.Message) error

	mu       sync.Mutex
	messages []*protocol.Message
}

// NewMock creates a recording notifier.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

// Notify records msg.
func (m *Mock) Notify(ctx context.Context, msg *protocol.Message) error {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, msg)
	}
	return nil
}

// Messages returns recorded events.
func (m *Mock) Messages() []*protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*protocol.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Types returns the recorded event types in order.
func (m *Mock) Types() []protocol.MessageType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.MessageType, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.Type
	}
	return out
}

// Count returns how many events of type t were recorded.
func (m *Mock) Count(t protocol.MessageType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Type == t {
			n++
		}
	}
	return n
}

func (m *Mock) Close() error { return nil }

// Send delivers msg under timeout and logs a failure instead of returning it.
func Send(ctx context.Context, n Notifier, timeout time.Duration, logger *slog.Logger, msg *protocol.Message) {
	if n == nil || msg == nil {
		return
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := n.Notify(ctx, msg); err != nil && logger != nil {
		logger.Warn("notification failed", "type", msg.Type, "error", err)
	}
}

var (
	_ Sink = (*Multi)(nil)
	_ Sink = Nop{}
	_ Sink = (*Mock)(nil)
)
