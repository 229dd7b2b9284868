package device

import (
	"context"
	"sync"
	"time"
)

// Call records one command sent to a Mock.
type Call struct {
	Method    string
	Target    Target
	Kind      Kind
	Intensity float64
	Duration  time.Duration
	Time      time.Time
}

// Mock is a Device for tests.
type Mock struct {
	AnimateFunc func(ctx context.Context, target Target, kind Kind, intensity float64, duration time.Duration) error
	BlinkFunc   func(ctx context.Context, target Target) error

	mu    sync.Mutex
	calls []Call
}

// NewMock creates a mock device that accepts every command.
func NewMock() *Mock {
	return &Mock{}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Animate records the call.
func (m *Mock) Animate(ctx context.Context, target Target, kind Kind, intensity float64, duration time.Duration) error {
	m.record(Call{Method: "Animate", Target: target, Kind: kind, Intensity: intensity, Duration: duration})
	if m.AnimateFunc != nil {
		return m.AnimateFunc(ctx, target, kind, intensity, duration)
	}
	return nil
}

// Blink records the call.
func (m *Mock) Blink(ctx context.Context, target Target) error {
	m.record(Call{Method: "Blink", Target: target})
	if m.BlinkFunc != nil {
		return m.BlinkFunc(ctx, target)
	}
	return nil
}

func (m *Mock) record(c Call) {
	c.Time = time.Now()
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls to method, or all calls when
// method is empty.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if method == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// Close is a no-op.
func (m *Mock) Close() error { return nil }

// Nop discards every command.
type Nop struct{}

func (Nop) Name() string { return "nop" }
func (Nop) Animate(context.Context, Target, Kind, float64, time.Duration) error {
	return nil
}
func (Nop) Blink(context.Context, Target) error { return nil }
func (Nop) Close() error                        { return nil }

var (
	_ Device = (*Mock)(nil)
	_ Device = Nop{}
)
