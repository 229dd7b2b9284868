package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// signal yields the next mono sample of a synthetic waveform.
type signal func() int16

func silence() int16 { return 0 }

func tone(freq, amp float64, rate int) signal {
	if rate <= 0 {
		rate = ModelSampleRate
	}
	var n int
	return func() int16 {
		v := amp * math.Sin(2*math.Pi*freq*float64(n)/float64(rate))
		n = (n + 1) % rate
		return int16(v * math.MaxInt16)
	}
}

func loop(clip []int16) signal {
	var i int
	return func() int16 {
		v := clip[i]
		i = (i + 1) % len(clip)
		return v
	}
}

// MockSource emits synthetic chunks on a ticker, silence unless configured
// otherwise. It stands in for a microphone in tests and on machines without
// one.
type MockSource struct {
	*feed
	cfg    Config
	logger *slog.Logger
	next   signal
	halt   chan struct{}
}

// MockOption configures a MockSource.
type MockOption func(*MockSource)

// WithSineWave emits a tone at freq Hz with amplitude amp in [0, 1].
func WithSineWave(freq, amp float64) MockOption {
	return func(m *MockSource) { m.next = tone(freq, amp, m.cfg.SampleRate) }
}

// WithClip repeats samples forever.
func WithClip(samples []int16) MockOption {
	return func(m *MockSource) {
		if len(samples) > 0 {
			m.next = loop(samples)
		}
	}
}

// NewMockSource returns a synthetic source for cfg.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		feed:   newFeed(),
		cfg:    cfg,
		logger: logger.With("component", "audioio.mock"),
		next:   silence,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok, err := m.begin(10)
	if !ok {
		return err
	}
	m.halt = make(chan struct{})
	go m.run(ctx, ch, m.halt)
	m.logger.Debug("mock source started", "sample_rate", m.cfg.SampleRate)
	return nil
}

func (m *MockSource) run(ctx context.Context, ch chan AudioChunk, halt <-chan struct{}) {
	defer close(ch)
	defer m.end(ch)

	tick := time.NewTicker(m.cfg.BufferDuration)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-halt:
			return
		case <-tick.C:
			m.offer(ch, m.render())
		}
	}
}

func (m *MockSource) render() AudioChunk {
	frames, channels := m.cfg.BufferSize(), m.cfg.Channels
	out := make([]int16, 0, frames*channels)
	for range frames {
		v := m.next()
		for range channels {
			out = append(out, v)
		}
	}
	return AudioChunk{Samples: out, SampleRate: m.cfg.SampleRate, Channels: channels}
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active && m.halt != nil {
		close(m.halt)
		m.halt = nil
		m.active = false
	}
	return nil
}

func (m *MockSource) Stream() <-chan AudioChunk { return m.current() }

func (m *MockSource) Name() string { return string(BackendMock) }

// Close stops the source for good; Start fails afterwards.
func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// MockSink keeps every chunk it is asked to play.
type MockSink struct {
	// PlayFunc, when set, runs after the chunk is recorded and decides the
	// result of Play.
	PlayFunc func(ctx context.Context, chunk AudioChunk) error

	mu     sync.Mutex
	played []AudioChunk
	closed bool
}

func NewMockSink() *MockSink { return &MockSink{} }

func (m *MockSink) Play(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	m.played = append(m.played, chunk)
	hook := m.PlayFunc
	m.mu.Unlock()

	if hook != nil {
		return hook(ctx, chunk)
	}
	return ctx.Err()
}

// Played returns the recorded chunks in order.
func (m *MockSink) Played() []AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AudioChunk(nil), m.played...)
}

func (m *MockSink) Name() string { return string(BackendMock) }

func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
