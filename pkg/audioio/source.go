package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Source produces captured audio. Start may be called again after Stop;
// each run gets a fresh Stream channel, closed when that run ends.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Stream() <-chan AudioChunk
	Name() string
	io.Closer
}

// NewSource builds the capture backend named by cfg.Backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = BackendCommand
		if malgoAvailable {
			backend = BackendMalgo
		}
	}
	logger.Info("audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"chunk", cfg.BufferDuration,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendCommand:
		return NewCommandSource(cfg, logger), nil
	case BackendMalgo:
		return newMalgoSource(cfg, logger)
	}
	return nil, fmt.Errorf("unsupported backend: %s", backend)
}

// feed is the run bookkeeping shared by the sources: whether a run is
// active, whether the source has been closed, and the current run's channel.
// The producer of a run is the only writer of its channel and closes it.
type feed struct {
	mu      sync.Mutex
	active  bool
	closed  bool
	stream  chan AudioChunk
	dropped atomic.Int64
}

func newFeed() *feed {
	f := &feed{stream: make(chan AudioChunk)}
	close(f.stream)
	return f
}

// begin opens a new run; callers hold mu. ok is false when a run is
// already active.
func (f *feed) begin(depth int) (ch chan AudioChunk, ok bool, err error) {
	if f.closed {
		return nil, false, io.ErrClosedPipe
	}
	if f.active {
		return nil, false, nil
	}
	f.active = true
	f.stream = make(chan AudioChunk, depth)
	return f.stream, true, nil
}

// offer hands a chunk to the consumer without blocking.
func (f *feed) offer(ch chan<- AudioChunk, c AudioChunk) {
	select {
	case ch <- c:
	default:
		f.dropped.Add(1)
	}
}

// end marks the run owning ch as finished.
func (f *feed) end(ch chan AudioChunk) {
	f.mu.Lock()
	if f.stream == ch {
		f.active = false
	}
	f.mu.Unlock()
}

func (f *feed) current() <-chan AudioChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stream
}

// Dropped counts chunks discarded because the consumer fell behind.
func (f *feed) Dropped() int64 {
	return f.dropped.Load()
}
