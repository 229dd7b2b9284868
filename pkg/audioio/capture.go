package audioio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNotStarted is returned by Pause when capture is not running.
var ErrNotStarted = errors.New("audioio: capture not started")

// Capture pumps a Source into a Ring in the background. It is the audio
// source the turn loop polls: Get and Clear go straight to the ring and never
// block on the capture device.
type Capture struct {
	src    Source
	ring   *Ring
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCapture creates a capture pump. The ring is sized from cfg.RingLength
// at ModelSampleRate.
func NewCapture(src Source, cfg Config, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	length := cfg.RingLength
	if length <= 0 {
		length = DefaultConfig().RingLength
	}
	return &Capture{
		src:    src,
		ring:   NewRing(ModelSampleRate, length),
		logger: logger.With("component", "audioio.capture", "backend", src.Name()),
	}
}

// Resume starts (or restarts) capture. Calling Resume while running is a
// no-op.
func (c *Capture) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	if err := c.src.Start(pumpCtx); err != nil {
		cancel()
		return err
	}

	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.pump(pumpCtx, c.src.Stream(), c.done)

	c.logger.Info("audio capture resumed", "ring", c.ring.Capacity())
	return nil
}

func (c *Capture) pump(ctx context.Context, stream <-chan AudioChunk, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			c.ring.WriteChunk(chunk)
		}
	}
}

// Pause stops the capture device; buffered audio is kept.
func (c *Capture) Pause() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	err := c.src.Stop()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		c.logger.Warn("capture pump did not stop in time")
	}
	if d, ok := c.src.(interface{ Dropped() int64 }); ok {
		c.logger.Info("audio capture paused", "dropped_chunks", d.Dropped())
	} else {
		c.logger.Info("audio capture paused")
	}
	return err
}

// Running reports whether capture is active.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Get returns the most recent ms of audio without blocking.
func (c *Capture) Get(ms int) []float32 {
	return c.ring.Get(ms)
}

// Clear discards buffered audio.
func (c *Capture) Clear() {
	c.ring.Clear()
}

// Ring exposes the underlying ring buffer.
func (c *Capture) Ring() *Ring {
	return c.ring
}

// Close stops capture and releases the source.
func (c *Capture) Close() error {
	if c.Running() {
		_ = c.Pause()
	}
	return c.src.Close()
}
