// Package hub fans turn events out to the dashboard's websocket
// subscribers. One goroutine owns the subscriber set; everything else talks
// to it over channels.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-robo/pkg/protocol"
)

// queueSize bounds both the hub backlog and each subscriber's backlog.
const queueSize = 256

// Hub broadcasts encoded events.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[*Subscriber]struct{}

	frames chan []byte
	join   chan *Subscriber
	leave  chan *Subscriber
	done   chan struct{}

	running atomic.Bool
	dropped atomic.Int64
}

// New returns a stopped hub; call Run.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger.With("component", "hub"),
		subs:   make(map[*Subscriber]struct{}),
		frames: make(chan []byte, queueSize),
		join:   make(chan *Subscriber),
		leave:  make(chan *Subscriber),
		done:   make(chan struct{}),
	}
}

// Run delivers frames until ctx is done, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subs {
				h.drop(s)
			}
			h.mu.Unlock()
			return

		case s := <-h.join:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Info("subscriber joined", "subscribers", n)

		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				h.drop(s)
			}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Info("subscriber left", "subscribers", n)

		case frame := <-h.frames:
			h.mu.Lock()
			for s := range h.subs {
				select {
				case s.out <- frame:
				default:
					h.drop(s)
					h.logger.Warn("subscriber too slow, disconnected")
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(s *Subscriber) {
	delete(h.subs, s)
	close(s.out)
}

// Publish encodes an event and queues it. It never blocks: a full queue
// drops the event and counts it.
func (h *Hub) Publish(m *protocol.Message) error {
	frame, err := m.Bytes()
	if err != nil {
		return err
	}
	select {
	case h.frames <- frame:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts events lost to a full queue.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

func (h *Hub) Running() bool { return h.running.Load() }
