// Package lifecycle owns the process-wide cancellation flag.
//
// The flag is set at most once, from a signal handler or an explicit Cancel,
// and is never reset. Loops consult ShouldContinue once per iteration and
// before every blocking call; blocking calls run under contexts derived from
// Context so that cancellation also aborts calls that honor context.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Lifecycle is the process-wide cancellation source.
type Lifecycle struct {
	cancelled atomic.Bool
	reason    atomic.Value // string
	detach    atomic.Pointer[func() bool]

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	logger *slog.Logger
}

// New creates a Lifecycle whose context derives from parent. Cancelling
// parent sets the flag as well.
func New(parent context.Context, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	l := &Lifecycle{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "lifecycle"),
	}
	stop := context.AfterFunc(parent, func() { l.Cancel("parent context done") })
	l.detach.Store(&stop)
	return l
}

// Cancel sets the flag and cancels the context. Only the first call has an
// effect.
func (l *Lifecycle) Cancel(reason string) {
	l.once.Do(func() {
		l.reason.Store(reason)
		l.cancelled.Store(true)
		l.cancel()
		if stop := l.detach.Load(); stop != nil {
			(*stop)()
		}
		l.logger.Info("shutdown requested", "reason", reason)
	})
}

// ShouldContinue reports whether the flag is still clear.
func (l *Lifecycle) ShouldContinue() bool {
	return !l.cancelled.Load()
}

// Cancelled reports whether the flag has been set.
func (l *Lifecycle) Cancelled() bool {
	return l.cancelled.Load()
}

// Reason returns why the lifecycle was cancelled, or "" while running.
func (l *Lifecycle) Reason() string {
	if r, ok := l.reason.Load().(string); ok {
		return r
	}
	return ""
}

// Context is cancelled together with the flag.
func (l *Lifecycle) Context() context.Context {
	return l.ctx
}

// Done is closed once the flag is set.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.ctx.Done()
}

// WithTimeout derives a deadline-bounded context for one blocking call.
// A non-positive timeout only inherits cancellation.
func (l *Lifecycle) WithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(l.ctx)
	}
	return context.WithTimeout(l.ctx, timeout)
}

// DefaultSignals are the termination signals mapped to the flag.
var DefaultSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// HandleSignals maps the given OS signals (DefaultSignals when empty) to
// Cancel. The returned function stops signal delivery.
func (l *Lifecycle) HandleSignals(sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = DefaultSignals
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			l.Cancel("signal: " + sig.String())
		case <-quit:
		case <-l.ctx.Done():
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
