package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Fallback asks each backend in turn and returns the first completion.
type Fallback struct {
	backends []Provider
	logger   *slog.Logger
}

// NewFallback needs at least one backend.
func NewFallback(logger *slog.Logger, backends ...Provider) (*Fallback, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{backends: backends, logger: logger.With("component", "inference.fallback")}, nil
}

// Name is the backend names joined by ">".
func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.backends))
	for _, b := range f.backends {
		names = append(names, b.Name())
	}
	return strings.Join(names, ">")
}

// Complete stops at the first success or when ctx is done. When all
// backends fail the error matches ErrExhausted and every backend error.
func (f *Fallback) Complete(ctx context.Context, p *Prompt) (*Completion, error) {
	var errs []error
	for i, b := range f.backends {
		c, err := b.Complete(ctx, p)
		if err == nil {
			if i > 0 {
				f.logger.Info("answered by fallback", "backend", b.Name())
			}
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
		f.logger.Warn("backend failed", "backend", b.Name(), "error", err)
	}
	return nil, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}

// Health passes when any backend is healthy.
func (f *Fallback) Health(ctx context.Context) error {
	var errs []error
	for _, b := range f.backends {
		err := b.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}

func (f *Fallback) Close() error {
	var errs []error
	for _, b := range f.backends {
		errs = append(errs, b.Close())
	}
	return errors.Join(errs...)
}

var _ Provider = (*Fallback)(nil)
