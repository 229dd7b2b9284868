// Package speech says text out loud.
//
// A Speaker is bounded by a per-call timeout and writes to a sink descriptor:
// a file path the spoken text (CommandSpeaker) or synthesized WAV
// (TTSSpeaker) is written to before playback, so an external process or a
// remote client can pick it up.
package speech

import (
	"context"
	"errors"
	"time"
)

// Speaker renders text as audible speech.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// DefaultTimeout bounds one Speak call.
const DefaultTimeout = 30 * time.Second

// ErrEmptyText is returned for blank input.
var ErrEmptyText = errors.New("speech: empty text")

// withTimeout derives a bounded context. A non-positive timeout uses
// DefaultTimeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Verify interface compliance.
var (
	_ Speaker = (*CommandSpeaker)(nil)
	_ Speaker = (*TTSSpeaker)(nil)
	_ Speaker = (*Mock)(nil)
)
