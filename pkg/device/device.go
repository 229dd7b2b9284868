// Package device drives the robot's eye hardware: animations and blinks.
//
// Every call is bounded. A command that cannot be delivered within its
// deadline is dropped and reported as an error; callers log it and move on.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Target selects which eye a command applies to.
type Target string

const (
	Left  Target = "L"
	Right Target = "R"
	Both  Target = "B"
)

// ParseTarget accepts L/R/B as well as left/right/both.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "left":
		return Left, nil
	case "r", "right":
		return Right, nil
	case "b", "both", "":
		return Both, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTarget, s)
}

// Valid reports whether t is one of L, R, B.
func (t Target) Valid() bool {
	return t == Left || t == Right || t == Both
}

// Kind names an eye animation.
type Kind string

const (
	KindThinking  Kind = "thinking"
	KindListening Kind = "listening"
	KindSpeaking  Kind = "speaking"
	KindIdle      Kind = "idle"
)

// DefaultTimeout bounds a single device command.
const DefaultTimeout = time.Second

var (
	ErrInvalidTarget = errors.New("device: invalid target")
	ErrInvalidKind   = errors.New("device: invalid animation kind")
	ErrBusy          = errors.New("device: previous command still in flight")
	ErrClosed        = errors.New("device: closed")
)

// Feedback is the capability the turn loop needs.
type Feedback interface {
	Animate(ctx context.Context, target Target, kind Kind, intensity float64, duration time.Duration) error
	Blink(ctx context.Context, target Target) error
}

// Device is a Feedback backend with a name and resources to release.
type Device interface {
	Feedback
	Name() string
	Close() error
}

// Command is one brainboard line without the trailing newline.
type Command string

// BlinkCommand formats "BLINK <target>".
func BlinkCommand(target Target) (Command, error) {
	if !target.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return Command("BLINK " + string(target)), nil
}

// AnimateCommand formats "ANIM <target> <kind> <intensity> <duration_ms>".
// Intensity is clamped to [0, 1].
func AnimateCommand(target Target, kind Kind, intensity float64, duration time.Duration) (Command, error) {
	if !target.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	if kind == "" || strings.ContainsAny(string(kind), " \r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	intensity = clamp(intensity)
	if duration < 0 {
		duration = 0
	}
	return Command(fmt.Sprintf("ANIM %s %s %.2f %d", target, kind, intensity, duration.Milliseconds())), nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
