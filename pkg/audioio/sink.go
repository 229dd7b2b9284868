package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/teslashibe/go-robo/internal/proc"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Play renders the chunk and blocks until playback finishes or ctx ends.
	Play(ctx context.Context, chunk AudioChunk) error

	// Name returns the backend name.
	Name() string

	io.Closer
}

// DefaultPlayer is the argv used by CommandSink when none is configured.
// Format flags are appended per chunk.
var DefaultPlayer = []string{"aplay", "-q"}

// CommandSink plays PCM16 through an external player reading raw audio on
// stdin (aplay by default).
type CommandSink struct {
	argv   []string
	device string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewCommandSink creates a player-backed sink. An empty argv selects
// DefaultPlayer.
func NewCommandSink(argv []string, device string, logger *slog.Logger) *CommandSink {
	if len(argv) == 0 {
		argv = DefaultPlayer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSink{
		argv:   argv,
		device: device,
		logger: logger.With("component", "audioio.sink", "player", argv[0]),
	}
}

// Args returns the full argv used to play a chunk.
func (s *CommandSink) Args(chunk AudioChunk) []string {
	args := append([]string{}, s.argv...)
	if filepath.Base(args[0]) == "aplay" {
		args = append(args,
			"-t", "raw",
			"-f", "S16_LE",
			"-r", strconv.Itoa(chunk.SampleRate),
			"-c", strconv.Itoa(chunk.Channels),
		)
		if s.device != "" && s.device != "default" {
			args = append(args, "-D", s.device)
		}
	}
	return args
}

// Play pipes the chunk into the player. Cancelling ctx kills the player.
func (s *CommandSink) Play(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	if len(chunk.Samples) == 0 {
		return nil
	}

	args := s.Args(chunk)
	cmd := proc.Command(ctx, args[0], args[1:]...)
	cmd.Stdin = bytes.NewReader(chunk.Bytes())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("player exited: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return fmt.Errorf("run player: %w", err)
	}

	s.logger.Debug("played audio", "audio", chunk.Duration())
	return nil
}

// Name returns "command".
func (s *CommandSink) Name() string {
	return string(BackendCommand)
}

// Close disables further playback.
func (s *CommandSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Sink = (*CommandSink)(nil)
