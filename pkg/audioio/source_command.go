package audioio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/teslashibe/go-robo/internal/proc"
)

// CommandSource reads raw PCM16 from a recorder's stdout. Without an
// explicit Config.Command it runs arecord.
type CommandSource struct {
	*feed
	cfg    Config
	logger *slog.Logger
	kill   context.CancelFunc
}

func NewCommandSource(cfg Config, logger *slog.Logger) *CommandSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSource{
		feed:   newFeed(),
		cfg:    cfg,
		logger: logger.With("component", "audioio.command"),
	}
}

// Args is the recorder command line.
func (s *CommandSource) Args() []string {
	if len(s.cfg.Command) > 0 {
		return s.cfg.Command
	}
	argv := []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels)}
	if s.cfg.Device != "" {
		argv = append(argv, "-D", s.cfg.Device)
	}
	return argv
}

func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.active {
		return nil
	}

	argv := s.Args()
	runCtx, kill := context.WithCancel(ctx)
	cmd := proc.Command(runCtx, argv[0], argv[1:]...)
	out, err := cmd.StdoutPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		kill()
		return fmt.Errorf("recorder %s: %w", argv[0], err)
	}

	ch, _, _ := s.begin(10)
	s.kill = kill
	go s.read(runCtx, cmd, out, ch)
	s.logger.Info("recorder started", "argv", argv)
	return nil
}

func (s *CommandSource) read(ctx context.Context, cmd *exec.Cmd, out io.Reader, ch chan AudioChunk) {
	defer close(ch)
	defer s.end(ch)
	defer func() { _ = cmd.Wait() }()

	size := s.cfg.BufferBytes()
	r := bufio.NewReaderSize(out, 4*size)
	buf := make([]byte, size)
	for {
		_, err := io.ReadFull(r, buf)
		switch {
		case err == nil:
		case ctx.Err() != nil, errors.Is(err, io.EOF):
			return
		default:
			s.logger.Warn("recorder read failed", "error", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.offer(ch, NewChunk(buf, s.cfg.SampleRate, s.cfg.Channels))
	}
}

// Stop kills the recorder; the stream closes once it has exited.
func (s *CommandSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kill != nil {
		s.kill()
		s.kill = nil
	}
	return nil
}

func (s *CommandSource) Stream() <-chan AudioChunk { return s.current() }

func (s *CommandSource) Name() string { return string(BackendCommand) }

func (s *CommandSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

var _ Source = (*CommandSource)(nil)
