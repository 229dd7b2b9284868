package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-robo/internal/proc"
)

// CommandConfig configures a CommandSpeaker.
type CommandConfig struct {
	// Command is the program to run, e.g. "./speak.sh".
	Command string `yaml:"command"`

	// Args are passed after Command. "{voice}" and "{file}" are replaced by
	// the voice id and the sink path.
	Args []string `yaml:"args"`

	// Voice selects the voice for the external program.
	Voice string `yaml:"voice"`

	// SinkPath is the file the text is written to before the command runs.
	SinkPath string `yaml:"sink_path"`

	Timeout time.Duration `yaml:"timeout"`
}

// DefaultCommandConfig mirrors the classic "speak <voice> <file>" contract.
func DefaultCommandConfig() CommandConfig {
	return CommandConfig{
		Command:  "./speak",
		Args:     []string{"{voice}", "{file}"},
		Voice:    "2",
		SinkPath: "/tmp/robo_say.txt",
		Timeout:  DefaultTimeout,
	}
}

// CommandSpeaker writes the text to a file and hands it to an external
// program (a TTS script, a piper wrapper, a network push).
type CommandSpeaker struct {
	cfg    CommandConfig
	logger *slog.Logger
}

// NewCommandSpeaker creates a speaker for an external program.
func NewCommandSpeaker(cfg CommandConfig, logger *slog.Logger) (*CommandSpeaker, error) {
	if cfg.Command == "" {
		return nil, errors.New("speech: command required")
	}
	if cfg.SinkPath == "" {
		return nil, errors.New("speech: sink path required")
	}
	if cfg.Args == nil {
		cfg.Args = DefaultCommandConfig().Args
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSpeaker{cfg: cfg, logger: logger.With("component", "speech.command")}, nil
}

// Argv returns the full command line for one call.
func (s *CommandSpeaker) Argv() []string {
	r := strings.NewReplacer("{voice}", s.cfg.Voice, "{file}", s.cfg.SinkPath)
	argv := []string{s.cfg.Command}
	for _, a := range s.cfg.Args {
		argv = append(argv, r.Replace(a))
	}
	return argv
}

// Speak writes text to the sink file and runs the command under the
// configured timeout.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	if err := os.WriteFile(s.cfg.SinkPath, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("speech: write sink: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	argv := s.Argv()
	cmd := proc.Command(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("speech: %s: %w", argv[0], ctx.Err())
		}
		return fmt.Errorf("speech: %s: %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}

	s.logger.Debug("spoke", "chars", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
