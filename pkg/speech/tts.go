package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-robo/pkg/audioio"
	"github.com/teslashibe/go-robo/pkg/tts"
)

// TTSSpeaker synthesizes with a tts.Provider and plays through an audio sink.
// When SinkPath is set the WAV is also written there.
type TTSSpeaker struct {
	provider tts.Provider
	sink     audioio.Sink
	sinkPath string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTTSSpeaker creates a speaker. sink may be nil to only write the file.
func NewTTSSpeaker(provider tts.Provider, sink audioio.Sink, sinkPath string, timeout time.Duration, logger *slog.Logger) (*TTSSpeaker, error) {
	if provider == nil {
		return nil, fmt.Errorf("speech: tts provider required")
	}
	if sink == nil && sinkPath == "" {
		return nil, fmt.Errorf("speech: sink or sink path required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TTSSpeaker{
		provider: provider,
		sink:     sink,
		sinkPath: sinkPath,
		timeout:  timeout,
		logger:   logger.With("component", "speech.tts"),
	}, nil
}

// Speak synthesizes text and plays it. Synthesis and playback share one
// timeout.
func (s *TTSSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	sp, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("speech: synthesize: %w", err)
	}
	chunk := sp.Chunk()

	if s.sinkPath != "" {
		wav := audioio.EncodeWAV(chunk.Samples, chunk.SampleRate, 1)
		if err := os.WriteFile(s.sinkPath, wav, 0o644); err != nil {
			return fmt.Errorf("speech: write sink: %w", err)
		}
	}

	if s.sink != nil {
		if err := s.sink.Play(ctx, chunk); err != nil {
			return fmt.Errorf("speech: play: %w", err)
		}
	}

	s.logger.Debug("spoke",
		"provider", s.provider.Name(),
		"chars", len(text),
		"audio", sp.Duration(),
		"tts_latency", sp.Latency,
	)
	return nil
}
