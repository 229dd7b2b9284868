package wake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-robo/pkg/stt"
	"github.com/teslashibe/go-robo/pkg/vad"
)

// TranscriptDetector transcribes each window and matches wake phrases in the
// text. An optional gate skips recognition on windows without speech.
type TranscriptDetector struct {
	recognizer stt.Recognizer
	matcher    *PhraseMatcher
	gate       *vad.Gate
	logger     *slog.Logger
}

// NewTranscriptDetector creates a phrase detector. gate may be nil.
func NewTranscriptDetector(rec stt.Recognizer, phrases []string, gate *vad.Gate, logger *slog.Logger) (*TranscriptDetector, error) {
	if rec == nil {
		return nil, ErrNoRecognizer
	}
	m := NewPhraseMatcher(phrases...)
	if m.Len() == 0 {
		return nil, ErrNoPhrases
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptDetector{
		recognizer: rec,
		matcher:    m,
		gate:       gate,
		logger:     logger.With("component", "wake.transcript"),
	}, nil
}

// Detect reports whether the window's transcript contains a wake phrase.
func (d *TranscriptDetector) Detect(ctx context.Context, window []float32) (bool, error) {
	if len(window) == 0 {
		return false, nil
	}
	if d.gate != nil && !d.gate.Detect(window) {
		return false, nil
	}

	text, err := d.recognizer.Transcribe(ctx, window)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRecognizer, err)
	}
	if text == "" {
		return false, nil
	}

	hit := d.matcher.Match(text)
	d.logger.Debug("wake transcript", "text", text, "match", hit)
	return hit, nil
}

// Name returns "transcript".
func (d *TranscriptDetector) Name() string { return "transcript" }
