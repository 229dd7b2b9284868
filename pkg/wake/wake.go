// Package wake decides whether a window of audio contains the wake phrase.
//
// Detectors are stateless per call: each Detect looks only at the window it
// is given. Three backends exist:
//
//   - HTTPDetector posts the window to an openWakeWord sidecar and compares
//     the returned score against a threshold.
//   - TranscriptDetector transcribes the window with an stt.Recognizer and
//     looks for a configured phrase in the text.
//   - EnergyDetector arms on any voiced window. It is the fallback for rigs
//     without a wake model.
package wake

import (
	"context"
	"errors"
)

// Detector reports whether the wake phrase is present in window.
type Detector interface {
	Detect(ctx context.Context, window []float32) (bool, error)
}

// DefaultPhrase is the phrase the robot answers to.
const DefaultPhrase = "hey robo"

// Sentinel errors.
var (
	// ErrNoPhrases is returned when a transcript detector has nothing to match.
	ErrNoPhrases = errors.New("wake: at least one phrase required")

	// ErrNoRecognizer is returned when a transcript detector has no recognizer.
	ErrNoRecognizer = errors.New("wake: recognizer required")

	// ErrNoEndpoint is returned when an HTTP detector has no URL.
	ErrNoEndpoint = errors.New("wake: endpoint required")

	// ErrRecognizer wraps recognizer failures inside a transcript detector.
	ErrRecognizer = errors.New("wake: recognizer failed")
)

// Verify interface compliance.
var (
	_ Detector = (*HTTPDetector)(nil)
	_ Detector = (*TranscriptDetector)(nil)
	_ Detector = (*EnergyDetector)(nil)
	_ Detector = (*Mock)(nil)
)
