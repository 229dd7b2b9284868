// Package stt turns captured speech into text.
//
// Backends:
//   - Whisper: a whisper.cpp server (POST /inference, multipart WAV)
//   - Google: Cloud Speech-to-Text v1 synchronous Recognize
//   - Mock: scripted transcripts for tests
//
// Every backend accepts mono float32 PCM at the configured sample rate.
// Empty input yields an empty transcript without contacting the backend, so
// the caller can treat "" uniformly as "nothing was said".
package stt

import (
	"context"
	"strings"
)

// Recognizer transcribes a window of audio.
type Recognizer interface {
	// Transcribe returns the recognized text. Transport or backend failures
	// are returned as errors; silence is ("", nil).
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Provider is a Recognizer with lifecycle methods.
type Provider interface {
	Recognizer

	// Name identifies the backend in logs and metrics.
	Name() string

	// Health checks that the backend is reachable.
	Health(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Normalize trims whitespace and collapses internal runs of spaces.
// Non-speech markers whisper emits for silence ("[BLANK_AUDIO]",
// "(silence)") normalize to "".
func Normalize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	switch strings.ToLower(text) {
	case "[blank_audio]", "[silence]", "(silence)", "[ silence ]":
		return ""
	}
	return text
}

// Verify interface compliance.
var (
	_ Provider = (*Whisper)(nil)
	_ Provider = (*Google)(nil)
	_ Provider = (*Mock)(nil)
)
