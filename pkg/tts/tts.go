// Package tts turns reply text into speech. Every backend hands back raw
// 16-bit mono PCM, so playback needs no codec: ElevenLabs (pcm_<rate>),
// OpenAI (response_format=pcm, fixed 24 kHz) and Google Cloud
// Text-to-Speech (LINEAR16).
package tts

import (
	"context"
	"time"

	"github.com/teslashibe/go-robo/pkg/audioio"
)

// Provider synthesizes one utterance at a time.
type Provider interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
	Name() string
	Health(ctx context.Context) error
	Close() error
}

// Speech is a synthesized utterance.
type Speech struct {
	// PCM is 16-bit little-endian mono.
	PCM        []byte
	SampleRate int
	Chars      int
	Latency    time.Duration
}

// Duration is the playback length.
func (s *Speech) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.PCM)/2) * time.Second / time.Duration(s.SampleRate)
}

// Chunk wraps the PCM for an audioio.Sink.
func (s *Speech) Chunk() audioio.AudioChunk {
	return audioio.AudioChunk{
		Samples:    audioio.BytesToSamples(s.PCM),
		SampleRate: s.SampleRate,
		Channels:   1,
	}
}
