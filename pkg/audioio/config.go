// Package audioio provides microphone capture, the rolling sample buffer the
// turn loop polls, and speaker playback.
//
// Capture backends:
//   - malgo (miniaudio via cgo, build tag "malgo") - production on the robot
//   - command (arecord/sox raw PCM on stdout) - no cgo needed
//   - mock - CI/testing without hardware
//
// Captured chunks are converted to mono float32 at ModelSampleRate and
// written into a Ring, which serves non-blocking "last N ms" reads.
package audioio

import (
	"fmt"
	"time"
)

// ModelSampleRate is the rate the recognizer and wake models expect.
const ModelSampleRate = 16000

// Backend names a capture implementation.
type Backend string

const (
	BackendAuto    Backend = "auto"    // malgo if compiled in, else command
	BackendMalgo   Backend = "malgo"   // miniaudio, needs the malgo build tag
	BackendCommand Backend = "command" // raw PCM16 from a recorder's stdout
	BackendMock    Backend = "mock"    // synthetic chunks
)

// Config is the audio section of the robot config.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate and Channels describe the capture device; the ring always
	// holds mono at ModelSampleRate.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`
	Channels   int `yaml:"channels" json:"channels"`

	// BufferDuration is the length of one captured chunk.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is passed to arecord as -D for the command backend, e.g.
	// "plughw:1,0". Ignored by malgo, which opens the system default.
	Device string `yaml:"device" json:"device"`

	// Command replaces the arecord argv. It must write little-endian PCM16
	// at SampleRate/Channels to stdout.
	Command []string `yaml:"command" json:"command"`

	RingLength time.Duration `yaml:"ring_length" json:"ring_length"`
}

// DefaultConfig captures 16 kHz mono in 20 ms chunks and keeps 30 s.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     ModelSampleRate,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		Device:         "default",
		RingLength:     30 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendMalgo, BackendCommand, BackendMock:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Backend)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.RingLength < time.Second {
		return fmt.Errorf("ring_length must be at least 1s, got %v", c.RingLength)
	}
	return nil
}

// BufferSize is the number of frames in one chunk.
func (c *Config) BufferSize() int {
	return int(int64(c.SampleRate) * int64(c.BufferDuration) / int64(time.Second))
}

// BufferBytes is the PCM16 byte size of one chunk.
func (c *Config) BufferBytes() int {
	return 2 * c.Channels * c.BufferSize()
}
