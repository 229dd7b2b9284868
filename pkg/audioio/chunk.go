package audioio

import "time"

// AudioChunk is one block of interleaved PCM16 as delivered by a Source or
// handed to a Sink.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// NewChunk decodes little-endian PCM16 bytes into a chunk.
func NewChunk(pcm []byte, rate, channels int) AudioChunk {
	return AudioChunk{Samples: BytesToSamples(pcm), SampleRate: rate, Channels: channels}
}

// Bytes encodes the samples as little-endian PCM16.
func (c AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Frames is the number of samples per channel.
func (c AudioChunk) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration is the playback length of the chunk.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Mono downmixes the chunk, resamples it to rate and scales it to [-1, 1].
// A non-positive rate keeps the chunk's own rate.
func (c AudioChunk) Mono(rate int) []float32 {
	mono := Downmix(c.Samples, c.Channels)
	if rate > 0 && c.SampleRate > 0 {
		mono = Resample(mono, c.SampleRate, rate)
	}
	return Int16ToFloat32(mono)
}
