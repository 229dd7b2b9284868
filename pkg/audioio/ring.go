package audioio

import (
	"sync"
	"time"
)

// Ring is a fixed-size rolling buffer of mono float32 samples. One capture
// goroutine writes; the turn loop reads the most recent window. Reads never
// wait for samples that have not arrived yet.
type Ring struct {
	mu         sync.Mutex
	buf        []float32
	pos        int // next write index
	length     int // valid samples, <= len(buf)
	sampleRate int
	written    int64
}

// NewRing allocates a ring holding length worth of audio at sampleRate.
func NewRing(sampleRate int, length time.Duration) *Ring {
	n := int(float64(sampleRate) * length.Seconds())
	if n < 1 {
		n = 1
	}
	return &Ring{
		buf:        make([]float32, n),
		sampleRate: sampleRate,
	}
}

// SampleRate returns the rate of the stored samples.
func (r *Ring) SampleRate() int {
	return r.sampleRate
}

// Capacity returns the number of samples the ring can hold.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Write appends samples, overwriting the oldest ones once full.
func (r *Ring) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.written += int64(len(samples))
	if len(samples) >= len(r.buf) {
		copy(r.buf, samples[len(samples)-len(r.buf):])
		r.pos = 0
		r.length = len(r.buf)
		return
	}

	n := copy(r.buf[r.pos:], samples)
	if n < len(samples) {
		copy(r.buf, samples[n:])
	}
	r.pos = (r.pos + len(samples)) % len(r.buf)
	r.length += len(samples)
	if r.length > len(r.buf) {
		r.length = len(r.buf)
	}
}

// WriteChunk converts a captured chunk to the ring format and appends it.
func (r *Ring) WriteChunk(chunk AudioChunk) {
	r.Write(chunk.Mono(r.sampleRate))
}

// Get returns a copy of the most recent window of up to ms milliseconds.
// When less audio is buffered, whatever is available is returned.
func (r *Ring) Get(ms int) []float32 {
	if ms <= 0 {
		return nil
	}
	want := int(int64(ms) * int64(r.sampleRate) / 1000)

	r.mu.Lock()
	defer r.mu.Unlock()

	if want > r.length {
		want = r.length
	}
	out := make([]float32, want)
	if want == 0 {
		return out
	}
	start := r.pos - want
	if start < 0 {
		start += len(r.buf)
	}
	n := copy(out, r.buf[start:])
	if n < want {
		copy(out[n:], r.buf[:want-n])
	}
	return out
}

// Clear discards everything buffered so far. Clearing an empty ring is a
// no-op, so repeated calls are equivalent to one.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = 0
	r.length = 0
}

// Buffered returns the buffered duration.
func (r *Ring) Buffered() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(int64(r.length) * int64(time.Second) / int64(r.sampleRate))
}

// Written returns the total number of samples written since creation.
func (r *Ring) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}
