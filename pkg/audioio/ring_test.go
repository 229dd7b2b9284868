package audioio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int, start float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start + float32(i)
	}
	return out
}

func TestRing_GetReturnsMostRecentWindow(t *testing.T) {
	r := NewRing(1000, 2*time.Second) // 2000 samples
	r.Write(ramp(1500, 0))

	got := r.Get(500)
	require.Len(t, got, 500)
	assert.Equal(t, float32(1000), got[0])
	assert.Equal(t, float32(1499), got[499])
}

func TestRing_GetNeverWaitsForMissingSamples(t *testing.T) {
	r := NewRing(1000, time.Second)
	r.Write(ramp(100, 0))

	got := r.Get(2000)
	assert.Len(t, got, 100, "returns what is buffered")

	empty := NewRing(1000, time.Second)
	assert.Empty(t, empty.Get(500))
	assert.Nil(t, empty.Get(0))
}

func TestRing_WrapAround(t *testing.T) {
	r := NewRing(1000, time.Second) // 1000 samples
	r.Write(ramp(800, 0))
	r.Write(ramp(400, 800)) // wraps

	got := r.Get(1000)
	require.Len(t, got, 1000)
	assert.Equal(t, float32(200), got[0])
	assert.Equal(t, float32(1199), got[999])
	assert.Equal(t, time.Second, r.Buffered())
}

func TestRing_OversizedWriteKeepsTail(t *testing.T) {
	r := NewRing(1000, time.Second)
	r.Write(ramp(2500, 0))

	got := r.Get(1000)
	require.Len(t, got, 1000)
	assert.Equal(t, float32(1500), got[0])
	assert.Equal(t, int64(2500), r.Written())
}

func TestRing_GetReturnsCopy(t *testing.T) {
	r := NewRing(1000, time.Second)
	r.Write(ramp(10, 0))

	got := r.Get(10)
	got[0] = 99

	assert.Equal(t, float32(0), r.Get(10)[0])
}

func TestRing_ClearIsIdempotent(t *testing.T) {
	once := NewRing(1000, time.Second)
	twice := NewRing(1000, time.Second)
	for _, r := range []*Ring{once, twice} {
		r.Write(ramp(700, 0))
	}

	once.Clear()
	twice.Clear()
	twice.Clear()

	assert.Empty(t, once.Get(1000))
	assert.Empty(t, twice.Get(1000))

	once.Write(ramp(50, 1000))
	twice.Write(ramp(50, 1000))
	assert.Equal(t, once.Get(1000), twice.Get(1000), "no stale samples after a double clear")
	assert.Len(t, twice.Get(1000), 50)
}

func TestRing_WriteChunkResamples(t *testing.T) {
	r := NewRing(ModelSampleRate, time.Second)
	r.WriteChunk(AudioChunk{
		Samples:    make([]int16, 480), // 10ms at 48kHz
		SampleRate: 48000,
		Channels:   1,
	})
	assert.Len(t, r.Get(1000), 160)
}

func TestRing_ConcurrentWriteAndGet(t *testing.T) {
	r := NewRing(ModelSampleRate, time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Write(ramp(320, 0))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = r.Get(2000)
			if i%50 == 0 {
				r.Clear()
			}
		}
	}()
	wg.Wait()

	assert.LessOrEqual(t, len(r.Get(2000)), r.Capacity())
}
