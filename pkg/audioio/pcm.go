package audioio

import (
	"encoding/binary"
	"math"
)

// BytesToSamples decodes little-endian PCM16. A trailing odd byte is dropped.
func BytesToSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// SamplesToBytes encodes samples as little-endian PCM16.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, 0, 2*len(samples))
	for _, v := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

// Downmix averages interleaved frames down to one channel.
func Downmix(samples []int16, channels int) []int16 {
	if channels < 2 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for f := range out {
		frame := samples[f*channels : (f+1)*channels]
		var acc int
		for _, v := range frame {
			acc += int(v)
		}
		out[f] = int16(acc / channels)
	}
	return out
}

// Resample converts mono PCM16 between rates by linear interpolation.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := len(samples) * to / from
	out := make([]int16, n)
	last := len(samples) - 1
	step := float64(from) / float64(to)
	for i := range out {
		pos := step * float64(i)
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		a, b := float64(samples[j]), float64(samples[j+1])
		out[i] = int16(a + (b-a)*(pos-float64(j)))
	}
	return out
}

// Int16ToFloat32 scales PCM16 to [-1, 1).
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(v) / -math.MinInt16
	}
	return out
}

// Float32ToInt16 scales [-1, 1] to PCM16, saturating outside that range.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, v := range samples {
		out[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, float64(v)*math.MaxInt16)))
	}
	return out
}
