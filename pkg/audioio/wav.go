package audioio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNotWAV is returned by DecodeWAV for input that is not PCM16 RIFF/WAVE.
var ErrNotWAV = errors.New("audioio: not a PCM16 WAV stream")

// EncodeWAV wraps PCM16 samples in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	pcm := SamplesToBytes(samples)
	const bitsPerSample = 16
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataLen := uint32(len(pcm))

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36)+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}

// EncodeWAVFloat encodes mono float32 samples as a PCM16 WAV.
func EncodeWAVFloat(samples []float32, sampleRate int) []byte {
	return EncodeWAV(Float32ToInt16(samples), sampleRate, 1)
}

// DecodeWAV reads a PCM16 WAV stream, skipping chunks other than fmt and
// data.
func DecodeWAV(r io.Reader) (AudioChunk, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return AudioChunk{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return AudioChunk{}, ErrNotWAV
	}

	var (
		chunk     AudioChunk
		sawFormat bool
	)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return AudioChunk{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
		}
		id := string(ch[0:4])
		size := binary.LittleEndian.Uint32(ch[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil || size < 16 {
				return AudioChunk{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || bits != 16 {
				return AudioChunk{}, fmt.Errorf("%w: format %d, %d bits", ErrNotWAV, format, bits)
			}
			chunk.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			chunk.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			sawFormat = true
		case "data":
			if !sawFormat {
				return AudioChunk{}, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			pcm, err := io.ReadAll(io.LimitReader(r, int64(size)))
			if err != nil {
				return AudioChunk{}, err
			}
			chunk.Samples = BytesToSamples(pcm)
			return chunk, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return AudioChunk{}, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, id)
			}
		}
	}
}
