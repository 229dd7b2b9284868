//go:build unix

package audioio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSink_PipesPCM(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pcm.raw")
	sink := NewCommandSink([]string{"sh", "-c", `cat > "$0"`, out}, "", nil)

	c := AudioChunk{Samples: []int16{1, -1, 256}, SampleRate: 16000, Channels: 1}
	require.NoError(t, sink.Play(context.Background(), c))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, c.Bytes(), data)
}

func TestCommandSink_CancelStopsPlayerTree(t *testing.T) {
	sink := NewCommandSink([]string{"sh", "-c", "sleep 3 & sleep 3; true"}, "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sink.Play(ctx, AudioChunk{Samples: make([]int16, 160), SampleRate: 16000, Channels: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestCommandSink_AplayFormatFlags(t *testing.T) {
	sink := NewCommandSink(nil, "plughw:0,0", nil)
	args := sink.Args(AudioChunk{SampleRate: 24000, Channels: 1})
	assert.Equal(t, []string{"aplay", "-q", "-t", "raw", "-f", "S16_LE", "-r", "24000", "-c", "1", "-D", "plughw:0,0"}, args)
}
