package audioio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_FillsRingInBackground(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil, WithSineWave(300, 0.5))
	capture := NewCapture(src, cfg, nil)
	defer capture.Close()

	require.NoError(t, capture.Resume(context.Background()))
	require.NoError(t, capture.Resume(context.Background()), "resume while running is a no-op")
	assert.True(t, capture.Running())

	require.Eventually(t, func() bool {
		return len(capture.Get(2000)) >= 1600 // 100ms at 16kHz
	}, 2*time.Second, 10*time.Millisecond)

	capture.Clear()
	capture.Clear()
	assert.Less(t, len(capture.Get(2000)), 1600)
}

func TestCapture_PauseKeepsBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	capture := NewCapture(NewMockSource(cfg, nil), cfg, nil)
	defer capture.Close()

	assert.ErrorIs(t, capture.Pause(), ErrNotStarted)

	require.NoError(t, capture.Resume(context.Background()))
	require.Eventually(t, func() bool { return len(capture.Get(1000)) > 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, capture.Pause())
	assert.False(t, capture.Running())

	n := len(capture.Get(30000))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, len(capture.Get(30000)), "no writes while paused")

	require.NoError(t, capture.Resume(context.Background()))
	require.Eventually(t, func() bool { return len(capture.Get(30000)) > n }, 2*time.Second, 10*time.Millisecond)
}
