//go:build unix

package speech

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSpeaker_WritesSinkAndRuns(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")

	s, err := NewCommandSpeaker(CommandConfig{
		Command:  "sh",
		Args:     []string{"-c", `printf '%s|' "$1" > "$3"; cat "$2" >> "$3"`, "sh", "{voice}", "{file}", out},
		Voice:    "2",
		SinkPath: filepath.Join(dir, "say.txt"),
		Timeout:  5 * time.Second,
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Speak(context.Background(), "  Het is drie uur.  "))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "2|Het is drie uur.\n", string(data))
}

func TestCommandSpeaker_Argv(t *testing.T) {
	s, err := NewCommandSpeaker(DefaultCommandConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"./speak", "2", "/tmp/robo_say.txt"}, s.Argv())
}

func TestCommandSpeaker_Timeout(t *testing.T) {
	s, err := NewCommandSpeaker(CommandConfig{
		Command:  "sleep",
		Args:     []string{"5"},
		SinkPath: filepath.Join(t.TempDir(), "say.txt"),
		Timeout:  50 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	start := time.Now()
	err = s.Speak(context.Background(), "hallo")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCommandSpeaker_Failure(t *testing.T) {
	s, err := NewCommandSpeaker(CommandConfig{
		Command:  "sh",
		Args:     []string{"-c", "echo broken >&2; exit 3"},
		SinkPath: filepath.Join(t.TempDir(), "say.txt"),
	}, nil)
	require.NoError(t, err)

	err = s.Speak(context.Background(), "hallo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestCommandSpeaker_Validation(t *testing.T) {
	_, err := NewCommandSpeaker(CommandConfig{SinkPath: "/tmp/x"}, nil)
	assert.Error(t, err)
	_, err = NewCommandSpeaker(CommandConfig{Command: "true"}, nil)
	assert.Error(t, err)

	s, _ := NewCommandSpeaker(CommandConfig{Command: "true", SinkPath: filepath.Join(t.TempDir(), "x")}, nil)
	assert.ErrorIs(t, s.Speak(context.Background(), "  "), ErrEmptyText)
}

func TestCommandSpeaker_TimeoutKillsHelperProcesses(t *testing.T) {
	s, err := NewCommandSpeaker(CommandConfig{
		Command:  "sh",
		Args:     []string{"-c", "sleep 3 & sleep 3; true"},
		SinkPath: filepath.Join(t.TempDir(), "say.txt"),
		Timeout:  200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	start := time.Now()
	err = s.Speak(context.Background(), "hallo")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}
