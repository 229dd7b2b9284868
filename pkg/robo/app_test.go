//go:build unix

package robo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-robo/pkg/audioio"
	"github.com/teslashibe/go-robo/pkg/device"
	"github.com/teslashibe/go-robo/pkg/session"
	"github.com/teslashibe/go-robo/pkg/turn"
)

func init() {
	Out = io.Discard
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sidecars fakes the wake scorer, whisper.cpp and the chat endpoint.
type sidecars struct {
	wake    *httptest.Server
	whisper *httptest.Server
	llm     *httptest.Server
	wakes   atomic.Int32
}

func transcribe(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode(map[string]string{"text": text})
	}
}

func newSidecars(t *testing.T, whisper http.HandlerFunc, reply string) *sidecars {
	t.Helper()
	s := &sidecars{}

	s.wake = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		score := 0.1
		if s.wakes.Add(1) == 1 {
			score = 0.9
		}
		json.NewEncoder(w).Encode(map[string]any{"predictions": map[string]float64{"hey_robo": score}})
	}))
	s.whisper = httptest.NewServer(whisper)
	s.llm = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-1",
			"model": "local",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(func() {
		s.wake.Close()
		s.whisper.Close()
		s.llm.Close()
	})
	return s
}

func testConfig(t *testing.T, s *sidecars, out string) *session.Config {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.Audio.Backend = audioio.BackendMock
	cfg.Wake.HTTP.URL = s.wake.URL
	cfg.STT.BaseURL = s.whisper.URL
	cfg.STT.MaxRetries = 0
	cfg.LLM.OpenAI.BaseURL = s.llm.URL
	cfg.LLM.MaxRetries = 0
	cfg.Speech.Command.Command = "sh"
	cfg.Speech.Command.Args = []string{"-c", `cp "$1" "$2"`, "sh", "{file}", out}
	cfg.Speech.Command.SinkPath = filepath.Join(t.TempDir(), "say.txt")
	cfg.Device.Backend = device.BackendMock
	cfg.Web.Enabled = false

	cfg.Turn.WakeWindow = 200 * time.Millisecond
	cfg.Turn.CaptureWindow = 300 * time.Millisecond
	cfg.Turn.CaptureDelay = 0
	cfg.Turn.PollInterval = 10 * time.Millisecond
	cfg.Turn.ArmedTimeout = 2 * time.Second
	return cfg
}

func TestAppFullTurn(t *testing.T) {
	s := newSidecars(t, transcribe("hey robo hoe laat is het"), "Het is drie uur.")
	out := filepath.Join(t.TempDir(), "spoken.txt")

	app, err := New(testConfig(t, s, out), quietLogger())
	require.NoError(t, err)
	app.newSource = func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error) {
		return audioio.NewMockSource(cfg, logger, audioio.WithSineWave(440, 0.5)), nil
	}
	defer app.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Init(ctx))

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && string(data) == "Het is drie uur.\n"
	}, 10*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		h := app.Metrics().History()
		return len(h) == 1 && h[0].Outcome == turn.OutcomeSpoken
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, turn.ShuttingDown, app.Snapshot().State)
	assert.Equal(t, 1, app.Snapshot().Turns)
}

func TestAppRecognizerFailureStopsRun(t *testing.T) {
	s := newSidecars(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			return
		}
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}, "")
	cfg := testConfig(t, s, filepath.Join(t.TempDir(), "spoken.txt"))

	app, err := New(cfg, quietLogger())
	require.NoError(t, err)
	app.newSource = func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error) {
		return audioio.NewMockSource(cfg, logger, audioio.WithSineWave(440, 0.5)), nil
	}
	defer app.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, app.Init(ctx))

	err = app.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, turn.ErrRecognizer)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Wake.Backend = "psychic"
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestRunBeforeInit(t *testing.T) {
	app, err := New(nil, nil)
	require.NoError(t, err)
	require.Error(t, app.Run(context.Background()))
}

func TestInitFailsWhenBackendsUnreachable(t *testing.T) {
	s := newSidecars(t, transcribe(""), "")
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	cfg := testConfig(t, s, filepath.Join(t.TempDir(), "spoken.txt"))
	cfg.STT.BaseURL = dead.URL
	app, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Shutdown()
	err = app.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stt")

	cfg = testConfig(t, s, filepath.Join(t.TempDir(), "spoken.txt"))
	cfg.LLM.OpenAI.BaseURL = dead.URL
	app, err = New(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Shutdown()
	err = app.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm")
}

func TestShutdownAfterPartialInit(t *testing.T) {
	s := newSidecars(t, transcribe(""), "")
	cfg := testConfig(t, s, filepath.Join(t.TempDir(), "spoken.txt"))
	cfg.Device.Backend = device.BackendNone
	app, err := New(cfg, quietLogger())
	require.NoError(t, err)
	app.newSource = func(audioio.Config, *slog.Logger) (audioio.Source, error) {
		return nil, assert.AnError
	}

	err = app.Init(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.NotPanics(t, app.Shutdown)
}

func TestBackends(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Speech.Backend = session.SpeechTTS
	cfg.TTS.APIKey = "sk-test"
	app, err := New(cfg, nil)
	require.NoError(t, err)

	b := app.Backends()
	assert.Equal(t, "http", b["wake"])
	assert.Equal(t, "whisper", b["stt"])
	assert.Equal(t, "openai", b["tts"])
	assert.Equal(t, "serial", b["device"])
	assert.Equal(t, turn.Idle, app.Snapshot().State)
}

func TestBuilders(t *testing.T) {
	ctx := context.Background()
	logger := quietLogger()

	_, err := NewRecognizer(ctx, session.STTConfig{Backend: "vosk"}, logger)
	require.Error(t, err)

	rec, err := NewRecognizer(ctx, session.STTConfig{Backend: session.STTWhisper, BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, logger)
	require.NoError(t, err)
	assert.Equal(t, "whisper", rec.Name())

	_, err = NewWakeDetector(session.WakeConfig{Backend: "psychic"}, rec, nil, logger)
	require.Error(t, err)

	llmCfg := session.DefaultConfig().LLM
	llmCfg.Backend = session.LLMChain
	p, err := NewInference(ctx, llmCfg, session.DefaultConfig().Reply, logger)
	require.NoError(t, err)
	assert.Contains(t, p.Name(), "openai")

	llmCfg.Backend = "bard"
	_, err = NewInference(ctx, llmCfg, session.DefaultConfig().Reply, logger)
	require.Error(t, err)

	cfg := session.DefaultConfig()
	cfg.Speech.Backend = "telepathy"
	_, _, err = NewSpeaker(ctx, cfg, logger)
	require.Error(t, err)

	cfg.Speech.Backend = session.SpeechCommand
	sp, closeFn, err := NewSpeaker(ctx, cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, sp)
	require.NoError(t, closeFn())
}
