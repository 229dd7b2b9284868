package turn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-robo/pkg/audioio"
	"github.com/teslashibe/go-robo/pkg/device"
	"github.com/teslashibe/go-robo/pkg/lifecycle"
	"github.com/teslashibe/go-robo/pkg/notify"
	"github.com/teslashibe/go-robo/pkg/protocol"
	"github.com/teslashibe/go-robo/pkg/reply"
	"github.com/teslashibe/go-robo/pkg/speech"
	"github.com/teslashibe/go-robo/pkg/stt"
	"github.com/teslashibe/go-robo/pkg/wake"
)

type countingAudio struct {
	*audioio.Ring
	mu     sync.Mutex
	clears int
}

func (a *countingAudio) Clear() {
	a.mu.Lock()
	a.clears++
	a.mu.Unlock()
	a.Ring.Clear()
}

func (a *countingAudio) Clears() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clears
}

type scriptedGate struct {
	mu      sync.Mutex
	results []bool
	calls   int
	always  bool
}

func (g *scriptedGate) Detect([]float32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.results) == 0 {
		return g.always
	}
	r := g.results[0]
	g.results = g.results[1:]
	return r
}

type harness struct {
	audio    *countingAudio
	wake     *wake.Mock
	gate     *scriptedGate
	rec      *stt.Mock
	gen      *reply.Mock
	speaker  *speech.Mock
	dev      *device.Mock
	notifier *notify.Mock
	lc       *lifecycle.Lifecycle
	clock    *ManualClock
	echo     bytes.Buffer
	o        *Orchestrator
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IdleInterval = 0
	return cfg
}

func newHarness(t *testing.T, cfg Config, setup func(h *harness)) *harness {
	t.Helper()
	ring := audioio.NewRing(audioio.ModelSampleRate, 30*time.Second)
	ring.Write(make([]float32, 10*audioio.ModelSampleRate))

	h := &harness{
		audio:    &countingAudio{Ring: ring},
		wake:     wake.NewScriptedMock(true),
		gate:     &scriptedGate{always: true},
		rec:      stt.NewMock("what time is it"),
		gen:      reply.NewMock("It is three o'clock."),
		speaker:  &speech.Mock{},
		dev:      device.NewMock(),
		notifier: notify.NewMock(),
		lc:       lifecycle.New(context.Background(), nil),
		clock:    NewManualClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)),
	}
	if setup != nil {
		setup(h)
	}

	n := 0
	o, err := New(Deps{
		Audio:      h.audio,
		Wake:       h.wake,
		Gate:       h.gate,
		Recognizer: h.rec,
		Generator:  h.gen,
		Speaker:    h.speaker,
		Device:     h.dev,
		Notifier:   h.notifier,
		Lifecycle:  h.lc,
	}, cfg,
		WithClock(h.clock),
		WithEcho(&h.echo),
		WithIDGenerator(func() string { n++; return "turn-" + strconv.Itoa(n) }),
	)
	require.NoError(t, err)
	h.o = o
	return h
}

// steps runs n steps and returns the state after each.
func (h *harness) steps(t *testing.T, n int) []State {
	t.Helper()
	var out []State
	for i := 0; i < n; i++ {
		require.NoError(t, h.o.Step(context.Background()))
		out = append(out, h.o.State())
	}
	return out
}

func (h *harness) animations() []device.Kind {
	var kinds []device.Kind
	for _, c := range h.dev.Calls() {
		if c.Method == "Animate" {
			kinds = append(kinds, c.Kind)
		}
	}
	return kinds
}

func TestFullTurn(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	states := h.steps(t, 6)
	assert.Equal(t, []State{Armed, Capturing, Recognizing, Generating, Speaking, Idle}, states)

	assert.Equal(t, []string{"It is three o'clock."}, h.speaker.Spoken())
	assert.Equal(t, []string{"what time is it"}, h.gen.Inputs())
	assert.Equal(t, 1, h.audio.Clears())
	assert.Equal(t, 1, h.rec.CallCount())
	assert.Equal(t, 6*audioio.ModelSampleRate, h.rec.Calls()[0].Samples)

	assert.Equal(t, []device.Kind{device.KindThinking, device.KindListening, device.KindSpeaking, device.KindIdle}, h.animations())

	for _, typ := range []protocol.MessageType{protocol.TypeWake, protocol.TypeListening, protocol.TypeTranscript, protocol.TypeReply, protocol.TypeTurn} {
		assert.Equal(t, 1, h.notifier.Count(typ), typ)
	}
	assert.Equal(t, 6, h.notifier.Count(protocol.TypeState))

	hist := h.o.Metrics().History()
	require.Len(t, hist, 1)
	assert.Equal(t, OutcomeSpoken, hist[0].Outcome)
	assert.Equal(t, "turn-1", hist[0].TurnID)
	assert.Equal(t, 3*time.Second, hist[0].Capture)

	assert.Contains(t, h.echo.String(), "what time is it")

	snap := h.o.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, 1, snap.Turns)
	assert.Empty(t, snap.TurnID)
}

func TestEmptyTranscriptReturnsToIdle(t *testing.T) {
	h := newHarness(t, testConfig(), func(h *harness) {
		h.rec = stt.NewMock("   ")
	})

	states := h.steps(t, 4)
	assert.Equal(t, []State{Armed, Capturing, Recognizing, Idle}, states)
	assert.Zero(t, h.gen.CallCount())
	assert.Zero(t, h.speaker.CallCount())
	assert.Equal(t, 1, h.audio.Clears())
	assert.Equal(t, OutcomeEmptyTranscript, h.o.Metrics().History()[0].Outcome)
}

func TestEchoStripsWakePhrase(t *testing.T) {
	h := newHarness(t, testConfig(), func(h *harness) {
		h.rec = stt.NewMock("Hey Robo, hoe laat is het?")
	})
	h.steps(t, 4)
	assert.Equal(t, "\033[1mhoe laat is het?\033[0m\n", h.echo.String())
	assert.Equal(t, []string{"Hey Robo, hoe laat is het?"}, h.gen.Inputs())
}

func TestStatesNeverOverlap(t *testing.T) {
	allowed := map[State][]State{
		Idle:        {Idle, Armed},
		Armed:       {Armed, Capturing, Idle},
		Capturing:   {Recognizing},
		Recognizing: {Generating, Idle},
		Generating:  {Speaking, Idle},
		Speaking:    {Idle},
	}

	cfg := testConfig()
	cfg.ArmedTimeout = 300 * time.Millisecond
	h := newHarness(t, cfg, func(h *harness) {
		h.wake = wake.NewScriptedMock(false, true, false, true, true, false, true)
		h.gate = &scriptedGate{results: []bool{false, false, false, false, true, true, false, true}}
		h.rec = stt.NewScriptedMock("een", "", "twee")
		h.gen = reply.NewMock("ja")
	})

	prev := h.o.State()
	for _, s := range h.steps(t, 80) {
		assert.Contains(t, allowed[prev], s, "%s -> %s", prev, s)
		prev = s
	}
	assert.Equal(t, Idle, h.o.State())
	assert.Equal(t, h.gen.CallCount(), h.speaker.CallCount())
}

func TestArmedTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ArmedTimeout = time.Second
	cfg.PollInterval = 100 * time.Millisecond
	h := newHarness(t, cfg, func(h *harness) {
		h.gate = &scriptedGate{always: false}
	})

	states := h.steps(t, 12)
	assert.Equal(t, Armed, states[0])
	assert.Equal(t, Idle, states[len(states)-1])
	assert.Zero(t, h.rec.CallCount())
	assert.Equal(t, OutcomeArmedTimeout, h.o.Metrics().History()[0].Outcome)
}

func TestSettleDelayAfterWake(t *testing.T) {
	cfg := testConfig()
	cfg.SettleDelay = 400 * time.Millisecond
	var sleeps []time.Duration
	h := newHarness(t, cfg, func(h *harness) {
		h.clock.OnSleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	})
	h.steps(t, 1)
	assert.Equal(t, []time.Duration{400 * time.Millisecond}, sleeps)
}

func TestWakeErrorIsNoWake(t *testing.T) {
	h := newHarness(t, testConfig(), func(h *harness) {
		h.wake = &wake.Mock{DetectFunc: func(context.Context, []float32) (bool, error) {
			return true, errors.New("sidecar down")
		}}
	})
	assert.Equal(t, []State{Idle, Idle, Idle}, h.steps(t, 3))
}

func TestWakeRecognizerErrorIsFatal(t *testing.T) {
	boom := errors.New("whisper down")
	h := newHarness(t, testConfig(), func(h *harness) {
		h.wake = &wake.Mock{DetectFunc: func(context.Context, []float32) (bool, error) {
			return false, fmt.Errorf("%w: %w", wake.ErrRecognizer, boom)
		}}
	})
	err := h.o.Step(context.Background())
	assert.ErrorIs(t, err, ErrRecognizer)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Idle, h.o.State())
}

func TestWakeRecognizerTimeoutIsNoWake(t *testing.T) {
	h := newHarness(t, testConfig(), func(h *harness) {
		h.wake = &wake.Mock{DetectFunc: func(context.Context, []float32) (bool, error) {
			return false, fmt.Errorf("%w: %w", wake.ErrRecognizer, context.DeadlineExceeded)
		}}
	})
	assert.Equal(t, []State{Idle, Idle}, h.steps(t, 2))
}

func TestRecognizerErrorIsFatal(t *testing.T) {
	boom := errors.New("whisper crashed")
	h := newHarness(t, testConfig(), func(h *harness) {
		h.rec = &stt.Mock{TranscribeFunc: func(context.Context, []float32) (string, error) { return "", boom }}
	})
	h.steps(t, 3)
	require.Equal(t, Recognizing, h.o.State())
	err := h.o.Step(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrRecognizer)
	assert.Zero(t, h.gen.CallCount())
}

func TestGeneratorErrorIsFatal(t *testing.T) {
	boom := errors.New("llama crashed")
	h := newHarness(t, testConfig(), func(h *harness) {
		h.gen = &reply.Mock{GenerateFunc: func(context.Context, string) (string, error) { return "", boom }}
	})

	err := h.o.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrGenerator)
	assert.Zero(t, h.speaker.CallCount())
}

func TestEmptyReplySkipsSpeech(t *testing.T) {
	h := newHarness(t, testConfig(), func(h *harness) {
		h.gen = reply.NewMock("")
	})
	states := h.steps(t, 5)
	assert.Equal(t, Idle, states[4])
	assert.Zero(t, h.speaker.CallCount())
	assert.Equal(t, 1, h.audio.Clears())
	assert.Equal(t, OutcomeEmptyReply, h.o.Metrics().History()[0].Outcome)
}

func TestSpeechFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, testConfig(), func(h *harness) {
		h.speaker.SpeakFunc = func(context.Context, string) error { return errors.New("no speaker") }
	})
	states := h.steps(t, 6)
	assert.Equal(t, Idle, states[5])
	assert.Equal(t, 1, h.audio.Clears())
	assert.Equal(t, OutcomeSpeakFailed, h.o.Metrics().History()[0].Outcome)
}

func TestDeviceFailuresAreDropped(t *testing.T) {
	h := newHarness(t, testConfig(), func(h *harness) {
		h.dev.AnimateFunc = func(context.Context, device.Target, device.Kind, float64, time.Duration) error {
			return context.DeadlineExceeded
		}
	})
	states := h.steps(t, 6)
	assert.Equal(t, Idle, states[5])
	assert.Equal(t, 1, h.speaker.CallCount())
}

func TestIdleBlink(t *testing.T) {
	cfg := testConfig()
	cfg.IdleInterval = 5 * time.Second
	cfg.PollInterval = 100 * time.Millisecond

	var blinks []time.Time
	h := newHarness(t, cfg, func(h *harness) {
		h.wake = wake.NewScriptedMock()
	})
	start := h.clock.Now()
	h.dev.BlinkFunc = func(_ context.Context, target device.Target) error {
		assert.Equal(t, device.Both, target)
		blinks = append(blinks, h.clock.Now())
		return nil
	}

	h.steps(t, 300)
	elapsed := h.clock.Now().Sub(start)

	require.GreaterOrEqual(t, len(blinks), int(elapsed/(5*time.Second))-1)
	last := start
	for _, b := range blinks {
		gap := b.Sub(last)
		assert.Greater(t, gap, 5*time.Second)
		assert.LessOrEqual(t, gap, 5*time.Second+cfg.PollInterval)
		last = b
	}
	assert.Equal(t, len(blinks), h.o.Snapshot().Blinks)
	assert.Equal(t, len(blinks), h.notifier.Count(protocol.TypeBlink))
}

func TestIdleBlinkFailureStillResetsTimer(t *testing.T) {
	cfg := testConfig()
	cfg.IdleInterval = time.Second
	cfg.PollInterval = 100 * time.Millisecond
	h := newHarness(t, cfg, func(h *harness) {
		h.wake = wake.NewScriptedMock()
		h.dev.BlinkFunc = func(context.Context, device.Target) error { return context.DeadlineExceeded }
	})
	h.steps(t, 25)
	assert.Equal(t, 2, h.dev.CallCount("Blink"))
}

func TestBlinkWhileBusy(t *testing.T) {
	run := func(suppress bool) int {
		cfg := testConfig()
		cfg.IdleInterval = time.Second
		cfg.PollInterval = 100 * time.Millisecond
		cfg.ArmedTimeout = time.Minute
		cfg.SuppressBlinkWhileBusy = suppress
		h := newHarness(t, cfg, func(h *harness) {
			h.gate = &scriptedGate{always: false}
		})
		h.steps(t, 40)
		require.Equal(t, Armed, h.o.State())
		return h.dev.CallCount("Blink")
	}

	assert.Positive(t, run(false))
	assert.Zero(t, run(true))
}

func TestCancelDuringCapture(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.clock.OnSleep = func(time.Duration) {
		if h.o.State() == Capturing {
			h.lc.Cancel("test")
		}
	}

	require.NoError(t, h.o.Run(context.Background()))
	assert.Equal(t, ShuttingDown, h.o.State())

	assert.Zero(t, h.rec.CallCount())
	assert.Zero(t, h.speaker.CallCount())
	assert.Equal(t, []device.Kind{device.KindThinking, device.KindListening}, h.animations())
	assert.Equal(t, 1, h.notifier.Count(protocol.TypeShutdown))
	assert.Equal(t, OutcomeCancelled, h.o.Metrics().History()[0].Outcome)

	calls := h.dev.CallCount("")
	require.NoError(t, h.o.Step(context.Background()))
	assert.Equal(t, calls, h.dev.CallCount(""))
}

func TestCancelDuringSpeech(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.speaker.SpeakFunc = func(ctx context.Context, _ string) error {
		h.lc.Cancel("signal: interrupt")
		<-ctx.Done()
		return ctx.Err()
	}

	require.NoError(t, h.o.Run(context.Background()))
	assert.Equal(t, ShuttingDown, h.o.State())
	assert.NotContains(t, h.animations(), device.KindIdle)
}

func TestRunStopsOnContext(t *testing.T) {
	h := newHarness(t, testConfig(), func(h *harness) {
		h.wake = wake.NewScriptedMock()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- h.o.Run(ctx) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, h.lc.Cancelled())
}

func TestClearTwiceEqualsOnce(t *testing.T) {
	once := audioio.NewRing(16000, time.Second)
	twice := audioio.NewRing(16000, time.Second)
	for _, r := range []*audioio.Ring{once, twice} {
		r.Write([]float32{0.1, 0.2, 0.3})
	}
	once.Clear()
	twice.Clear()
	twice.Clear()

	assert.Equal(t, once.Get(1000), twice.Get(1000))
	assert.Equal(t, once.Buffered(), twice.Buffered())

	once.Write([]float32{0.5})
	twice.Write([]float32{0.5})
	assert.Equal(t, once.Get(1000), twice.Get(1000))
}

func TestNewValidation(t *testing.T) {
	_, err := New(Deps{}, DefaultConfig())
	assert.ErrorIs(t, err, ErrMissingDependency)

	cfg := DefaultConfig()
	cfg.WakeWindow = 0
	cfg.SettleDelay = -time.Second
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "wake_window") && strings.Contains(err.Error(), "settle_delay"))

	assert.NoError(t, DefaultConfig().Validate())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SHUTTING_DOWN", ShuttingDown.String())
	assert.Equal(t, "State(42)", State(42).String())
	b, _ := Capturing.MarshalText()
	assert.Equal(t, "CAPTURING", string(b))
	assert.True(t, Speaking.Busy())
	assert.False(t, Idle.Busy())
}
