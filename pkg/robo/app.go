// Package robo wires a session configuration into a running robot.
package robo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/teslashibe/go-robo/pkg/audioio"
	"github.com/teslashibe/go-robo/pkg/device"
	"github.com/teslashibe/go-robo/pkg/hub"
	"github.com/teslashibe/go-robo/pkg/inference"
	"github.com/teslashibe/go-robo/pkg/lifecycle"
	"github.com/teslashibe/go-robo/pkg/notify"
	"github.com/teslashibe/go-robo/pkg/reply"
	"github.com/teslashibe/go-robo/pkg/session"
	"github.com/teslashibe/go-robo/pkg/speech"
	"github.com/teslashibe/go-robo/pkg/stt"
	"github.com/teslashibe/go-robo/pkg/turn"
	"github.com/teslashibe/go-robo/pkg/vad"
	"github.com/teslashibe/go-robo/pkg/wake"
	"github.com/teslashibe/go-robo/pkg/web"
)

const historyLimit = 100

// healthTimeout bounds the reachability check each recognizer and language
// model gets during Init.
const healthTimeout = 10 * time.Second

// Out receives the console banners and the transcript echo.
var Out io.Writer = os.Stdout

// App owns every component of a session and their lifecycle.
type App struct {
	cfg  *session.Config
	base *slog.Logger
	log  *slog.Logger

	life *lifecycle.Lifecycle

	capture      *audioio.Capture
	gate         *vad.Gate
	detector     wake.Detector
	recognizer   stt.Provider
	llm          inference.Provider
	generator    *reply.LLM
	speaker      speech.Speaker
	closeSpeaker func() error
	device       device.Device
	notifier     *notify.Multi
	web          *web.Server
	webDone      chan error

	registry *prometheus.Registry
	metrics  *turn.MetricsCollector
	prom     *turn.PromMetrics
	loop     *turn.Orchestrator

	newSource func(audioio.Config, *slog.Logger) (audioio.Source, error)
}

// New validates cfg and returns an App ready for Init.
func New(cfg *session.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = session.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:      cfg,
		base:     logger,
		log:      logger.With("component", "robo"),
		registry: prometheus.NewRegistry(),

		newSource: audioio.NewSource,
	}, nil
}

// Init builds all components. ctx bounds the session: cancelling it stops
// Run. Call Shutdown even when Init fails.
func (a *App) Init(ctx context.Context) error {
	fmt.Fprintln(Out, "🤖 Robo - wake word voice assistant")
	fmt.Fprintln(Out, "===================================")

	a.life = lifecycle.New(ctx, a.base)
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = turn.NewMetricsCollector(historyLimit)
	a.prom = turn.NewPromMetrics(a.registry)
	a.metrics.OnUpdate(func(m turn.Metrics) {
		if m.Outcome == turn.OutcomeSpoken {
			fmt.Fprintf(Out, "⏱️  LATENCY: %s\n", m.FormatLatency())
		}
	})

	var err error
	step(Out, "🎚️  VAD gate")
	if a.gate, err = vad.NewGate(a.cfg.VAD, a.base); err != nil {
		return fail(Out, "vad", err)
	}
	ok(Out, "")

	step(Out, "📝 Recognizer")
	if a.recognizer, err = NewRecognizer(ctx, a.cfg.STT, a.base); err != nil {
		return fail(Out, "stt", err)
	}
	if err := reachable(ctx, a.recognizer.Health); err != nil {
		return fail(Out, "stt", err)
	}
	ok(Out, a.recognizer.Name())

	step(Out, "👂 Wake detector")
	if a.detector, err = NewWakeDetector(a.cfg.Wake, a.recognizer, a.gate, a.base); err != nil {
		return fail(Out, "wake", err)
	}
	ok(Out, a.cfg.Wake.Backend)

	step(Out, "🧠 Language model")
	if a.llm, err = NewInference(ctx, a.cfg.LLM, a.cfg.Reply, a.base); err != nil {
		return fail(Out, "llm", err)
	}
	if err := reachable(ctx, a.llm.Health); err != nil {
		return fail(Out, "llm", err)
	}
	if a.generator, err = reply.NewLLM(a.llm, a.cfg.Reply, time.Now(), a.base); err != nil {
		return fail(Out, "reply", err)
	}
	ok(Out, a.llm.Name())

	step(Out, "🗣️  Speech")
	if a.speaker, a.closeSpeaker, err = NewSpeaker(ctx, a.cfg, a.base); err != nil {
		return fail(Out, "speech", err)
	}
	ok(Out, a.cfg.Speech.Backend)

	step(Out, "👀 Eyes")
	if a.device, err = device.New(a.cfg.Device, a.base); err != nil {
		fmt.Fprintf(Out, "⚠️  %v (continuing without eye feedback)\n", err)
		a.device = device.Nop{}
	} else {
		ok(Out, a.device.Name())
	}

	var events *hub.Hub
	var extra []notify.Sink
	if a.cfg.Web.Enabled {
		a.web = web.NewServer(a.cfg.Web, web.Sources{
			Snapshot: a.Snapshot,
			Turns:    a.metrics.History,
			Average:  a.metrics.Average,
			Backends: a.Backends(),
		}, a.registry, a.base)
		events = a.web.Events()
		extra = append(extra, a.web)
	}

	step(Out, "📡 Notifications")
	if a.notifier, err = notify.New(a.cfg.Notify, events, a.base, extra...); err != nil {
		return fail(Out, "notify", err)
	}
	ok(Out, a.notifier.Name())

	step(Out, "🎤 Microphone")
	src, err := a.newSource(a.cfg.Audio, a.base)
	if err != nil {
		return fail(Out, "audio", err)
	}
	a.capture = audioio.NewCapture(src, a.cfg.Audio, a.base)
	ok(Out, src.Name())

	tc := a.cfg.Turn
	tc.WakePhrases = a.cfg.Wake.Phrases
	a.loop, err = turn.New(turn.Deps{
		Audio:      a.capture,
		Wake:       a.detector,
		Gate:       a.gate,
		Recognizer: a.recognizer,
		Generator:  a.generator,
		Speaker:    a.speaker,
		Device:     a.device,
		Notifier:   a.notifier,
		Lifecycle:  a.life,
	}, tc,
		turn.WithLogger(a.base),
		turn.WithMetrics(a.metrics),
		turn.WithPrometheus(a.prom),
		turn.WithEcho(Out),
	)
	if err != nil {
		return fmt.Errorf("turn loop: %w", err)
	}
	return nil
}

// Run starts capture and the dashboard, then runs the turn loop until
// SIGINT/SIGTERM, ctx cancellation or a fatal recognizer/generator error.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return errors.New("robo: Init not called")
	}
	stop := a.life.HandleSignals()
	defer stop()

	if err := a.capture.Resume(a.life.Context()); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	if a.web != nil {
		a.webDone = make(chan error, 1)
		go func() { a.webDone <- a.web.Start(a.life.Context()) }()
		fmt.Fprintf(Out, "🌐 Dashboard on %s\n", a.cfg.Web.Addr)
	}

	phrase := wake.DefaultPhrase
	if len(a.cfg.Wake.Phrases) > 0 {
		phrase = a.cfg.Wake.Phrases[0]
	}
	fmt.Fprintf(Out, "\n🎤 %s is listening! Say %q to start...\n", a.cfg.Reply.BotName, phrase)
	fmt.Fprintln(Out, "   (Ctrl+C to exit)")

	err := a.loop.Run(ctx)
	a.life.Cancel("turn loop exited")
	return err
}

// Shutdown releases every component. Safe after a partial Init.
func (a *App) Shutdown() {
	fmt.Fprintln(Out, "\n👋 Goodbye!")
	if a.life != nil {
		a.life.Cancel("shutdown")
	}

	closeLogged := func(name string, fn func() error) {
		if err := fn(); err != nil {
			a.log.Warn("close failed", "component", name, "error", err)
		}
	}
	if a.capture != nil {
		closeLogged("audio", a.capture.Close)
	}
	if c, ok := a.detector.(io.Closer); ok {
		closeLogged("wake", c.Close)
	}
	if a.recognizer != nil {
		closeLogged("stt", a.recognizer.Close)
	}
	if a.llm != nil {
		closeLogged("llm", a.llm.Close)
	}
	if a.closeSpeaker != nil {
		closeLogged("speech", a.closeSpeaker)
	}
	if a.device != nil {
		closeLogged("device", a.device.Close)
	}
	if a.notifier != nil {
		closeLogged("notify", a.notifier.Close)
	}
	if a.webDone != nil {
		select {
		case err := <-a.webDone:
			if err != nil {
				a.log.Warn("dashboard stopped", "error", err)
			}
		case <-time.After(6 * time.Second):
			a.log.Warn("dashboard did not stop in time")
		}
	}
}

// Snapshot returns the loop state, or an IDLE snapshot before Init.
func (a *App) Snapshot() turn.Snapshot {
	if a.loop == nil {
		return turn.Snapshot{State: turn.Idle}
	}
	return a.loop.Snapshot()
}

// Metrics returns the turn metrics collector (nil before Init).
func (a *App) Metrics() *turn.MetricsCollector { return a.metrics }

// Registry returns the Prometheus registry the app exports.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Backends names the backend chosen for each stage.
func (a *App) Backends() map[string]string {
	b := map[string]string{
		"wake":   a.cfg.Wake.Backend,
		"stt":    a.cfg.STT.Backend,
		"llm":    a.cfg.LLM.Backend,
		"speech": a.cfg.Speech.Backend,
		"device": string(a.cfg.Device.Backend),
	}
	if a.cfg.Speech.Backend == session.SpeechTTS {
		b["tts"] = a.cfg.TTS.Backend
	}
	if a.recognizer != nil {
		b["stt"] = a.recognizer.Name()
	}
	if a.llm != nil {
		b["llm"] = a.llm.Name()
	}
	if a.device != nil {
		b["device"] = a.device.Name()
	}
	return b
}

func step(w io.Writer, name string) {
	fmt.Fprintf(w, "%s... ", name)
}

func ok(w io.Writer, detail string) {
	if detail == "" {
		fmt.Fprintln(w, "✅")
		return
	}
	fmt.Fprintf(w, "✅ (%s)\n", detail)
}

// reachable runs a backend health check under healthTimeout.
func reachable(ctx context.Context, health func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := health(ctx); err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	return nil
}

func fail(w io.Writer, name string, err error) error {
	fmt.Fprintln(w, "❌")
	return fmt.Errorf("%s: %w", name, err)
}
