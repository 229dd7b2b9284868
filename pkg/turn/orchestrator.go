package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

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

// AudioSource is the ring buffer view the loop polls. Get never blocks.
type AudioSource interface {
	Get(ms int) []float32
	Clear()
}

// VoiceGate confirms voice activity in a window.
type VoiceGate interface {
	Detect(samples []float32) bool
}

// Deps are the loop's collaborators. Device and Notifier may be nil.
type Deps struct {
	Audio      AudioSource
	Wake       wake.Detector
	Gate       VoiceGate
	Recognizer stt.Recognizer
	Generator  reply.Generator
	Speaker    speech.Speaker
	Device     device.Feedback
	Notifier   notify.Notifier
	Lifecycle  *lifecycle.Lifecycle
}

// Sentinel errors.
var (
	ErrMissingDependency = errors.New("turn: missing dependency")
	ErrRecognizer        = errors.New("turn: recognizer failed")
	ErrGenerator         = errors.New("turn: generator failed")
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics shares a metrics collector.
func WithMetrics(m *MetricsCollector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPrometheus exports loop metrics.
func WithPrometheus(p *PromMetrics) Option {
	return func(o *Orchestrator) { o.prom = p }
}

// WithEcho prints each transcript in bold to w, wake phrase stripped.
func WithEcho(w io.Writer) Option {
	return func(o *Orchestrator) { o.echo = w }
}

// WithIDGenerator replaces uuid turn IDs.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// Orchestrator runs the turn loop. Step and Run must be called from a
// single goroutine; Snapshot is safe from any goroutine.
type Orchestrator struct {
	cfg  Config
	deps Deps

	clock   Clock
	logger  *slog.Logger
	metrics *MetricsCollector
	prom    *PromMetrics
	echo    io.Writer
	newID   func() string

	turn  TurnState
	idle  *IdleScheduler
	turns int

	snapMu sync.RWMutex
	snap   Snapshot
}

// New validates cfg and deps and returns a loop in IDLE.
func New(deps Deps, cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, d := range []struct {
		name    string
		missing bool
	}{
		{"audio", deps.Audio == nil},
		{"wake", deps.Wake == nil},
		{"gate", deps.Gate == nil},
		{"recognizer", deps.Recognizer == nil},
		{"generator", deps.Generator == nil},
		{"speaker", deps.Speaker == nil},
		{"lifecycle", deps.Lifecycle == nil},
	} {
		if d.missing {
			return nil, fmt.Errorf("%w: %s", ErrMissingDependency, d.name)
		}
	}
	if deps.Device == nil {
		deps.Device = device.Nop{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if cfg.BlinkTarget == "" {
		cfg.BlinkTarget = device.Both
	}

	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		clock:  RealClock(),
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "turn.orchestrator")
	if o.metrics == nil {
		o.metrics = NewMetricsCollector(0)
	}

	now := o.clock.Now()
	o.turn.reset(now)
	o.idle = NewIdleScheduler(cfg.IdleInterval, now)
	o.publishSnapshot()
	return o, nil
}

// State returns the current state. Loop goroutine only.
func (o *Orchestrator) State() State { return o.turn.State }

// Metrics returns the collector.
func (o *Orchestrator) Metrics() *MetricsCollector { return o.metrics }

// Snapshot returns a copy of the state as of the last Step.
func (o *Orchestrator) Snapshot() Snapshot {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()
	return o.snap
}

// Run steps until cancellation or a fatal error. Cancellation is a clean
// exit and returns nil. Cancelling ctx cancels the lifecycle.
func (o *Orchestrator) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { o.deps.Lifecycle.Cancel("run context done") })
	defer stop()

	o.logger.Info("turn loop started",
		"wake_window_ms", o.cfg.WakeWindow.Milliseconds(),
		"capture_window_ms", o.cfg.CaptureWindow.Milliseconds(),
		"idle_interval", o.cfg.IdleInterval,
	)
	for {
		if err := o.Step(ctx); err != nil {
			return err
		}
		if o.turn.State == ShuttingDown {
			return nil
		}
	}
}

// Step advances the loop by one state. It returns an error only for
// recognizer and generator failures.
func (o *Orchestrator) Step(ctx context.Context) error {
	defer o.publishSnapshot()

	if o.turn.State == ShuttingDown {
		return nil
	}
	if !o.shouldContinue() {
		o.shutdown()
		return nil
	}

	o.maybeBlink()

	var err error
	switch o.turn.State {
	case Idle:
		err = o.stepIdle()
	case Armed:
		o.stepArmed()
	case Capturing:
		o.stepCapturing()
	case Recognizing:
		err = o.stepRecognizing()
	case Generating:
		err = o.stepGenerating()
	case Speaking:
		o.stepSpeaking()
	}

	if !o.shouldContinue() && o.turn.State != ShuttingDown {
		o.shutdown()
		return nil
	}
	return err
}

func (o *Orchestrator) shouldContinue() bool {
	return o.deps.Lifecycle.ShouldContinue()
}

func (o *Orchestrator) stepIdle() error {
	window := o.deps.Audio.Get(ms(o.cfg.WakeWindow))

	ctx, cancel := o.deps.Lifecycle.WithTimeout(o.cfg.WakeTimeout)
	woke, err := o.deps.Wake.Detect(ctx, window)
	cancel()
	if err != nil {
		if !o.shouldContinue() {
			return nil
		}
		// Recognizer failures are fatal here too; wake timeouts are not.
		if errors.Is(err, wake.ErrRecognizer) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrRecognizer, err)
		}
		o.logger.Warn("wake detection failed", "error", err)
		woke = false
	}
	if !woke {
		o.sleep(o.cfg.PollInterval)
		return nil
	}

	now := o.clock.Now()
	o.turn.TurnID = o.newID()
	o.turn.ArmedAt = now
	o.metrics.MarkWake(o.turn.TurnID, now)
	o.logger.Info("wake word detected", "turn_id", o.turn.TurnID)
	o.emit(protocol.NewWakeMessage(o.turn.TurnID, detectorName(o.deps.Wake)))
	o.transition(Armed)

	o.animate(device.KindThinking)
	o.sleep(o.cfg.SettleDelay)
	return nil
}

func (o *Orchestrator) stepArmed() {
	window := o.deps.Audio.Get(ms(o.cfg.WakeWindow))
	if o.deps.Gate.Detect(window) {
		now := o.clock.Now()
		o.metrics.MarkVoice(now)
		o.emit(protocol.NewListeningMessage(o.turn.TurnID, ms(o.cfg.CaptureWindow)))
		o.transition(Capturing)
		o.animate(device.KindListening)
		return
	}

	if o.clock.Now().Sub(o.turn.ArmedAt) >= o.cfg.ArmedTimeout {
		o.logger.Info("no voice after wake", "turn_id", o.turn.TurnID, "armed_timeout", o.cfg.ArmedTimeout)
		o.finish(OutcomeArmedTimeout)
		o.transition(Idle)
		return
	}
	o.sleep(o.cfg.PollInterval)
}

func (o *Orchestrator) stepCapturing() {
	if !o.sleep(o.cfg.CaptureDelay) {
		return
	}
	o.turn.Window = o.deps.Audio.Get(ms(o.cfg.CaptureWindow))
	o.metrics.MarkCaptured(o.clock.Now())
	o.transition(Recognizing)
}

func (o *Orchestrator) stepRecognizing() error {
	ctx, cancel := o.deps.Lifecycle.WithTimeout(o.cfg.RecognizeTimeout)
	text, err := o.deps.Recognizer.Transcribe(ctx, o.turn.Window)
	cancel()
	if err != nil {
		if !o.shouldContinue() {
			return nil
		}
		o.finish(OutcomeError)
		return fmt.Errorf("%w: %w", ErrRecognizer, err)
	}
	o.metrics.MarkTranscript(o.clock.Now())

	text = strings.TrimSpace(text)
	if text == "" {
		o.logger.Debug("empty transcript", "turn_id", o.turn.TurnID)
		o.deps.Audio.Clear()
		o.finish(OutcomeEmptyTranscript)
		o.transition(Idle)
		return nil
	}

	o.turn.Transcript = text
	display := wake.StripPhrase(text, o.cfg.WakePhrases...)
	if o.echo != nil {
		fmt.Fprintf(o.echo, "\033[1m%s\033[0m\n", display)
	}
	o.logger.Info("heard", "turn_id", o.turn.TurnID, "text", text)
	o.emit(protocol.NewTranscriptMessage(o.turn.TurnID, text, display))
	o.transition(Generating)
	return nil
}

func (o *Orchestrator) stepGenerating() error {
	ctx, cancel := o.deps.Lifecycle.WithTimeout(o.cfg.GenerateTimeout)
	text, err := o.deps.Generator.Generate(ctx, o.turn.Transcript)
	cancel()
	if err != nil {
		if !o.shouldContinue() {
			return nil
		}
		o.finish(OutcomeError)
		return fmt.Errorf("%w: %w", ErrGenerator, err)
	}
	o.metrics.MarkReply(o.clock.Now())

	text = strings.TrimSpace(text)
	// An empty reply has nothing to speak: the turn ends here instead of
	// entering SPEAKING.
	if text == "" {
		o.logger.Warn("generator returned an empty reply", "turn_id", o.turn.TurnID)
		o.deps.Audio.Clear()
		o.finish(OutcomeEmptyReply)
		o.transition(Idle)
		return nil
	}

	o.turn.Reply = text
	o.logger.Info("reply", "turn_id", o.turn.TurnID, "text", text)
	o.emit(protocol.NewReplyMessage(o.turn.TurnID, text))
	o.transition(Speaking)
	return nil
}

func (o *Orchestrator) stepSpeaking() {
	o.animate(device.KindSpeaking)

	outcome := OutcomeSpoken
	if o.shouldContinue() {
		ctx, cancel := o.deps.Lifecycle.WithTimeout(o.cfg.SpeakTimeout)
		err := o.deps.Speaker.Speak(ctx, o.turn.Reply)
		cancel()
		if err != nil {
			outcome = OutcomeSpeakFailed
			if o.shouldContinue() {
				o.logger.Warn("speech output failed", "turn_id", o.turn.TurnID, "error", err)
				o.prom.failure("speak")
			}
		}
	}

	o.deps.Audio.Clear()
	o.finish(outcome)
	o.transition(Idle)
	o.animate(device.KindIdle)
}

// maybeBlink fires the idle blink when due. The timer resets whether or not
// the device accepted the command.
func (o *Orchestrator) maybeBlink() {
	now := o.clock.Now()
	if !o.idle.Due(now) {
		return
	}
	if o.cfg.SuppressBlinkWhileBusy && o.turn.State.Busy() {
		return
	}
	if !o.shouldContinue() {
		return
	}

	ctx, cancel := o.deps.Lifecycle.WithTimeout(o.cfg.DeviceTimeout)
	err := o.deps.Device.Blink(ctx, o.cfg.BlinkTarget)
	cancel()

	o.idle.Reset(now)
	o.prom.blink(err == nil)
	if err != nil {
		o.logger.Warn("blink failed", "error", err)
	} else {
		o.logger.Debug("blink", "state", o.turn.State)
	}
	o.emit(protocol.NewBlinkMessage(string(o.cfg.BlinkTarget), err))
}

// animate sends a best-effort animation. Failures are logged and dropped.
func (o *Orchestrator) animate(kind device.Kind) {
	if !o.shouldContinue() {
		return
	}
	ctx, cancel := o.deps.Lifecycle.WithTimeout(o.cfg.DeviceTimeout)
	err := o.deps.Device.Animate(ctx, o.cfg.BlinkTarget, kind, o.cfg.AnimationIntensity, o.cfg.AnimationDuration)
	cancel()
	if err != nil {
		o.logger.Warn("animation failed", "kind", kind, "error", err)
		o.prom.failure("animate")
	}
}

// sleep waits d under the lifecycle. It returns false when cancelled.
func (o *Orchestrator) sleep(d time.Duration) bool {
	if d <= 0 {
		return o.shouldContinue()
	}
	return o.clock.Sleep(o.deps.Lifecycle.Context(), d) == nil
}

func (o *Orchestrator) transition(next State) {
	prev := o.turn.State
	now := o.clock.Now()
	if next == Idle {
		o.turn.reset(now)
	} else {
		o.turn.State = next
		o.turn.LastActivity = now
	}
	o.prom.setState(next)
	o.logger.Debug("state", "from", prev, "to", next, "turn_id", o.turn.TurnID)

	if next != ShuttingDown {
		o.emit(protocol.NewStateMessage(o.turn.TurnID, next.String(), prev.String()))
	}
}

func (o *Orchestrator) finish(outcome Outcome) {
	if o.turn.TurnID == "" {
		return
	}
	m := o.metrics.Finish(outcome, o.clock.Now())
	o.prom.observeTurn(m)
	o.turns++
	o.logger.Info("turn finished", "turn_id", m.TurnID, "outcome", outcome, "latency", m.FormatLatency())
	o.emit(protocol.NewTurnMessage(m.TurnID, protocol.TurnData{
		Outcome:     string(outcome),
		WakeToVADMs: m.WakeToVoice.Milliseconds(),
		CaptureMs:   m.Capture.Milliseconds(),
		ASRMs:       m.ASR.Milliseconds(),
		LLMMs:       m.LLM.Milliseconds(),
		TTSMs:       m.TTS.Milliseconds(),
		TotalMs:     m.Total.Milliseconds(),
	}))
}

func (o *Orchestrator) shutdown() {
	if o.turn.State.Busy() {
		o.finish(OutcomeCancelled)
	}
	prev := o.turn.State
	o.turn.State = ShuttingDown
	o.turn.LastActivity = o.clock.Now()
	o.prom.setState(ShuttingDown)
	o.logger.Info("turn loop stopping", "from", prev, "reason", o.deps.Lifecycle.Reason())

	// the lifecycle context is already cancelled
	msg, err := protocol.NewShutdownMessage(o.deps.Lifecycle.Reason())
	if err == nil {
		notify.Send(context.Background(), o.deps.Notifier, o.notifyTimeout(), o.logger, msg)
	}
}

// emit publishes an event on the lifecycle context. Failures are logged.
func (o *Orchestrator) emit(msg *protocol.Message, err error) {
	if err != nil {
		o.logger.Warn("encode event", "error", err)
		return
	}
	if !o.shouldContinue() {
		return
	}
	ctx, cancel := o.deps.Lifecycle.WithTimeout(o.notifyTimeout())
	defer cancel()
	if err := o.deps.Notifier.Notify(ctx, msg); err != nil {
		o.logger.Warn("notification failed", "type", msg.Type, "error", err)
		o.prom.failure("notify")
	}
}

func (o *Orchestrator) notifyTimeout() time.Duration {
	if o.cfg.NotifyTimeout > 0 {
		return o.cfg.NotifyTimeout
	}
	return notify.DefaultTimeout
}

func (o *Orchestrator) publishSnapshot() {
	s := Snapshot{
		State:        o.turn.State,
		TurnID:       o.turn.TurnID,
		LastActivity: o.turn.LastActivity,
		Transcript:   o.turn.Transcript,
		Reply:        o.turn.Reply,
		Turns:        o.turns,
		Blinks:       o.idle.Fired(),
		LastBlink:    o.idle.Last(),
	}
	if n := len(o.turn.Window); n > 0 {
		s.WindowMs = n * 1000 / audioio.ModelSampleRate
	}
	o.snapMu.Lock()
	o.snap = s
	o.snapMu.Unlock()
}

func detectorName(d wake.Detector) string {
	if n, ok := d.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", d)
}

func ms(d time.Duration) int {
	return int(d.Milliseconds())
}
