package turn

import (
	"sync"
	"time"
)

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeSpoken          Outcome = "spoken"
	OutcomeSpeakFailed     Outcome = "speak_failed"
	OutcomeEmptyTranscript Outcome = "empty_transcript"
	OutcomeEmptyReply      Outcome = "empty_reply"
	OutcomeArmedTimeout    Outcome = "armed_timeout"
	OutcomeError           Outcome = "error"
	OutcomeCancelled       Outcome = "cancelled"
)

// Metrics tracks latency at each stage of one turn.
type Metrics struct {
	TurnID  string  `json:"turn_id"`
	Outcome Outcome `json:"outcome"`

	// Timestamps for key events
	WakeTime       time.Time `json:"wake_time"`
	VoiceTime      time.Time `json:"voice_time,omitempty"`
	CapturedTime   time.Time `json:"captured_time,omitempty"`
	TranscriptTime time.Time `json:"transcript_time,omitempty"`
	ReplyTime      time.Time `json:"reply_time,omitempty"`
	DoneTime       time.Time `json:"done_time"`

	// Stage latencies
	WakeToVoice time.Duration `json:"wake_to_voice"`
	Capture     time.Duration `json:"capture"`
	ASR         time.Duration `json:"asr"`
	LLM         time.Duration `json:"llm"`
	TTS         time.Duration `json:"tts"`
	Total       time.Duration `json:"total"`
}

// MetricsCollector collects stage latencies during a turn and keeps a
// rolling history. It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics
	limit   int

	onUpdate func(Metrics)
}

// NewMetricsCollector keeps the last limit turns (100 when limit <= 0).
func NewMetricsCollector(limit int) *MetricsCollector {
	if limit <= 0 {
		limit = 100
	}
	return &MetricsCollector{
		history: make([]Metrics, 0, limit),
		limit:   limit,
	}
}

// OnUpdate sets a callback that fires when a turn finishes.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// MarkWake starts a new turn.
func (m *MetricsCollector) MarkWake(turnID string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{TurnID: turnID, WakeTime: t}
}

// MarkVoice records voice confirmation.
func (m *MetricsCollector) MarkVoice(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.VoiceTime = t
	m.current.WakeToVoice = since(m.current.WakeTime, t)
}

// MarkCaptured records that the capture window was read.
func (m *MetricsCollector) MarkCaptured(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.CapturedTime = t
	m.current.Capture = since(m.current.VoiceTime, t)
}

// MarkTranscript records recognizer completion.
func (m *MetricsCollector) MarkTranscript(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TranscriptTime = t
	m.current.ASR = since(m.current.CapturedTime, t)
}

// MarkReply records generator completion.
func (m *MetricsCollector) MarkReply(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ReplyTime = t
	m.current.LLM = since(m.current.TranscriptTime, t)
}

// Finish closes the turn and archives it.
func (m *MetricsCollector) Finish(outcome Outcome, t time.Time) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Outcome = outcome
	m.current.DoneTime = t
	if outcome == OutcomeSpoken || outcome == OutcomeSpeakFailed {
		m.current.TTS = since(m.current.ReplyTime, t)
	}
	m.current.Total = since(m.current.WakeTime, t)

	done := m.current
	m.history = append(m.history, done)
	if len(m.history) > m.limit {
		m.history = m.history[1:]
	}
	m.current = Metrics{}

	if m.onUpdate != nil {
		go m.onUpdate(done)
	}
	return done
}

// Current returns the in-progress turn.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns finished turns, oldest first.
func (m *MetricsCollector) History() []Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Metrics, len(m.history))
	copy(out, m.history)
	return out
}

// Average returns mean stage latencies over spoken turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg Metrics
	n := 0
	for _, h := range m.history {
		if h.Outcome != OutcomeSpoken {
			continue
		}
		avg.WakeToVoice += h.WakeToVoice
		avg.Capture += h.Capture
		avg.ASR += h.ASR
		avg.LLM += h.LLM
		avg.TTS += h.TTS
		avg.Total += h.Total
		n++
	}
	if n == 0 {
		return Metrics{}
	}

	d := time.Duration(n)
	avg.WakeToVoice /= d
	avg.Capture /= d
	avg.ASR /= d
	avg.LLM /= d
	avg.TTS /= d
	avg.Total /= d
	return avg
}

// FormatLatency returns a one-line summary of stage latencies.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.WakeToVoice) + " VAD | " +
		formatDuration(m.Capture) + " CAP | " +
		formatDuration(m.ASR) + " ASR | " +
		formatDuration(m.LLM) + " LLM | " +
		formatDuration(m.TTS) + " TTS | " +
		formatDuration(m.Total) + " TOTAL"
}

func since(start, end time.Time) time.Duration {
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
