package turn

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics exports loop activity to Prometheus.
type PromMetrics struct {
	turns            *prometheus.CounterVec
	stages           *prometheus.HistogramVec
	blinks           *prometheus.CounterVec
	feedbackFailures *prometheus.CounterVec
	state            prometheus.Gauge
}

// NewPromMetrics registers the loop collectors on reg.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robo",
			Name:      "turns_total",
			Help:      "Turns by outcome.",
		}, []string{"outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "robo",
			Name:      "stage_duration_seconds",
			Help:      "Turn stage latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"stage"}),
		blinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robo",
			Name:      "blinks_total",
			Help:      "Idle blinks by result.",
		}, []string{"result"}),
		feedbackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robo",
			Name:      "feedback_failures_total",
			Help:      "Failed device, speech and notification calls.",
		}, []string{"op"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robo",
			Name:      "state",
			Help:      "Current turn state (0=IDLE ... 6=SHUTTING_DOWN).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.stages, m.blinks, m.feedbackFailures, m.state)
	}
	return m
}

func (m *PromMetrics) observeTurn(t Metrics) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(string(t.Outcome)).Inc()
	for stage, d := range map[string]float64{
		"wake_to_voice": t.WakeToVoice.Seconds(),
		"capture":       t.Capture.Seconds(),
		"asr":           t.ASR.Seconds(),
		"llm":           t.LLM.Seconds(),
		"tts":           t.TTS.Seconds(),
		"total":         t.Total.Seconds(),
	} {
		if d > 0 {
			m.stages.WithLabelValues(stage).Observe(d)
		}
	}
}

func (m *PromMetrics) blink(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.blinks.WithLabelValues(result).Inc()
}

func (m *PromMetrics) failure(op string) {
	if m == nil {
		return
	}
	m.feedbackFailures.WithLabelValues(op).Inc()
}

func (m *PromMetrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}
