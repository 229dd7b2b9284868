package tts

import (
	"log/slog"
	"time"
)

type settings struct {
	apiKey      string
	credentials string
	baseURL     string
	voice       string
	model       string
	language    string
	sampleRate  int
	speed       float64
	timeout     time.Duration
	retries     int
	backoff     time.Duration
	logger      *slog.Logger
}

// Option tunes a provider.
type Option func(*settings)

func WithAPIKey(key string) Option { return func(s *settings) { s.apiKey = key } }

// WithCredentialsFile selects a service account JSON (google only).
func WithCredentialsFile(path string) Option { return func(s *settings) { s.credentials = path } }

func WithBaseURL(url string) Option { return func(s *settings) { s.baseURL = url } }

// WithVoice takes a voice ID or one of the preset names in voices.go.
func WithVoice(voice string) Option { return func(s *settings) { s.voice = voice } }

func WithModel(model string) Option { return func(s *settings) { s.model = model } }

// WithLanguage sets the BCP-47 code, e.g. "nl-NL" (google only).
func WithLanguage(lang string) Option { return func(s *settings) { s.language = lang } }

// WithSampleRate requests PCM at rate. OpenAI ignores it.
func WithSampleRate(rate int) Option { return func(s *settings) { s.sampleRate = rate } }

// WithSpeed scales the speaking rate, 1 is normal.
func WithSpeed(speed float64) Option { return func(s *settings) { s.speed = speed } }

func WithTimeout(d time.Duration) Option { return func(s *settings) { s.timeout = d } }

// WithRetry retries throttled and failed requests n times with linear
// backoff.
func WithRetry(n int, backoff time.Duration) Option {
	return func(s *settings) {
		s.retries = n
		s.backoff = backoff
	}
}

func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.logger = l } }

func newSettings(voice, model string, opts []Option) *settings {
	s := &settings{
		voice:      voice,
		model:      model,
		sampleRate: audioSampleRate,
		speed:      1,
		timeout:    30 * time.Second,
		retries:    2,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// audioSampleRate matches the capture rate so replies can be replayed into
// the same pipeline.
const audioSampleRate = 16000
