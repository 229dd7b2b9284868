package stt

import (
	"log/slog"
	"time"
)

type settings struct {
	baseURL     string
	apiKey      string
	credentials string
	language    string
	model       string
	sampleRate  int
	temperature float64
	timeout     time.Duration
	retries     int
	backoff     time.Duration
	logger      *slog.Logger
}

// Option tunes a recognizer.
type Option func(*settings)

func WithBaseURL(url string) Option { return func(s *settings) { s.baseURL = url } }

func WithAPIKey(key string) Option { return func(s *settings) { s.apiKey = key } }

// WithCredentialsFile selects a service account JSON (google only).
func WithCredentialsFile(path string) Option { return func(s *settings) { s.credentials = path } }

// WithLanguage takes "nl" for whisper, "nl-NL" for google.
func WithLanguage(lang string) Option { return func(s *settings) { s.language = lang } }

func WithModel(model string) Option { return func(s *settings) { s.model = model } }

// WithSampleRate is the rate of the samples handed to Transcribe.
func WithSampleRate(rate int) Option { return func(s *settings) { s.sampleRate = rate } }

// WithTemperature sets the whisper decoding temperature.
func WithTemperature(t float64) Option { return func(s *settings) { s.temperature = t } }

func WithTimeout(d time.Duration) Option { return func(s *settings) { s.timeout = d } }

// WithRetry retries transport errors and 429/5xx n times with linear
// backoff.
func WithRetry(n int, backoff time.Duration) Option {
	return func(s *settings) {
		s.retries = n
		s.backoff = backoff
	}
}

func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.logger = l } }

func newSettings(baseURL, language string, opts []Option) *settings {
	s := &settings{
		baseURL:    baseURL,
		language:   language,
		sampleRate: 16000,
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

func (s *settings) audioMillis(n int) int64 {
	return int64(n) * 1000 / int64(s.sampleRate)
}
