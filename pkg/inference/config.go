package inference

import (
	"log/slog"
	"time"
)

type settings struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	retries     int
	backoff     time.Duration
	logger      *slog.Logger
}

// Option tunes a provider.
type Option func(*settings)

// WithBaseURL points the provider at another endpoint, e.g.
// "http://localhost:11434/v1" for Ollama.
func WithBaseURL(url string) Option { return func(s *settings) { s.baseURL = url } }

// WithAPIKey sets the bearer key. Local servers need none.
func WithAPIKey(key string) Option { return func(s *settings) { s.apiKey = key } }

func WithModel(model string) Option { return func(s *settings) { s.model = model } }

func WithMaxTokens(n int) Option { return func(s *settings) { s.maxTokens = n } }

func WithTemperature(t float64) Option { return func(s *settings) { s.temperature = t } }

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(d time.Duration) Option { return func(s *settings) { s.timeout = d } }

// WithRetry retries throttled and failed requests n times, waiting backoff
// times the attempt number in between.
func WithRetry(n int, backoff time.Duration) Option {
	return func(s *settings) {
		s.retries = n
		s.backoff = backoff
	}
}

func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.logger = l } }

func newSettings(baseURL, model string, opts []Option) *settings {
	s := &settings{
		baseURL:     baseURL,
		model:       model,
		maxTokens:   256,
		temperature: 0.7,
		timeout:     60 * time.Second,
		retries:     2,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *settings) sampling(p *Prompt) (maxTokens int, temperature float64) {
	maxTokens, temperature = p.MaxTokens, p.Temperature
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}
	if temperature <= 0 {
		temperature = s.temperature
	}
	return maxTokens, temperature
}
