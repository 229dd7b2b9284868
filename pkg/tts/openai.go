package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-robo/internal/httpc"
)

const backendOpenAI = "openai"

// OpenAI's pcm format is always 24 kHz.
const openAIRate = 24000

// OpenAI calls /audio/speech.
type OpenAI struct {
	s      *settings
	base   string
	http   *http.Client
	logger *slog.Logger
}

// NewOpenAI defaults to tts-1 with the "shimmer" voice.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	s := newSettings("shimmer", "tts-1", opts)
	if s.apiKey == "" {
		return nil, failed(backendOpenAI, ErrMissingKey)
	}
	if s.voice == "" {
		return nil, failed(backendOpenAI, ErrMissingVoice)
	}
	base := s.baseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAI{
		s:      s,
		base:   strings.TrimSuffix(base, "/"),
		http:   httpc.NewClient(s.timeout),
		logger: s.logger.With("component", "tts.openai"),
	}, nil
}

func (o *OpenAI) Name() string { return backendOpenAI }

type speechRequest struct {
	Model  string  `json:"model"`
	Voice  string  `json:"voice"`
	Input  string  `json:"input"`
	Format string  `json:"response_format"`
	Speed  float64 `json:"speed,omitempty"`
}

func (o *OpenAI) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	req := speechRequest{Model: o.s.model, Voice: o.s.voice, Input: text, Format: "pcm"}
	if o.s.speed > 0 && o.s.speed != 1 {
		req.Speed = o.s.speed
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, failed(backendOpenAI, err)
	}

	resp, err := httpc.DoWithRetry(ctx, o.http, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/audio/speech", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+o.s.apiKey)
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}, o.s.retries, o.s.backoff)
	if err != nil {
		return nil, retryFailure(backendOpenAI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, refusal(backendOpenAI, resp.StatusCode, resp.Body)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failed(backendOpenAI, err)
	}
	sp := &Speech{PCM: pcm, SampleRate: openAIRate, Chars: len(text), Latency: time.Since(start)}
	o.logger.Debug("synthesized", "chars", sp.Chars, "audio", sp.Duration(), "latency", sp.Latency, "voice", o.s.voice)
	return sp, nil
}

func (o *OpenAI) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+"/models", nil)
	if err != nil {
		return failed(backendOpenAI, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.s.apiKey)
	resp, err := o.http.Do(req)
	if err != nil {
		return failed(backendOpenAI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return refusal(backendOpenAI, resp.StatusCode, resp.Body)
	}
	return nil
}

func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

var _ Provider = (*OpenAI)(nil)
