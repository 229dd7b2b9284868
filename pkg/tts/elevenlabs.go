package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-robo/internal/httpc"
)

const backendElevenLabs = "elevenlabs"

// ElevenLabs streams PCM from /text-to-speech/{voice}.
type ElevenLabs struct {
	s      *settings
	base   string
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewElevenLabs defaults to the multilingual v2 model with the "charlotte"
// preset.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	s := newSettings(DefaultElevenLabsVoice, "eleven_multilingual_v2", opts)
	if s.apiKey == "" {
		return nil, failed(backendElevenLabs, ErrMissingKey)
	}
	if s.voice == "" {
		return nil, failed(backendElevenLabs, ErrMissingVoice)
	}
	switch s.sampleRate {
	case 16000, 22050, 24000, 44100:
	default:
		return nil, failed(backendElevenLabs, fmt.Errorf("%w: %d", ErrSampleRate, s.sampleRate))
	}
	s.voice = ResolveElevenLabsVoice(s.voice)

	base := s.baseURL
	if base == "" {
		base = "https://api.elevenlabs.io/v1"
	}
	base = strings.TrimSuffix(base, "/")
	return &ElevenLabs{
		s:      s,
		base:   base,
		url:    fmt.Sprintf("%s/text-to-speech/%s?output_format=pcm_%d", base, s.voice, s.sampleRate),
		http:   httpc.NewClient(s.timeout),
		logger: s.logger.With("component", "tts.elevenlabs"),
	}, nil
}

func (e *ElevenLabs) Name() string { return backendElevenLabs }

// VoiceID is the resolved voice.
func (e *ElevenLabs) VoiceID() string { return e.s.voice }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type elevenRequest struct {
	Text     string        `json:"text"`
	Model    string        `json:"model_id"`
	Settings voiceSettings `json:"voice_settings"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	body, err := json.Marshal(elevenRequest{
		Text:     text,
		Model:    e.s.model,
		Settings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75, SpeakerBoost: true, Speed: e.s.speed},
	})
	if err != nil {
		return nil, failed(backendElevenLabs, err)
	}

	resp, err := httpc.DoWithRetry(ctx, e.http, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("xi-api-key", e.s.apiKey)
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Accept", "audio/pcm")
		return r, nil
	}, e.s.retries, e.s.backoff)
	if err != nil {
		return nil, retryFailure(backendElevenLabs, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, refusal(backendElevenLabs, resp.StatusCode, resp.Body)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failed(backendElevenLabs, err)
	}
	sp := &Speech{PCM: pcm, SampleRate: e.s.sampleRate, Chars: len(text), Latency: time.Since(start)}
	e.logger.Debug("synthesized", "chars", sp.Chars, "audio", sp.Duration(), "latency", sp.Latency, "model", e.s.model)
	return sp, nil
}

// Health fetches the account, which fails on a bad key.
func (e *ElevenLabs) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.base+"/user", nil)
	if err != nil {
		return failed(backendElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.s.apiKey)
	resp, err := e.http.Do(req)
	if err != nil {
		return failed(backendElevenLabs, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return refusal(backendElevenLabs, resp.StatusCode, resp.Body)
	}
	return nil
}

func (e *ElevenLabs) Close() error {
	e.http.CloseIdleConnections()
	return nil
}

var _ Provider = (*ElevenLabs)(nil)
