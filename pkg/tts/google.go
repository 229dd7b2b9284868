package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/go-robo/pkg/audioio"
)

const backendGoogle = "google"

// Google uses Cloud Text-to-Speech v1 with LINEAR16 output.
type Google struct {
	s       *settings
	service *texttospeech.Service
	logger  *slog.Logger
}

// NewGoogle authenticates with the API key, then the credentials file, then
// Application Default Credentials.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	s := newSettings("nl-female", "", opts)
	if s.language == "" {
		s.language = "nl-NL"
	}

	var co []option.ClientOption
	switch {
	case s.apiKey != "":
		co = append(co, option.WithAPIKey(s.apiKey))
	case s.credentials != "":
		co = append(co, option.WithCredentialsFile(s.credentials))
	default:
		creds, err := google.FindDefaultCredentials(ctx, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, failed(backendGoogle, fmt.Errorf("%w: %v", ErrMissingKey, err))
		}
		co = append(co, option.WithCredentials(creds))
	}
	if s.baseURL != "" {
		co = append(co, option.WithEndpoint(strings.TrimRight(s.baseURL, "/")+"/"))
	}

	svc, err := texttospeech.NewService(ctx, co...)
	if err != nil {
		return nil, failed(backendGoogle, err)
	}
	return &Google{s: s, service: svc, logger: s.logger.With("component", "tts.google")}, nil
}

func (g *Google) Name() string { return backendGoogle }

// Synthesize strips the WAV header Cloud TTS puts in front of LINEAR16.
func (g *Google) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()
	if g.s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.s.timeout)
		defer cancel()
	}

	voice := ResolveGoogleVoice(g.s.voice)
	resp, err := g.service.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{LanguageCode: g.s.language, Name: voice},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(g.s.sampleRate),
			SpeakingRate:    g.s.speed,
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, failed(backendGoogle, err)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, failed(backendGoogle, fmt.Errorf("audio content: %w", err))
	}
	sp := &Speech{PCM: raw, SampleRate: g.s.sampleRate, Chars: len(text)}
	chunk, err := audioio.DecodeWAV(bytes.NewReader(raw))
	switch {
	case err == nil:
		sp.PCM, sp.SampleRate = chunk.Bytes(), chunk.SampleRate
	case !errors.Is(err, audioio.ErrNotWAV):
		return nil, failed(backendGoogle, err)
	}
	sp.Latency = time.Since(start)

	g.logger.Debug("synthesized", "chars", sp.Chars, "audio", sp.Duration(), "latency", sp.Latency, "voice", voice)
	return sp, nil
}

// Health does nothing; the REST API has no cheap probe.
func (g *Google) Health(context.Context) error { return nil }

func (g *Google) Close() error { return nil }

var _ Provider = (*Google)(nil)
