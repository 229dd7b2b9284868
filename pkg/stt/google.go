package stt

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/teslashibe/go-robo/pkg/audioio"
)

const backendGoogle = "google"

// Google transcribes with Cloud Speech-to-Text v1.
type Google struct {
	s       *settings
	service *speech.Service
	logger  *slog.Logger
}

// NewGoogle creates a Cloud Speech recognizer. Credentials come from the API
// key, the credentials file, or Application Default Credentials, in that
// order. A BaseURL overrides the service endpoint.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	s := newSettings("", "nl-NL", opts)
	if s.sampleRate <= 0 {
		return nil, ErrSampleRate
	}

	var clientOpts []option.ClientOption
	switch {
	case s.apiKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(s.apiKey))
	case s.credentials != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.credentials))
	default:
		creds, err := google.FindDefaultCredentials(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, failed(backendGoogle, fmt.Errorf("%w: %v", ErrMissingKey, err))
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	}
	if s.baseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(strings.TrimRight(s.baseURL, "/")+"/"))
	}

	svc, err := speech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, failed(backendGoogle, err)
	}
	return &Google{s: s, service: svc, logger: s.logger.With("component", "stt.google")}, nil
}

func (g *Google) Name() string { return backendGoogle }

// Transcribe runs a synchronous recognition and joins the top alternatives.
func (g *Google) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	start := time.Now()

	if g.s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.s.timeout)
		defer cancel()
	}

	pcm := audioio.SamplesToBytes(audioio.Float32ToInt16(samples))
	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(g.s.sampleRate),
			LanguageCode:    g.s.language,
			Model:           g.s.model,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(pcm),
		},
	}

	resp, err := g.service.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", failed(backendGoogle, err)
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, r.Alternatives[0].Transcript)
		}
	}
	text := Normalize(strings.Join(parts, " "))

	g.logger.Debug("transcribed",
		"audio_ms", g.s.audioMillis(len(samples)),
		"chars", len(text),
		"latency", time.Since(start),
	)
	return text, nil
}

// Health does nothing; the REST API has no cheap probe.
func (g *Google) Health(context.Context) error { return nil }

func (g *Google) Close() error { return nil }
