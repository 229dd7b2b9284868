package robo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-robo/pkg/audioio"
	"github.com/teslashibe/go-robo/pkg/inference"
	"github.com/teslashibe/go-robo/pkg/reply"
	"github.com/teslashibe/go-robo/pkg/session"
	"github.com/teslashibe/go-robo/pkg/speech"
	"github.com/teslashibe/go-robo/pkg/stt"
	"github.com/teslashibe/go-robo/pkg/tts"
	"github.com/teslashibe/go-robo/pkg/vad"
	"github.com/teslashibe/go-robo/pkg/wake"
)

const retryDelay = 200 * time.Millisecond

// NewRecognizer builds the configured speech recognizer.
func NewRecognizer(ctx context.Context, cfg session.STTConfig, logger *slog.Logger) (stt.Provider, error) {
	opts := []stt.Option{
		stt.WithLanguage(cfg.Language),
		stt.WithSampleRate(audioio.ModelSampleRate),
		stt.WithTemperature(cfg.Temperature),
		stt.WithTimeout(cfg.Timeout),
		stt.WithRetry(cfg.MaxRetries, retryDelay),
		stt.WithLogger(logger),
	}
	if cfg.Model != "" {
		opts = append(opts, stt.WithModel(cfg.Model))
	}

	switch cfg.Backend {
	case session.STTWhisper:
		w, err := stt.NewWhisper(append(opts, stt.WithBaseURL(cfg.BaseURL))...)
		if err != nil {
			return nil, err
		}
		return w, nil
	case session.STTGoogle:
		g, err := stt.NewGoogle(ctx, append(opts,
			stt.WithAPIKey(cfg.APIKey),
			stt.WithCredentialsFile(cfg.CredentialsFile),
		)...)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown stt backend %q", cfg.Backend)
}

// NewInference builds the LLM provider. The chain backend puts the
// OpenAI-compatible endpoint first and Gemini second, skipping whichever
// is not configured.
func NewInference(ctx context.Context, cfg session.LLMConfig, rc reply.Config, logger *slog.Logger) (inference.Provider, error) {
	common := []inference.Option{
		inference.WithMaxTokens(rc.MaxTokens),
		inference.WithTemperature(rc.Temperature),
		inference.WithTimeout(cfg.Timeout),
		inference.WithRetry(cfg.MaxRetries, retryDelay),
		inference.WithLogger(logger),
	}
	openAI := func() (inference.Provider, error) {
		c, err := inference.NewOpenAI(append(common,
			inference.WithBaseURL(cfg.OpenAI.BaseURL),
			inference.WithAPIKey(cfg.OpenAI.APIKey),
			inference.WithModel(cfg.OpenAI.Model),
		)...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	gemini := func() (inference.Provider, error) {
		opts := append(common,
			inference.WithAPIKey(cfg.Gemini.APIKey),
			inference.WithModel(cfg.Gemini.Model),
		)
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, inference.WithBaseURL(cfg.Gemini.BaseURL))
		}
		g, err := inference.NewGemini(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	}

	switch cfg.Backend {
	case session.LLMOpenAI:
		return openAI()
	case session.LLMGemini:
		return gemini()
	case session.LLMChain:
		var providers []inference.Provider
		if cfg.OpenAI.BaseURL != "" {
			p, err := openAI()
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
		if cfg.Gemini.APIKey != "" {
			p, err := gemini()
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
		f, err := inference.NewFallback(logger, providers...)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
}

// NewSynthesizer builds the TTS provider used by the tts speech backend.
func NewSynthesizer(ctx context.Context, cfg session.TTSConfig, logger *slog.Logger) (tts.Provider, error) {
	opts := []tts.Option{
		tts.WithTimeout(cfg.Timeout),
		tts.WithRetry(cfg.MaxRetries, retryDelay),
		tts.WithLogger(logger),
	}
	if cfg.Model != "" {
		opts = append(opts, tts.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, tts.WithBaseURL(cfg.BaseURL))
	}

	var (
		p   tts.Provider
		err error
	)
	switch cfg.Backend {
	case session.TTSOpenAI:
		p, err = tts.NewOpenAI(append(opts,
			tts.WithAPIKey(cfg.APIKey),
			tts.WithVoice(cfg.Voice),
		)...)
	case session.TTSElevenLabs:
		p, err = tts.NewElevenLabs(append(opts,
			tts.WithAPIKey(cfg.APIKey),
			tts.WithVoice(tts.ResolveElevenLabsVoice(cfg.Voice)),
		)...)
	case session.TTSGoogle:
		p, err = tts.NewGoogle(ctx, append(opts,
			tts.WithAPIKey(cfg.APIKey),
			tts.WithCredentialsFile(cfg.CredentialsFile),
			tts.WithVoice(tts.ResolveGoogleVoice(cfg.Voice)),
			tts.WithLanguage(cfg.Language),
		)...)
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewSpeaker builds the configured speaker. The returned closer releases
// the synthesizer, if any.
func NewSpeaker(ctx context.Context, cfg *session.Config, logger *slog.Logger) (speech.Speaker, func() error, error) {
	switch cfg.Speech.Backend {
	case session.SpeechCommand:
		cc := cfg.Speech.Command
		if cc.Timeout <= 0 {
			cc.Timeout = cfg.Speech.Timeout
		}
		s, err := speech.NewCommandSpeaker(cc, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil

	case session.SpeechTTS:
		provider, err := NewSynthesizer(ctx, cfg.TTS, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("tts: %w", err)
		}
		sink := audioio.NewCommandSink(cfg.Speech.Player, cfg.Speech.PlayerDevice, logger)
		s, err := speech.NewTTSSpeaker(provider, sink, cfg.Speech.SinkPath, cfg.Speech.Timeout, logger)
		if err != nil {
			provider.Close()
			return nil, nil, err
		}
		return s, func() error {
			sink.Close()
			return provider.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown speech backend %q", cfg.Speech.Backend)
}

// NewWakeDetector builds the wake detector. The transcript backend shares
// rec with the turn loop.
func NewWakeDetector(cfg session.WakeConfig, rec stt.Recognizer, gate *vad.Gate, logger *slog.Logger) (wake.Detector, error) {
	switch cfg.Backend {
	case session.WakeHTTP:
		d, err := wake.NewHTTPDetector(cfg.HTTP, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case session.WakeTranscript:
		d, err := wake.NewTranscriptDetector(rec, cfg.Phrases, gate, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case session.WakeEnergy:
		return wake.NewEnergyDetector(gate), nil
	}
	return nil, fmt.Errorf("unknown wake backend %q", cfg.Backend)
}
