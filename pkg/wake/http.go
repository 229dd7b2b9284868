package wake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-robo/internal/httpc"
	"github.com/teslashibe/go-robo/pkg/audioio"
)

// HTTPConfig configures an HTTPDetector.
type HTTPConfig struct {
	// URL of the scoring endpoint, e.g. http://127.0.0.1:9002/predict.
	URL string `yaml:"url"`

	// Model selects one key from the predictions map. Empty takes the
	// highest score.
	Model string `yaml:"model"`

	// Threshold is the score at or above which the window counts as a wake.
	Threshold float64 `yaml:"threshold"`

	SampleRate int           `yaml:"sample_rate"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// DefaultHTTPConfig returns defaults for a local openWakeWord sidecar.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		URL:        "http://127.0.0.1:9002/predict",
		Model:      "hey_robo",
		Threshold:  0.5,
		SampleRate: 16000,
		Timeout:    2 * time.Second,
		MaxRetries: 0,
	}
}

// HTTPDetector scores windows with a remote wake word model.
//
// The window is posted as a 16-bit mono WAV (Content-Type audio/wav). The
// server answers {"predictions": {"<model>": <score>, ...}}.
type HTTPDetector struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPDetector creates a detector for the given endpoint.
func NewHTTPDetector(cfg HTTPConfig, logger *slog.Logger) (*HTTPDetector, error) {
	if cfg.URL == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPDetector{
		cfg:    cfg,
		client: httpc.NewClient(cfg.Timeout),
		logger: logger.With("component", "wake.http"),
	}, nil
}

// Detect posts the window and compares the score with the threshold.
func (d *HTTPDetector) Detect(ctx context.Context, window []float32) (bool, error) {
	if len(window) == 0 {
		return false, nil
	}
	score, err := d.Score(ctx, window)
	if err != nil {
		return false, err
	}
	return score >= d.cfg.Threshold, nil
}

// Score returns the model score for the window.
func (d *HTTPDetector) Score(ctx context.Context, window []float32) (float64, error) {
	wav := audioio.EncodeWAVFloat(window, d.cfg.SampleRate)

	resp, err := httpc.DoWithRetry(ctx, d.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(wav))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "audio/wav")
		return req, nil
	}, d.cfg.MaxRetries, 50*time.Millisecond)
	if err != nil {
		return 0, fmt.Errorf("wake: score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, &httpc.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Predictions map[string]float64 `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("wake: decode response: %w", err)
	}

	score, ok := pickScore(result.Predictions, d.cfg.Model)
	if !ok {
		return 0, fmt.Errorf("wake: model %q missing from response", d.cfg.Model)
	}
	d.logger.Debug("wake score", "score", score, "threshold", d.cfg.Threshold)
	return score, nil
}

// Close releases idle connections.
func (d *HTTPDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func pickScore(predictions map[string]float64, model string) (float64, bool) {
	if model != "" {
		s, ok := predictions[model]
		return s, ok
	}
	if len(predictions) == 0 {
		return 0, false
	}
	var best float64
	for _, s := range predictions {
		if s > best {
			best = s
		}
	}
	return best, true
}

// Name returns "http".
func (d *HTTPDetector) Name() string { return "http" }
