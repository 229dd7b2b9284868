package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-robo/internal/httpc"
	"github.com/teslashibe/go-robo/pkg/audioio"
)

const backendWhisper = "whisper"

// Whisper transcribes through a whisper.cpp HTTP server.
type Whisper struct {
	s      *settings
	base   string
	client *http.Client
	logger *slog.Logger
}

// NewWhisper defaults to a server on 127.0.0.1:8080 decoding Dutch.
func NewWhisper(opts ...Option) (*Whisper, error) {
	s := newSettings("http://127.0.0.1:8080", "nl", opts)
	if s.baseURL == "" {
		return nil, ErrMissingURL
	}
	if s.sampleRate <= 0 {
		return nil, ErrSampleRate
	}
	return &Whisper{
		s:      s,
		base:   strings.TrimRight(s.baseURL, "/"),
		client: httpc.NewClient(s.timeout),
		logger: s.logger.With("component", "stt.whisper"),
	}, nil
}

func (w *Whisper) Name() string { return backendWhisper }

// Transcribe uploads the samples as a 16-bit WAV and returns the text.
func (w *Whisper) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	start := time.Now()

	wav := audioio.EncodeWAVFloat(samples, w.s.sampleRate)
	body, contentType, err := w.form(wav)
	if err != nil {
		return "", failed(backendWhisper, err)
	}

	url := w.base + "/inference"
	resp, err := httpc.DoWithRetry(ctx, w.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		if w.s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+w.s.apiKey)
		}
		return req, nil
	}, w.s.retries, w.s.backoff)
	if err != nil {
		var se *httpc.StatusError
		if errors.As(err, &se) {
			return "", &BackendError{Backend: backendWhisper, Status: se.StatusCode, Err: errors.New(strings.TrimSpace(se.Body))}
		}
		return "", failed(backendWhisper, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &BackendError{Backend: backendWhisper, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", failed(backendWhisper, fmt.Errorf("decode: %w", err))
	}
	if result.Error != "" {
		return "", failed(backendWhisper, errors.New(result.Error))
	}

	text := Normalize(result.Text)
	w.logger.Debug("transcribed",
		"audio_ms", w.s.audioMillis(len(samples)),
		"chars", len(text),
		"latency", time.Since(start),
	)
	return text, nil
}

func (w *Whisper) form(wav []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"response_format": "json",
		"temperature":     strconv.FormatFloat(w.s.temperature, 'f', 2, 64),
	}
	if w.s.language != "" {
		fields["language"] = w.s.language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// Health checks that the server answers on its root.
func (w *Whisper) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.base+"/", nil)
	if err != nil {
		return failed(backendWhisper, err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return failed(backendWhisper, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &BackendError{Backend: backendWhisper, Status: resp.StatusCode, Err: errors.New("unhealthy")}
	}
	return nil
}

// Close releases idle connections.
func (w *Whisper) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
