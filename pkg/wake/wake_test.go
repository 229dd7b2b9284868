package wake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teslashibe/go-robo/pkg/audioio"
	"github.com/teslashibe/go-robo/pkg/stt"
	"github.com/teslashibe/go-robo/pkg/vad"
)

func voiced(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return s
}

func TestPhraseMatcher(t *testing.T) {
	m := NewPhraseMatcher("hey robo", "  ", "robo")
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	tests := []struct {
		text string
		want bool
	}{
		{"Hey, Robo! What time is it?", true},
		{"ok robo", true},
		{"robotics is fun", false},
		{"hey", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.text); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestStripPhrase(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Hey, Robo! What time is it?", "What time is it?"},
		{"hey robo hoe laat is het", "hoe laat is het"},
		{"  what time is it  ", "what time is it"},
		{"hey robot, hello", "hey robot, hello"},
		{"Hey Robo", ""},
	}
	for _, tt := range tests {
		if got := StripPhrase(tt.text, DefaultPhrase); got != tt.want {
			t.Errorf("StripPhrase(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestHTTPDetector(t *testing.T) {
	score := 0.9
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if _, err := audioio.DecodeWAV(bytes.NewReader(body)); err != nil {
			t.Errorf("body is not WAV: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": map[string]float64{"hey_robo": score, "alexa": 0.99},
		})
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URL = srv.URL
	d, err := NewHTTPDetector(cfg, nil)
	if err != nil {
		t.Fatalf("NewHTTPDetector: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	hit, err := d.Detect(ctx, voiced(1600))
	if err != nil || !hit {
		t.Errorf("Detect = %v, %v; want true", hit, err)
	}

	score = 0.2
	hit, err = d.Detect(ctx, voiced(1600))
	if err != nil || hit {
		t.Errorf("Detect = %v, %v; want false", hit, err)
	}

	hit, err = d.Detect(ctx, nil)
	if err != nil || hit {
		t.Errorf("Detect(nil) = %v, %v", hit, err)
	}
}

func TestHTTPDetector_MissingModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":{"alexa":0.7}}`))
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URL = srv.URL
	d, _ := NewHTTPDetector(cfg, nil)
	if _, err := d.Detect(context.Background(), voiced(160)); err == nil {
		t.Fatal("expected error for missing model")
	}

	cfg.Model = ""
	d, _ = NewHTTPDetector(cfg, nil)
	score, err := d.Score(context.Background(), voiced(160))
	if err != nil || score != 0.7 {
		t.Errorf("Score = %v, %v; want max 0.7", score, err)
	}
}

func TestHTTPDetector_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URL = srv.URL
	d, _ := NewHTTPDetector(cfg, nil)
	if _, err := d.Detect(context.Background(), voiced(160)); err == nil {
		t.Fatal("expected error")
	}

	if _, err := NewHTTPDetector(HTTPConfig{}, nil); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("empty config err = %v", err)
	}
}

func TestTranscriptDetector(t *testing.T) {
	rec := stt.NewScriptedMock("hey robo", "good morning", "")
	d, err := NewTranscriptDetector(rec, []string{DefaultPhrase}, nil, nil)
	if err != nil {
		t.Fatalf("NewTranscriptDetector: %v", err)
	}

	ctx := context.Background()
	for i, want := range []bool{true, false, false} {
		got, err := d.Detect(ctx, voiced(160))
		if err != nil || got != want {
			t.Errorf("call %d: Detect = %v, %v; want %v", i, got, err, want)
		}
	}
}

func TestTranscriptDetector_GateSkipsSilence(t *testing.T) {
	rec := stt.NewMock("hey robo")
	gate, err := vad.NewGate(vad.DefaultParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	d, _ := NewTranscriptDetector(rec, []string{DefaultPhrase}, gate, nil)

	hit, err := d.Detect(context.Background(), make([]float32, 16000))
	if err != nil || hit {
		t.Errorf("Detect(silence) = %v, %v", hit, err)
	}
	if rec.CallCount() != 0 {
		t.Errorf("recognizer called %d times on silence", rec.CallCount())
	}

	hit, _ = d.Detect(context.Background(), voiced(16000))
	if !hit || rec.CallCount() != 1 {
		t.Errorf("Detect(voiced) = %v, calls=%d", hit, rec.CallCount())
	}
}

func TestTranscriptDetector_Errors(t *testing.T) {
	if _, err := NewTranscriptDetector(nil, []string{"x"}, nil, nil); !errors.Is(err, ErrNoRecognizer) {
		t.Errorf("nil recognizer err = %v", err)
	}
	if _, err := NewTranscriptDetector(stt.NewMock(""), nil, nil, nil); !errors.Is(err, ErrNoPhrases) {
		t.Errorf("no phrases err = %v", err)
	}

	boom := errors.New("boom")
	rec := &stt.Mock{TranscribeFunc: func(context.Context, []float32) (string, error) { return "", boom }}
	d, _ := NewTranscriptDetector(rec, []string{"x"}, nil, nil)
	if _, err := d.Detect(context.Background(), voiced(10)); !errors.Is(err, boom) || !errors.Is(err, ErrRecognizer) {
		t.Errorf("err = %v, want boom wrapped in ErrRecognizer", err)
	}
}

func TestEnergyDetector(t *testing.T) {
	gate, _ := vad.NewGate(vad.DefaultParams(), nil)
	d := NewEnergyDetector(gate)

	if hit, _ := d.Detect(context.Background(), voiced(16000)); !hit {
		t.Error("voiced window should wake")
	}
	if hit, _ := d.Detect(context.Background(), make([]float32, 16000)); hit {
		t.Error("silence should not wake")
	}
}

func TestMock(t *testing.T) {
	m := NewScriptedMock(false, true)
	ctx := context.Background()
	for _, want := range []bool{false, true, false} {
		if got, _ := m.Detect(ctx, nil); got != want {
			t.Errorf("Detect = %v, want %v", got, want)
		}
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount = %d", m.CallCount())
	}
}
