package tts

import (
	"context"
	"strings"
	"sync"
)

// Fake returns silence of about 20 ms per character at 16 kHz and records
// what it was asked to say. A non-nil Err fails every call.
type Fake struct {
	Err error

	mu    sync.Mutex
	texts []string
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Synthesize(ctx context.Context, text string) (*Speech, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return Silence(text, audioSampleRate), nil
}

func (f *Fake) Health(context.Context) error { return f.Err }

func (f *Fake) Close() error { return nil }

// Texts returns everything Synthesize was called with.
func (f *Fake) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// Silence is rate/50 zero samples per character of text.
func Silence(text string, rate int) *Speech {
	return &Speech{
		PCM:        make([]byte, len(text)*(rate/50)*2),
		SampleRate: rate,
		Chars:      len(text),
	}
}
