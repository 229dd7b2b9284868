package stt

import (
	"context"
	"sync"
	"time"
)

// Mock is an in-memory Provider. TranscribeFunc, when set, decides every
// result; otherwise scripted transcripts are returned in order and "" once
// they run out.
type Mock struct {
	TranscribeFunc func(ctx context.Context, samples []float32) (string, error)
	HealthFunc     func(ctx context.Context) error

	mu     sync.Mutex
	script []string
	calls  []MockCall
}

// MockCall is one recorded Transcribe.
type MockCall struct {
	Samples int
	Time    time.Time
}

// NewMock answers text to every call.
func NewMock(text string) *Mock {
	return &Mock{TranscribeFunc: func(context.Context, []float32) (string, error) { return text, nil }}
}

// NewScriptedMock answers each transcript once, in order.
func NewScriptedMock(transcripts ...string) *Mock {
	return &Mock{script: transcripts}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Transcribe(ctx context.Context, samples []float32) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Samples: len(samples), Time: time.Now()})
	fn := m.TranscribeFunc
	var next string
	if fn == nil && len(m.script) > 0 {
		next, m.script = m.script[0], m.script[1:]
	}
	m.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case fn != nil:
		return fn(ctx, samples)
	}
	return next, nil
}

func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error { return nil }

// Calls lists every Transcribe so far.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
