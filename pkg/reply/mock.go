package reply

import (
	"context"
	"sync"
)

// Mock implements Generator for testing.
type Mock struct {
	// GenerateFunc is called when Generate is invoked. If nil, echoes.
	GenerateFunc func(ctx context.Context, text string) (string, error)

	mu     sync.Mutex
	inputs []string
}

// NewMock returns a mock that always answers reply.
func NewMock(reply string) *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, text string) (string, error) {
			return reply, nil
		},
	}
}

// Generate records the input and delegates to GenerateFunc.
func (m *Mock) Generate(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, text)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, text)
	}
	return text, nil
}

// Inputs returns the transcripts Generate received.
func (m *Mock) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// CallCount returns the number of Generate calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}
