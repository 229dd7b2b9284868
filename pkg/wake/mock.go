package wake

import (
	"context"
	"sync"
)

// Mock is a Detector for tests. DetectFunc wins when set; otherwise the
// scripted results are consumed in order and false follows.
type Mock struct {
	DetectFunc func(ctx context.Context, window []float32) (bool, error)

	mu     sync.Mutex
	script []bool
	calls  int
}

func NewScriptedMock(results ...bool) *Mock {
	return &Mock{script: results}
}

func (m *Mock) Detect(ctx context.Context, window []float32) (bool, error) {
	m.mu.Lock()
	m.calls++
	fn := m.DetectFunc
	hit := false
	if fn == nil && len(m.script) > 0 {
		hit, m.script = m.script[0], m.script[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, window)
	}
	return hit, nil
}

func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) Name() string { return "mock" }
