package device

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	mu      sync.Mutex
	written bytes.Buffer
	reply   []byte
	drains  int
	block   chan struct{}
	closed  bool
	// wait is the read timeout; an empty read blocks this long like a
	// silent board would.
	wait time.Duration
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	n := copy(b, p.reply)
	p.reply = p.reply[n:]
	wait := p.wait
	p.mu.Unlock()
	if n == 0 {
		time.Sleep(wait)
	}
	return n, nil
}

func (p *fakePort) Drain() error {
	p.mu.Lock()
	p.drains++
	p.mu.Unlock()
	return nil
}

func (p *fakePort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	p.wait = d
	p.mu.Unlock()
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePort) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func TestCommands(t *testing.T) {
	cmd, err := BlinkCommand(Both)
	require.NoError(t, err)
	assert.Equal(t, Command("BLINK B"), cmd)

	cmd, err = AnimateCommand(Left, KindThinking, 0.5, 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Command("ANIM L thinking 0.50 1500"), cmd)

	cmd, err = AnimateCommand(Right, KindListening, 3, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, Command("ANIM R listening 1.00 0"), cmd)

	_, err = BlinkCommand("X")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = AnimateCommand(Both, "two words", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestParseTarget(t *testing.T) {
	for in, want := range map[string]Target{"L": Left, "left": Left, "r": Right, "Both": Both, "": Both} {
		got, err := ParseTarget(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTarget("up")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestSerial_WritesLines(t *testing.T) {
	port := &fakePort{reply: []byte("OK\n")}
	s, err := NewSerialWithPort(port, SerialConfig{Timeout: 200 * time.Millisecond}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Blink(context.Background(), Both))
	require.NoError(t, s.Animate(context.Background(), Left, KindSpeaking, 0.8, 2*time.Second))

	assert.Equal(t, "BLINK B\nANIM L speaking 0.80 2000\n", port.String())
	assert.Equal(t, 2, port.drains)
}

func TestSerial_TimeoutDropsCommand(t *testing.T) {
	port := &fakePort{block: make(chan struct{})}
	s, err := NewSerialWithPort(port, SerialConfig{Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	start := time.Now()
	err = s.Blink(context.Background(), Both)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	// still blocked on the port
	assert.ErrorIs(t, s.Blink(context.Background(), Both), ErrBusy)

	close(port.block)
	assert.Eventually(t, func() bool {
		return s.Blink(context.Background(), Left) == nil
	}, time.Second, 10*time.Millisecond)
}

func TestSerial_SilentBoardDoesNotStallCommands(t *testing.T) {
	port := &fakePort{}
	s, err := NewSerialWithPort(port, SerialConfig{Timeout: 200 * time.Millisecond}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultReplyTimeout, port.wait)

	start := time.Now()
	for range 5 {
		require.NoError(t, s.Blink(context.Background(), Both))
	}
	assert.Less(t, time.Since(start), 600*time.Millisecond)
	assert.Equal(t, strings.Repeat("BLINK B\n", 5), port.String())
}

func TestSerial_LateReplyIsNotADrop(t *testing.T) {
	port := &fakePort{}
	s, err := NewSerialWithPort(port, SerialConfig{Timeout: 80 * time.Millisecond, ReplyTimeout: time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, 80*time.Millisecond, port.wait)

	assert.NoError(t, s.Blink(context.Background(), Both))
	assert.Equal(t, "BLINK B\n", port.String())
}

func TestSerial_CancelledContext(t *testing.T) {
	port := &fakePort{block: make(chan struct{})}
	defer close(port.block)
	s, err := NewSerialWithPort(port, SerialConfig{Timeout: time.Second}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Blink(ctx, Both), context.Canceled)
}

func TestSerial_Close(t *testing.T) {
	port := &fakePort{}
	s, err := NewSerialWithPort(port, SerialConfig{}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, port.closed)
	assert.ErrorIs(t, s.Blink(context.Background(), Both), ErrClosed)
}

func TestHTTP(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/daemon/status" {
			_, _ = w.Write([]byte(`{"state":"running"}`))
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, body)
		mu.Unlock()
	}))
	defer srv.Close()

	h, err := NewHTTP(HTTPConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	require.NoError(t, h.Blink(context.Background(), Right))
	require.NoError(t, h.Animate(context.Background(), Both, KindIdle, 0.25, 300*time.Millisecond))

	require.Equal(t, []string{"/api/eyes/blink", "/api/eyes/animate"}, paths)
	assert.Equal(t, "R", bodies[0]["target"])
	assert.Equal(t, "idle", bodies[1]["kind"])
	assert.InDelta(t, 0.25, bodies[1]["intensity"], 1e-9)
	assert.InDelta(t, 300, bodies[1]["duration_ms"], 1e-9)

	state, err := h.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "running", state)
}

func TestHTTP_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "eyes offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h, err := NewHTTP(HTTPConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	err = h.Blink(context.Background(), Both)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = NewHTTP(HTTPConfig{}, nil)
	assert.Error(t, err)

	h, err = NewHTTP(HTTPConfig{BaseURL: "192.168.1.20"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:8000", h.BaseURL())
}

func TestMockAndFactory(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Blink(context.Background(), Both))
	require.NoError(t, m.Animate(context.Background(), Left, KindThinking, 1, time.Second))
	assert.Equal(t, 1, m.CallCount("Blink"))
	assert.Equal(t, 2, m.CallCount(""))
	assert.Equal(t, KindThinking, m.Calls()[1].Kind)
	m.Reset()
	assert.Zero(t, m.CallCount(""))

	d, err := New(Config{Backend: BackendNone}, nil)
	require.NoError(t, err)
	assert.Equal(t, "nop", d.Name())

	d, err = New(Config{Backend: BackendMock}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", d.Name())

	_, err = New(Config{Backend: "laser"}, nil)
	assert.Error(t, err)
}
