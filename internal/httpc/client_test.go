package httpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusServer answers with codes[i] on hit i and the last code afterwards.
func statusServer(t *testing.T, codes ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		i := int(hits.Add(1)) - 1
		w.WriteHeader(codes[min(i, len(codes)-1)])
		_, _ = w.Write([]byte("busy"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func get(url string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDoWithRetry_RecoversAfterServerErrors(t *testing.T) {
	srv, hits := statusServer(t, 503, 502, 200)

	resp, err := DoWithRetry(context.Background(), nil, get(srv.URL), 3, time.Millisecond)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, hits.Load())
}

func TestDoWithRetry_ExhaustedReturnsStatusError(t *testing.T) {
	srv, hits := statusServer(t, http.StatusTooManyRequests)

	_, err := DoWithRetry(context.Background(), nil, get(srv.URL), 1, time.Millisecond)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "busy", se.Body)
	assert.EqualValues(t, 2, hits.Load())
}

func TestDoWithRetry_ClientErrorsAreNotRetried(t *testing.T) {
	srv, hits := statusServer(t, http.StatusBadRequest)

	resp, err := DoWithRetry(context.Background(), nil, get(srv.URL), 3, time.Millisecond)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 1, hits.Load())
}

func TestDoWithRetry_BuildErrorStopsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := DoWithRetry(context.Background(), nil, func(context.Context) (*http.Request, error) {
		calls++
		return nil, boom
	}, 3, time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoWithRetry_ContextCancelsBackoff(t *testing.T) {
	srv, _ := statusServer(t, http.StatusServiceUnavailable)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := DoWithRetry(ctx, nil, get(srv.URL), 5, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(429))
	assert.True(t, Retryable(500))
	assert.False(t, Retryable(404))
	assert.False(t, Retryable(200))
}
