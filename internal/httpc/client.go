// Package httpc holds the HTTP client setup and retry loop shared by the
// recognizer, inference and synthesis backends.
package httpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout = 5 * time.Second
	keepAlive   = 30 * time.Second
	idleTimeout = 90 * time.Second

	// errorBodyLimit caps how much of a failed response is kept.
	errorBodyLimit = 4 << 10
)

// Client is used when a caller passes a nil client to DoWithRetry.
var Client = NewClient(30 * time.Second)

// NewClient returns a client with the given overall request timeout and a
// small keep-alive pool; the backends talk to one or two hosts each.
func NewClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       idleTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// RequestFunc builds the request for one attempt. It is called once per
// attempt so request bodies are fresh every time.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// StatusError carries the last retryable response once attempts run out.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// Retryable is true for 429 and every 5xx.
func Retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// DoWithRetry makes up to retries+1 attempts. Transport failures and
// Retryable statuses are retried after delay, 2*delay, 3*delay and so on.
// Any other response is returned with its body unread.
func DoWithRetry(ctx context.Context, client *http.Client, build RequestFunc, retries int, delay time.Duration) (*http.Response, error) {
	if client == nil {
		client = Client
	}
	var last error
	for n := range retries + 1 {
		if n > 0 {
			if err := sleep(ctx, time.Duration(n)*delay); err != nil {
				return nil, err
			}
		}
		resp, err := attempt(ctx, client, build)
		switch {
		case err == nil:
			return resp, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case isBuildError(err):
			return nil, err
		}
		last = err
	}
	return nil, last
}

type buildError struct{ err error }

func (e buildError) Error() string { return "build request: " + e.err.Error() }
func (e buildError) Unwrap() error { return e.err }

func isBuildError(err error) bool {
	_, ok := err.(buildError)
	return ok
}

func attempt(ctx context.Context, client *http.Client, build RequestFunc) (*http.Response, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, buildError{err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if !Retryable(resp.StatusCode) {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
