package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teslashibe/go-robo/internal/httpc"
)

var (
	ErrMissingKey   = errors.New("tts: api key missing")
	ErrMissingVoice = errors.New("tts: voice missing")
	ErrEmptyText    = errors.New("tts: nothing to say")
	ErrSampleRate   = errors.New("tts: unsupported sample rate")
)

// BackendError attributes a failure to a backend. Status is the HTTP status
// when the backend answered, 0 otherwise.
type BackendError struct {
	Backend string
	Status  int
	Code    string
	Err     error
}

func (e *BackendError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("tts %s: %v", e.Backend, e.Err)
	case e.Code != "":
		return fmt.Sprintf("tts %s: status %d (%s): %v", e.Backend, e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("tts %s: status %d: %v", e.Backend, e.Status, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Temporary reports throttling and server faults.
func (e *BackendError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Rejected reports a missing or refused credential, or an exhausted quota.
func (e *BackendError) Rejected() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func failed(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}

// refusal reads the OpenAI ({"error": ...}) and ElevenLabs ({"detail": ...})
// error bodies.
func refusal(backend string, status int, r io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(r, 8<<10))
	var body struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}
	e := &BackendError{Backend: backend, Status: status}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error.Message != "":
			msg, e.Code = body.Error.Message, body.Error.Code
		case body.Detail.Message != "":
			msg, e.Code = body.Detail.Message, body.Detail.Status
		}
	}
	e.Err = errors.New(msg)
	return e
}

// retryFailure keeps the status of the last throttled attempt.
func retryFailure(backend string, err error) error {
	var se *httpc.StatusError
	if errors.As(err, &se) {
		return refusal(backend, se.StatusCode, strings.NewReader(se.Body))
	}
	return failed(backend, err)
}
