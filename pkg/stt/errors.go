package stt

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingKey = errors.New("stt: no api key or credentials")
	ErrMissingURL = errors.New("stt: server url missing")
	ErrSampleRate = errors.New("stt: sample rate must be positive")
)

// BackendError attributes a recognition failure to a backend. Status is the
// HTTP status when the server answered, 0 otherwise.
type BackendError struct {
	Backend string
	Status  int
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("stt %s: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("stt %s: status %d: %v", e.Backend, e.Status, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Temporary reports throttling and server faults.
func (e *BackendError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func failed(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}
