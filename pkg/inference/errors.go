package inference

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingKey      = errors.New("inference: api key missing")
	ErrMissingModel    = errors.New("inference: model missing")
	ErrNoBackends      = errors.New("inference: no backends configured")
	ErrEmptyCompletion = errors.New("inference: completion has no text")
	ErrExhausted       = errors.New("inference: every backend failed")
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
		return fmt.Sprintf("%s: %v", e.Backend, e.Err)
	case e.Code != "":
		return fmt.Sprintf("%s: status %d (%s): %v", e.Backend, e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Backend, e.Status, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Temporary reports throttling and server faults.
func (e *BackendError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Rejected reports a missing or refused credential.
func (e *BackendError) Rejected() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func failed(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}

func refused(backend string, status int, code, message string) error {
	return &BackendError{Backend: backend, Status: status, Code: code, Err: errors.New(message)}
}
