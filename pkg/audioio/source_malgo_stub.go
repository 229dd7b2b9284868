//go:build !malgo

package audioio

import (
	"errors"
	"log/slog"
)

const malgoAvailable = false

// ErrMalgoUnavailable is returned for BackendMalgo in builds without the
// "malgo" tag.
var ErrMalgoUnavailable = errors.New("audioio: malgo backend not compiled in (build with -tags malgo)")

func newMalgoSource(Config, *slog.Logger) (Source, error) {
	return nil, ErrMalgoUnavailable
}
