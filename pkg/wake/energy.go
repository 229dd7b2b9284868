package wake

import (
	"context"

	"github.com/teslashibe/go-robo/pkg/vad"
)

// EnergyDetector treats any voiced window as a wake.
type EnergyDetector struct {
	gate *vad.Gate
}

// NewEnergyDetector wraps a VAD gate.
func NewEnergyDetector(gate *vad.Gate) *EnergyDetector {
	return &EnergyDetector{gate: gate}
}

// Detect reports whether the window is voiced.
func (d *EnergyDetector) Detect(ctx context.Context, window []float32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return d.gate.Detect(window), nil
}

// Name returns "energy".
func (d *EnergyDetector) Name() string { return "energy" }
