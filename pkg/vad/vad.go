// Package vad decides whether a window of PCM audio contains speech.
//
// The check is a band-energy test: the window is high-pass filtered at the
// frequency threshold to drop hum and DC offset, split into short frames, and
// declared voiced when the longest run of frames whose mean absolute
// amplitude exceeds the energy threshold lasts at least the minimum speech
// run. Analyze and Detect are pure: they work on a copy of the input and keep
// no state between calls.
package vad

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Params configures one gate decision.
type Params struct {
	// SampleRate of the samples in Hz.
	SampleRate int `yaml:"sample_rate"`

	// MinSpeech is the minimum run of voiced frames.
	MinSpeech time.Duration `yaml:"min_speech"`

	// EnergyThreshold is the per-frame mean absolute amplitude (float PCM in
	// [-1, 1]) a frame must exceed to count as voiced.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// FreqThreshold is the high-pass cutoff in Hz. Zero disables filtering.
	FreqThreshold float64 `yaml:"freq_threshold"`

	// Frame is the analysis frame length.
	Frame time.Duration `yaml:"frame"`

	// Diagnostic logs the frame energies of every decision at debug level.
	Diagnostic bool `yaml:"diagnostic"`
}

// DefaultParams returns defaults tuned for a close-talking robot microphone.
func DefaultParams() Params {
	return Params{
		SampleRate:      16000,
		MinSpeech:       250 * time.Millisecond,
		EnergyThreshold: 0.015,
		FreqThreshold:   100,
		Frame:           10 * time.Millisecond,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("vad: sample_rate must be positive, got %d", p.SampleRate)
	}
	if p.Frame <= 0 {
		return fmt.Errorf("vad: frame must be positive, got %v", p.Frame)
	}
	if p.MinSpeech < p.Frame {
		return fmt.Errorf("vad: min_speech %v shorter than one frame (%v)", p.MinSpeech, p.Frame)
	}
	if p.EnergyThreshold <= 0 {
		return fmt.Errorf("vad: energy_threshold must be positive, got %v", p.EnergyThreshold)
	}
	if p.FreqThreshold < 0 || p.FreqThreshold >= float64(p.SampleRate)/2 {
		return fmt.Errorf("vad: freq_threshold %v outside [0, %d)", p.FreqThreshold, p.SampleRate/2)
	}
	return nil
}

// Result describes one decision.
type Result struct {
	Voiced     bool
	Frames     int
	LongestRun time.Duration
	MeanEnergy float64
	PeakEnergy float64
}

// Analyze runs the gate and returns the decision with its statistics.
func Analyze(samples []float32, p Params) Result {
	frameLen := int(float64(p.SampleRate) * p.Frame.Seconds())
	if frameLen <= 0 || len(samples) < frameLen {
		return Result{}
	}

	filtered := HighPass(samples, p.FreqThreshold, p.SampleRate)
	frames := len(filtered) / frameLen
	minFrames := int(math.Ceil(float64(p.MinSpeech) / float64(p.Frame)))

	var (
		res       = Result{Frames: frames}
		run, best int
		sumEnergy float64
	)
	for f := 0; f < frames; f++ {
		var sum float64
		for _, s := range filtered[f*frameLen : (f+1)*frameLen] {
			sum += math.Abs(float64(s))
		}
		energy := sum / float64(frameLen)
		sumEnergy += energy
		if energy > res.PeakEnergy {
			res.PeakEnergy = energy
		}

		if energy > p.EnergyThreshold {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}

	res.MeanEnergy = sumEnergy / float64(frames)
	res.LongestRun = time.Duration(best) * p.Frame
	res.Voiced = minFrames > 0 && best >= minFrames
	return res
}

// Detect reports whether samples contain speech.
func Detect(samples []float32, p Params) bool {
	res := Analyze(samples, p)
	if p.Diagnostic {
		logResult(slog.Default(), res, p)
	}
	return res.Voiced
}

// HighPass returns a first-order high-pass filtered copy of samples.
// A non-positive cutoff returns an unfiltered copy.
func HighPass(samples []float32, cutoff float64, sampleRate int) []float32 {
	out := make([]float32, len(samples))
	if cutoff <= 0 || sampleRate <= 0 {
		copy(out, samples)
		return out
	}

	rc := 1.0 / (2 * math.Pi * cutoff)
	dt := 1.0 / float64(sampleRate)
	alpha := rc / (rc + dt)

	var y float64
	for i := 1; i < len(samples); i++ {
		y = alpha * (y + float64(samples[i]) - float64(samples[i-1]))
		out[i] = float32(y)
	}
	return out
}

// Gate binds Params to a logger so callers can hold one value.
type Gate struct {
	params Params
	logger *slog.Logger
}

// NewGate creates a gate. Invalid parameters are rejected.
func NewGate(p Params, logger *slog.Logger) (*Gate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{params: p, logger: logger.With("component", "vad")}, nil
}

// Params returns the gate parameters.
func (g *Gate) Params() Params {
	return g.params
}

// Detect reports whether samples contain speech.
func (g *Gate) Detect(samples []float32) bool {
	res := Analyze(samples, g.params)
	if g.params.Diagnostic {
		logResult(g.logger, res, g.params)
	}
	return res.Voiced
}

func logResult(logger *slog.Logger, res Result, p Params) {
	logger.Debug("vad decision",
		"voiced", res.Voiced,
		"frames", res.Frames,
		"longest_run_ms", res.LongestRun.Milliseconds(),
		"min_speech_ms", p.MinSpeech.Milliseconds(),
		"mean_energy", res.MeanEnergy,
		"peak_energy", res.PeakEnergy,
		"threshold", p.EnergyThreshold,
	)
}
