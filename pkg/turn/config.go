package turn

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-robo/pkg/device"
	"github.com/teslashibe/go-robo/pkg/wake"
)

// Config holds the loop timings. It is read once at construction.
type Config struct {
	// WakeWindow is how much audio each wake and VAD check looks at.
	WakeWindow time.Duration `yaml:"wake_window"`

	// CaptureWindow is how much audio is handed to the recognizer.
	CaptureWindow time.Duration `yaml:"capture_window"`

	// CaptureDelay is waited after voice is confirmed so the utterance
	// lands in the buffer before the capture window is read.
	CaptureDelay time.Duration `yaml:"capture_delay"`

	// ArmedTimeout returns an armed loop to IDLE when no voice follows.
	ArmedTimeout time.Duration `yaml:"armed_timeout"`

	// SettleDelay is waited after a wake so the phrase itself is not
	// taken for speech.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// PollInterval paces IDLE and ARMED polling.
	PollInterval time.Duration `yaml:"poll_interval"`

	IdleInterval           time.Duration `yaml:"idle_interval"`
	SuppressBlinkWhileBusy bool          `yaml:"suppress_blink_while_busy"`
	BlinkTarget            device.Target `yaml:"blink_target"`
	AnimationIntensity     float64       `yaml:"animation_intensity"`
	AnimationDuration      time.Duration `yaml:"animation_duration"`

	WakeTimeout      time.Duration `yaml:"wake_timeout"`
	RecognizeTimeout time.Duration `yaml:"recognize_timeout"`
	GenerateTimeout  time.Duration `yaml:"generate_timeout"`
	SpeakTimeout     time.Duration `yaml:"speak_timeout"`
	DeviceTimeout    time.Duration `yaml:"device_timeout"`
	NotifyTimeout    time.Duration `yaml:"notify_timeout"`

	// WakePhrases are stripped from the echoed transcript.
	WakePhrases []string `yaml:"-"`
}

// DefaultConfig returns the stock loop timings.
func DefaultConfig() Config {
	return Config{
		WakeWindow:         2000 * time.Millisecond,
		CaptureWindow:      6000 * time.Millisecond,
		CaptureDelay:       3 * time.Second,
		ArmedTimeout:       8 * time.Second,
		SettleDelay:        0,
		PollInterval:       100 * time.Millisecond,
		IdleInterval:       5 * time.Second,
		BlinkTarget:        device.Both,
		AnimationIntensity: 1,
		AnimationDuration:  time.Second,
		WakeTimeout:        3 * time.Second,
		RecognizeTimeout:   30 * time.Second,
		GenerateTimeout:    60 * time.Second,
		SpeakTimeout:       30 * time.Second,
		DeviceTimeout:      device.DefaultTimeout,
		NotifyTimeout:      2 * time.Second,
		WakePhrases:        []string{wake.DefaultPhrase},
	}
}

// Validate checks the windows and timeouts.
func (c Config) Validate() error {
	var errs []error
	for _, d := range []struct {
		name     string
		value    time.Duration
		zeroOkay bool
	}{
		{"wake_window", c.WakeWindow, false},
		{"capture_window", c.CaptureWindow, false},
		{"armed_timeout", c.ArmedTimeout, false},
		{"recognize_timeout", c.RecognizeTimeout, false},
		{"generate_timeout", c.GenerateTimeout, false},
		{"speak_timeout", c.SpeakTimeout, false},
		{"device_timeout", c.DeviceTimeout, false},
		{"capture_delay", c.CaptureDelay, true},
		{"settle_delay", c.SettleDelay, true},
		{"poll_interval", c.PollInterval, true},
		{"idle_interval", c.IdleInterval, true},
	} {
		switch {
		case d.value < 0:
			errs = append(errs, fmt.Errorf("turn: %s must not be negative", d.name))
		case d.value == 0 && !d.zeroOkay:
			errs = append(errs, fmt.Errorf("turn: %s must be positive", d.name))
		}
	}
	if c.BlinkTarget != "" && !c.BlinkTarget.Valid() {
		errs = append(errs, fmt.Errorf("turn: blink_target: %w", device.ErrInvalidTarget))
	}
	return errors.Join(errs...)
}
