//go:build malgo

package audioio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
)

const malgoAvailable = true

// MalgoSource captures PCM16 through miniaudio. The device callback runs on
// a miniaudio thread and only ever offers chunks to the current run.
type MalgoSource struct {
	*feed
	cfg    Config
	logger *slog.Logger

	mctx   *malgo.AllocatedContext
	device *malgo.Device
	ch     chan AudioChunk
}

func newMalgoSource(cfg Config, logger *slog.Logger) (Source, error) {
	return &MalgoSource{
		feed:   newFeed(),
		cfg:    cfg,
		logger: logger.With("component", "audioio.malgo"),
	}, nil
}

func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok, err := s.begin(32)
	if !ok {
		return err
	}

	if err := s.open(ch); err != nil {
		s.active = false
		close(ch)
		return err
	}
	s.ch = ch

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()
	s.logger.Info("capture device started", "sample_rate", s.cfg.SampleRate, "channels", s.cfg.Channels)
	return nil
}

func (s *MalgoSource) open(ch chan AudioChunk) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		s.logger.Debug("miniaudio", "message", msg)
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = uint32(s.cfg.Channels)
	dc.SampleRate = uint32(s.cfg.SampleRate)
	dc.Alsa.NoMMap = 1

	onData := func(_, in []byte, _ uint32) {
		s.offer(ch, NewChunk(in, s.cfg.SampleRate, s.cfg.Channels))
	}
	dev, err := malgo.InitDevice(mctx.Context, dc, malgo.DeviceCallbacks{Data: onData})
	if err == nil {
		if err = dev.Start(); err != nil {
			dev.Uninit()
		}
	}
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("capture device: %w", err)
	}
	s.mctx, s.device = mctx, dev
	return nil
}

// Stop releases the device and closes the run's stream.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil
	}
	err := s.device.Stop()
	s.device.Uninit()
	_ = s.mctx.Uninit()
	s.mctx.Free()
	s.device, s.mctx = nil, nil

	close(s.ch)
	s.active = false
	return err
}

func (s *MalgoSource) Stream() <-chan AudioChunk { return s.current() }

func (s *MalgoSource) Name() string { return string(BackendMalgo) }

func (s *MalgoSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}
