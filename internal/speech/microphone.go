package speech

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

var _ domain.Microphone = (*Microphone)(nil)

// Microphone checks that a capture device can be opened. Opening and
// immediately closing the default device is the terminal equivalent of a
// permission prompt: it fails when no device exists or the OS denies
// access.
type Microphone struct {
	log *logger.Logger
}

// NewMicrophone creates a microphone probe.
func NewMicrophone(log *logger.Logger) *Microphone {
	return &Microphone{log: log}
}

// Request opens the default capture device and releases it. Any failure
// is reported as domain.ErrMicrophoneDenied.
func (m *Microphone) Request(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(_ string) {})
	if err != nil {
		return fmt.Errorf("%w: audio context: %v", domain.ErrMicrophoneDenied, err)
	}
	defer func() { _ = mCtx.Uninit(); mCtx.Free() }()

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = 16000
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mCtx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_ []byte, _ []byte, _ uint32) {},
	})
	if err != nil {
		return fmt.Errorf("%w: open capture device: %v", domain.ErrMicrophoneDenied, err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("%w: start capture: %v", domain.ErrMicrophoneDenied, err)
	}
	_ = device.Stop()

	m.log.Debug("microphone: capture device available")
	return nil
}

// Granted is a Microphone that always allows access. Used when recognition
// runs on typed input.
type Granted struct{}

// Request always succeeds.
func (Granted) Request(context.Context) error { return nil }
