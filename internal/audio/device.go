package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alkime/practice/pkg/collections"
	"github.com/gen2brain/malgo"
)

var (
	// ErrBackendUnavailable means no audio backend could be initialized. This
	// is what a denied or missing microphone looks like from malgo.
	ErrBackendUnavailable = errors.New("audio backend unavailable")
	// ErrDeviceUnsupported means the backend refused the requested device
	// configuration (format, rate or channel count).
	ErrDeviceUnsupported = errors.New("audio device configuration unsupported")
)

type Device interface {
	// EnumerateDevices lists available capture devices.
	// It ignores any device configuration passed in.
	EnumerateDevices(ctx context.Context) ([]Info, error)

	// Capture initializes the underlying capture device. Once Start() is
	// called, onData receives every frame buffer the driver delivers. The
	// buffer is owned by the driver and reused after onData returns.
	Capture(ctx context.Context, onData func(frame []byte)) error

	// Playback initializes the underlying playback device. Once Start() is
	// called, fill is asked to write frames into each output buffer.
	Playback(ctx context.Context, fill func(out []byte, frames int)) error

	// Start starts the audio device.
	Start(ctx context.Context) error
	// Stop stops the audio device.
	// if the underlying device has already been deallocated this is a no-op.
	Stop(ctx context.Context) error

	// Toggle starts or stops the audio device depending on its current state.
	Toggle(ctx context.Context) error

	// IsStarted returns whether the audio device is currently started.
	IsStarted() bool

	// Dealloc deallocates the underlying audio device and frees resources.
	Dealloc(ctx context.Context)
}

type device struct {
	conf *DeviceConfig

	mu       sync.Mutex
	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
}

func NewDevice(conf *DeviceConfig) Device {
	return &device{conf: conf} //nolint:exhaustruct // malgo handles allocated on Capture/Playback
}

func (d *device) EnumerateDevices(ctx context.Context) ([]Info, error) {
	// An empty context is enough for enumerating.
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize malgo context: %w", ErrBackendUnavailable, err)
	}
	defer uninitializeContext(devCtx)

	captureDevices, err := devCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	return collections.Apply(captureDevices, malgoDeviceInfoToDeviceInfo), nil
}

func (d *device) Capture(ctx context.Context, onData func(frame []byte)) error {
	if onData == nil {
		return errors.New("capture callback is nil. unable to allocate device")
	}

	callbacks := malgo.DeviceCallbacks{ //nolint:exhaustruct // only data is needed
		Data: func(_, input []byte, _ uint32) {
			onData(input)
		},
	}

	if err := d.alloc(malgo.Capture, callbacks); err != nil {
		return fmt.Errorf("failed to create malgo capture device: %w", err)
	}

	return nil
}

func (d *device) Playback(ctx context.Context, fill func(out []byte, frames int)) error {
	if fill == nil {
		return errors.New("playback callback is nil. unable to allocate device")
	}

	callbacks := malgo.DeviceCallbacks{ //nolint:exhaustruct // only data is needed
		Data: func(output, _ []byte, framecount uint32) {
			fill(output, int(framecount))
		},
	}

	if err := d.alloc(malgo.Playback, callbacks); err != nil {
		return fmt.Errorf("failed to create malgo playback device: %w", err)
	}

	return nil
}

func (d *device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice == nil {
		return errors.New("device nil. have you allocated it with Capture() or Playback()?")
	}

	if d.mgDevice.IsStarted() {
		// noop
		return nil
	}

	if err := d.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (d *device) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice == nil || !d.mgDevice.IsStarted() {
		// noop
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (d *device) Toggle(ctx context.Context) error {
	if d.IsStarted() {
		return d.Stop(ctx)
	}

	return d.Start(ctx)
}

func (d *device) Dealloc(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	uninitializeContext(d.mgCtx)
	d.mgDevice = nil
	d.mgCtx = nil
}

func (d *device) IsStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice == nil {
		return false
	}

	return d.mgDevice.IsStarted()
}

func (d *device) alloc(devType malgo.DeviceType, callbacks malgo.DeviceCallbacks) error {
	if d.conf == nil {
		return errors.New("device config is nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice != nil {
		return errors.New("device already allocated")
	}

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize malgo context: %w", ErrBackendUnavailable, err)
	}

	var devCnf malgo.DeviceConfig

	switch devType { //nolint:exhaustive // duplex and loopback are not used
	case malgo.Capture:
		devCnf = malgo.DefaultDeviceConfig(malgo.Capture)
		devCnf.Capture.Format = d.conf.Format
		devCnf.Capture.Channels = uint32(d.conf.CaptureChannels)
	case malgo.Playback:
		devCnf = malgo.DefaultDeviceConfig(malgo.Playback)
		devCnf.Playback.Format = d.conf.Format
		devCnf.Playback.Channels = uint32(d.conf.PlaybackChannels)
	default:
		uninitializeContext(mgCtx)
		return fmt.Errorf("unsupported device type: %v", devType)
	}

	devCnf.SampleRate = uint32(d.conf.SampleRate)

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callbacks)
	if err != nil {
		uninitializeContext(mgCtx)
		return fmt.Errorf("%w: failed to initialize malgo device: %w", ErrDeviceUnsupported, err)
	}

	d.mgCtx = mgCtx
	d.mgDevice = mgDevice

	return nil
}

type Info struct {
	Name        string
	IsDefault   bool
	FormatCount int
	Formats     []string
}

func malgoDeviceInfoToDeviceInfo(mdi malgo.DeviceInfo) Info {
	formats := make([]string, len(mdi.Formats))
	for i, mf := range mdi.Formats {
		formats[i] = fmt.Sprintf("(SampleSizeBytes: %d, Channels: %d, SampleRate: %d)",
			malgo.SampleSizeInBytes(mf.Format),
			mf.Channels, mf.SampleRate)
	}
	return Info{
		Name:        mdi.Name(),
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
	}
}

// DataPacket is one copied frame buffer of raw PCM bytes.
type DataPacket = []byte

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
