// Package capture owns the microphone while a take is being recorded. Two
// engines exist: a raw PCM engine that finishes into a WAV container, and a
// chunked engine that streams compressed frames. A probing engine picks one
// at Start so callers never branch on which is active.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alkime/practice/internal/audio"
)

var (
	// ErrPermission means the microphone could not be opened at all. The
	// attempt is fully torn down and the user has to retry.
	ErrPermission = errors.New("cannot access microphone")
	// ErrCapability means the requested capture path is not available on
	// this device. The probing engine recovers from it with the fallback.
	ErrCapability = errors.New("capture path unavailable")

	ErrNotCapturing     = errors.New("not capturing")
	ErrAlreadyCapturing = errors.New("already capturing")
)

// Result is a finished take.
type Result struct {
	Data     []byte
	MimeType string
	Duration time.Duration
}

type Engine interface {
	// Start opens the microphone and begins accumulating frames.
	Start(ctx context.Context) error
	// Stop tears the capture down and returns the encoded take.
	Stop(ctx context.Context) (Result, error)
	// Discard tears the capture down and drops everything accumulated.
	Discard(ctx context.Context)
	Active() bool
	// Levels returns the most recent input samples for a level meter.
	Levels() []int16
}

// Stream is an opened capture device.
type Stream interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Dealloc(ctx context.Context)
}

// Backend opens capture streams. onData receives each driver buffer, which is
// reused by the driver once onData returns.
type Backend interface {
	OpenCapture(ctx context.Context, cfg audio.DeviceConfig, onData func(frame []byte)) (Stream, error)
}

// MalgoBackend opens capture streams on the system default input device.
type MalgoBackend struct{}

func (MalgoBackend) OpenCapture(
	ctx context.Context,
	cfg audio.DeviceConfig,
	onData func(frame []byte),
) (Stream, error) {
	dev := audio.NewDevice(&cfg)

	if err := dev.Capture(ctx, onData); err != nil {
		if errors.Is(err, audio.ErrDeviceUnsupported) {
			return nil, fmt.Errorf("%w: %w", ErrCapability, err)
		}

		return nil, fmt.Errorf("%w: %w", ErrPermission, err)
	}

	return dev, nil
}

// openAndStart opens a stream and starts it, deallocating on any failure.
func openAndStart(
	ctx context.Context,
	backend Backend,
	cfg audio.DeviceConfig,
	onData func(frame []byte),
) (Stream, error) {
	stream, err := backend.OpenCapture(ctx, cfg, onData)
	if err != nil {
		return nil, err
	}

	if err := stream.Start(ctx); err != nil {
		stream.Dealloc(ctx)
		return nil, fmt.Errorf("%w: failed to start capture device: %w", ErrPermission, err)
	}

	return stream, nil
}

func teardown(ctx context.Context, stream Stream) error {
	err := stream.Stop(ctx)
	stream.Dealloc(ctx)

	if err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	return nil
}
