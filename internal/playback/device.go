package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/alkime/practice/internal/audio"
	"github.com/gopxl/beep/v2"
)

// DevicePlayer decodes a source with beep and plays it on the default
// output device through malgo.
type DevicePlayer struct {
	device  audio.Device
	format  beep.Format
	onEnded func()
	ready   chan struct{}

	mu      sync.Mutex
	stream  beep.StreamSeekCloser
	ctrl    *beep.Ctrl
	buf     [][2]float64
	started bool
	closed  bool
}

// NewDevicePlayerFactory builds DevicePlayers. Remote sources are fetched
// with client before decoding.
func NewDevicePlayerFactory(client *http.Client) Factory {
	return FactoryFunc(func(ctx context.Context, src Source, h Handlers) (Player, error) {
		data, mimeType := src.Data, src.MimeType

		if len(data) == 0 {
			var err error

			data, mimeType, err = Fetch(ctx, client, src.URL)
			if err != nil {
				return nil, err
			}
		}

		return NewDevicePlayer(data, mimeType, h)
	})
}

func NewDevicePlayer(data []byte, mimeType string, h Handlers) (*DevicePlayer, error) {
	stream, format, err := audio.DecodeStream(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}

	conf := audio.StereoPlayback(int(format.SampleRate))

	p := &DevicePlayer{
		device:  audio.NewDevice(&conf),
		format:  format,
		onEnded: h.OnEnded,
		ready:   make(chan struct{}),
		mu:      sync.Mutex{},
		stream:  stream,
		ctrl:    &beep.Ctrl{Streamer: stream, Paused: true},
		buf:     nil,
		started: false,
		closed:  false,
	}

	// Fully decoded streams know their length up front.
	close(p.ready)

	if err := p.device.Playback(context.Background(), p.fill); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to open playback device: %w", err)
	}

	return p, nil
}

// fill runs on the audio thread. It writes interleaved float32 stereo.
func (p *DevicePlayer) fill(out []byte, frames int) {
	p.mu.Lock()

	if cap(p.buf) < frames {
		p.buf = make([][2]float64, frames)
	}

	buf := p.buf[:frames]
	n := 0
	ended := false

	if !p.closed && !p.ctrl.Paused {
		var ok bool

		n, ok = p.ctrl.Stream(buf)
		if !ok || n < frames {
			ended = p.stream.Position() >= p.stream.Len()
		}
	}

	if ended {
		p.ctrl.Paused = true
	}

	p.mu.Unlock()

	for i := range frames {
		var l, r float32
		if i < n {
			l, r = float32(buf[i][0]), float32(buf[i][1])
		}

		binary.LittleEndian.PutUint32(out[i*8:], math.Float32bits(l))
		binary.LittleEndian.PutUint32(out[i*8+4:], math.Float32bits(r))
	}

	if ended && p.onEnded != nil {
		go p.onEnded()
	}
}

func (p *DevicePlayer) Play() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return errors.New("player closed")
	}

	if p.stream.Position() >= p.stream.Len() {
		if err := p.stream.Seek(0); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("failed to rewind: %w", err)
		}
	}

	p.ctrl.Paused = false
	started := p.started
	p.started = true
	p.mu.Unlock()

	if started {
		return nil
	}

	if err := p.device.Start(context.Background()); err != nil {
		p.mu.Lock()
		p.ctrl.Paused = true
		p.started = false
		p.mu.Unlock()

		return fmt.Errorf("failed to start playback: %w", err)
	}

	return nil
}

func (p *DevicePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctrl.Paused = true
}

func (p *DevicePlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ctrl.Paused
}

func (p *DevicePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.format.SampleRate.D(p.stream.Position())
}

func (p *DevicePlayer) Duration() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.format.SampleRate.D(p.stream.Len()), true
}

func (p *DevicePlayer) Ready() <-chan struct{} {
	return p.ready
}

func (p *DevicePlayer) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := min(max(p.format.SampleRate.N(pos), 0), p.stream.Len())
	if err := p.stream.Seek(n); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

func (p *DevicePlayer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}

	p.closed = true
	p.ctrl.Paused = true
	p.mu.Unlock()

	if err := p.device.Stop(context.Background()); err != nil {
		return err //nolint:wrapcheck // device errors carry context
	}

	p.device.Dealloc(context.Background())

	if err := p.stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}

	return nil
}
