package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// MP3MimeType is the content type of StreamingEncoder output.
const MP3MimeType = "audio/mpeg"

// StreamingEncoder turns a live stream of S16LE mono packets into MP3 frames.
// Packets are batched up to the configured threshold before each encode, and
// whatever is left is flushed when the input closes or the context ends.
type StreamingEncoder struct {
	config EncoderConfig
	input  <-chan []byte
	output io.Writer

	encoder *mp3encoder.Encoder
	pending []byte
	samples atomic.Int64

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewStreamingEncoder validates the config and wires the encoder between
// input and output. Nothing is read until Start.
func NewStreamingEncoder(
	config EncoderConfig,
	input <-chan []byte,
	output io.Writer,
) (*StreamingEncoder, error) {
	if input == nil {
		return nil, errors.New("input channel cannot be nil")
	}

	if output == nil {
		return nil, errors.New("output writer cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}

	return &StreamingEncoder{ //nolint:exhaustruct // shine encoder is created on Start
		config:  config,
		input:   input,
		output:  output,
		pending: make([]byte, 0, config.BufferThreshold),
	}, nil
}

// Start launches the encode loop. It can only be called once.
func (e *StreamingEncoder) Start(ctx context.Context) error {
	if e.encoder != nil {
		return errors.New("encoder already started")
	}

	// shine-mp3 mis-advances on mono input, so frames are encoded as
	// duplicated stereo.
	e.encoder = mp3encoder.NewEncoder(e.config.SampleRate, 2)

	slog.Debug("starting MP3 encoder",
		"sampleRate", e.config.SampleRate,
		"bufferThreshold", e.config.BufferThreshold)

	e.wg.Go(func() { e.run(ctx) })

	return nil
}

func (e *StreamingEncoder) run(ctx context.Context) {
	defer func() {
		if err := e.Flush(); err != nil {
			e.setError(fmt.Errorf("failed to flush encoder on shutdown: %w", err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			e.setError(fmt.Errorf("encoder context cancelled: %w", ctx.Err()))
			return

		case pkt, ok := <-e.input:
			if !ok {
				return
			}

			e.pending = append(e.pending, pkt...)
			if len(e.pending) < e.config.BufferThreshold {
				continue
			}

			if err := e.encodePending(); err != nil {
				e.setError(err)
				return
			}
		}
	}
}

func (e *StreamingEncoder) encodePending() error {
	mono := BytesToInt16(e.pending)
	if len(mono) == 0 {
		return nil
	}

	stereo := make([]int16, 2*len(mono))
	for i, s := range mono {
		stereo[2*i] = s
		stereo[2*i+1] = s
	}

	if err := e.encoder.Write(e.output, stereo); err != nil {
		return fmt.Errorf("failed to encode audio to MP3: %w", err)
	}

	e.samples.Add(int64(len(mono)))

	// An odd trailing byte waits for the next packet.
	rest := copy(e.pending, e.pending[2*len(mono):])
	e.pending = e.pending[:rest]

	return nil
}

// Flush encodes whatever is buffered. Calling it again is a no-op.
func (e *StreamingEncoder) Flush() error {
	if err := e.encodePending(); err != nil {
		return fmt.Errorf("failed to flush MP3 encoder: %w", err)
	}

	return nil
}

// Wait blocks until the encode loop exits and returns its first error.
func (e *StreamingEncoder) Wait() error {
	e.wg.Wait()

	return e.err
}

// Samples returns the number of mono samples encoded so far.
func (e *StreamingEncoder) Samples() int64 {
	return e.samples.Load()
}

// Duration is the playing time of the encoded samples.
func (e *StreamingEncoder) Duration() time.Duration {
	return time.Duration(e.Samples()) * time.Second / time.Duration(e.config.SampleRate)
}

func (e *StreamingEncoder) setError(err error) {
	e.errOnce.Do(func() {
		e.err = err
		slog.Debug("streaming encoder error", "error", err)
	})
}
