package capture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/practice/internal/audio"
	"github.com/alkime/practice/pkg/channels"
	"github.com/gen2brain/malgo"
)

const (
	packetSendTimeout  = 10 * time.Millisecond
	encoderSendTimeout = 100 * time.Millisecond
)

// ChunkedEngine captures 16-bit frames and streams them through the MP3
// encoder while recording, so Stop only has to flush the last batch.
type ChunkedEngine struct {
	backend Backend
	config  audio.EncoderConfig
	levels  *audio.SampleRingBuffer

	mu   sync.Mutex
	sess *chunkedSession
}

type chunkedSession struct {
	stream    Stream
	live      *atomic.Bool
	cancel    context.CancelFunc
	fanout    *channels.Broadcaster[audio.DataPacket]
	encoderCh chan audio.DataPacket
	levelCh   chan audio.DataPacket
	encoder   *audio.StreamingEncoder
	output    *bytes.Buffer
	meterDone chan struct{}
}

func NewChunkedEngine(backend Backend, sampleRate int) *ChunkedEngine {
	config := audio.EncoderConfig{SampleRate: sampleRate}.WithDefaults() //nolint:exhaustruct // defaults fill the rest

	return &ChunkedEngine{ //nolint:exhaustruct // session set on Start
		backend: backend,
		config:  config,
		levels:  audio.NewSampleRingBuffer(config.SampleRate),
	}
}

func (e *ChunkedEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil {
		return ErrAlreadyCapturing
	}

	if err := e.config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCapability, err)
	}

	sess, err := e.open(ctx)
	if err != nil {
		return err
	}

	e.sess = sess

	slog.Debug("chunked capture started", "sampleRate", e.config.SampleRate)

	return nil
}

func (e *ChunkedEngine) open(ctx context.Context) (*chunkedSession, error) {
	fanout := channels.NewBroadcaster[audio.DataPacket]()
	encoderCh := make(chan audio.DataPacket, 64)
	levelCh := make(chan audio.DataPacket, 16)

	if err := fanout.SubscribeWithTimeout(encoderCh, encoderSendTimeout); err != nil {
		return nil, fmt.Errorf("failed to subscribe encoder: %w", err)
	}

	if err := fanout.Subscribe(levelCh); err != nil {
		return nil, fmt.Errorf("failed to subscribe level meter: %w", err)
	}

	// The session outlives the caller's context; Stop or Discard ends it.
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	input, err := fanout.Run(sessCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start packet fan-out: %w", err)
	}

	output := &bytes.Buffer{}

	encoder, err := audio.NewStreamingEncoder(e.config, encoderCh, output)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	if err := encoder.Start(context.WithoutCancel(ctx)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}

	meterDone := make(chan struct{})

	go func() {
		defer close(meterDone)

		for pkt := range levelCh {
			e.levels.Write(audio.BytesToInt16(pkt))
		}
	}()

	live := &atomic.Bool{}
	live.Store(true)

	onData := func(frame []byte) {
		if !live.Load() || len(frame) == 0 {
			return
		}

		pkt := make(audio.DataPacket, len(frame))
		copy(pkt, frame)

		if err := channels.SendWithTimeout(input, pkt, packetSendTimeout); err != nil {
			slog.Debug("dropped capture packet", "error", err)
		}
	}

	sess := &chunkedSession{
		live:      live,
		cancel:    cancel,
		fanout:    fanout,
		encoderCh: encoderCh,
		levelCh:   levelCh,
		encoder:   encoder,
		output:    output,
		meterDone: meterDone,
		stream:    nil,
	}

	stream, err := openAndStart(ctx, e.backend, audio.MonoCapture(malgo.FormatS16, e.config.SampleRate), onData)
	if err != nil {
		sess.close()
		return nil, err
	}

	sess.stream = stream

	return sess, nil
}

func (e *ChunkedEngine) Stop(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess == nil {
		return Result{}, ErrNotCapturing
	}

	sess := e.sess
	e.sess = nil

	if err := teardown(ctx, sess.stream); err != nil {
		slog.Warn("chunked capture teardown", "error", err)
	}

	if err := sess.close(); err != nil {
		return Result{}, fmt.Errorf("failed to finish encoding: %w", err)
	}

	slog.Debug("chunked capture stopped", "samples", sess.encoder.Samples(), "bytes", sess.output.Len())

	return Result{
		Data:     sess.output.Bytes(),
		MimeType: audio.MP3MimeType,
		Duration: sess.encoder.Duration(),
	}, nil
}

func (e *ChunkedEngine) Discard(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess == nil {
		return
	}

	sess := e.sess
	e.sess = nil

	if err := teardown(ctx, sess.stream); err != nil {
		slog.Warn("chunked capture teardown", "error", err)
	}

	if err := sess.close(); err != nil {
		slog.Debug("discarded take had encoder error", "error", err)
	}
}

func (e *ChunkedEngine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sess != nil
}

func (e *ChunkedEngine) Levels() []int16 {
	return e.levels.Read()
}

// close drains the fan-out into the encoder and waits for the last batch.
func (s *chunkedSession) close() error {
	s.live.Store(false)
	s.cancel()
	s.fanout.Wait()

	close(s.encoderCh)
	close(s.levelCh)
	<-s.meterDone

	return s.encoder.Wait()
}
