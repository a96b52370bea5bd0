package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alkime/practice/internal/audio"
	"github.com/alkime/practice/internal/wav"
	"github.com/gen2brain/malgo"
)

// PCMEngine accumulates raw float frames and encodes a WAV container on Stop.
type PCMEngine struct {
	backend    Backend
	sampleRate int
	levels     *audio.SampleRingBuffer

	mu     sync.Mutex
	stream Stream
	live   *atomic.Bool

	chunkMu sync.Mutex
	chunks  [][]float32
}

func NewPCMEngine(backend Backend, sampleRate int) *PCMEngine {
	if sampleRate <= 0 {
		sampleRate = audio.CaptureSampleRate
	}

	return &PCMEngine{ //nolint:exhaustruct // session fields set on Start
		backend:    backend,
		sampleRate: sampleRate,
		levels:     audio.NewSampleRingBuffer(sampleRate),
	}
}

func (e *PCMEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil {
		return ErrAlreadyCapturing
	}

	e.chunkMu.Lock()
	e.chunks = nil
	e.chunkMu.Unlock()

	// Each session gets its own flag so late callbacks from a torn-down
	// device cannot append into the next take.
	live := &atomic.Bool{}
	live.Store(true)

	onData := func(frame []byte) {
		if !live.Load() {
			return
		}

		samples := audio.BytesToFloat32(frame)
		if len(samples) == 0 {
			return
		}

		e.chunkMu.Lock()
		e.chunks = append(e.chunks, samples)
		e.chunkMu.Unlock()

		e.levels.Write(audio.Float32ToInt16(samples))
	}

	stream, err := openAndStart(ctx, e.backend, audio.MonoCapture(malgo.FormatF32, e.sampleRate), onData)
	if err != nil {
		live.Store(false)
		return err
	}

	e.stream = stream
	e.live = live

	slog.Debug("pcm capture started", "sampleRate", e.sampleRate)

	return nil
}

func (e *PCMEngine) Stop(ctx context.Context) (Result, error) {
	samples, err := e.end(ctx)
	if err != nil {
		return Result{}, err
	}

	data, err := wav.Encode(samples, e.sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode take: %w", err)
	}

	slog.Debug("pcm capture stopped", "samples", len(samples), "bytes", len(data))

	return Result{
		Data:     data,
		MimeType: wav.MimeType,
		Duration: wav.Duration(len(samples), e.sampleRate),
	}, nil
}

func (e *PCMEngine) Discard(ctx context.Context) {
	if _, err := e.end(ctx); err == nil {
		slog.Debug("pcm capture discarded")
	}
}

func (e *PCMEngine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stream != nil
}

func (e *PCMEngine) Levels() []int16 {
	return e.levels.Read()
}

// end tears the device down and returns the accumulated samples in order.
func (e *PCMEngine) end(ctx context.Context) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return nil, ErrNotCapturing
	}

	e.live.Store(false)
	if err := teardown(ctx, e.stream); err != nil {
		slog.Warn("pcm capture teardown", "error", err)
	}
	e.stream = nil

	e.chunkMu.Lock()
	chunks := e.chunks
	e.chunks = nil
	e.chunkMu.Unlock()

	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	samples := make([]float32, 0, total)
	for _, c := range chunks {
		samples = append(samples, c...)
	}

	return samples, nil
}
