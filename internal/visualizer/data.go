package visualizer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alkime/practice/internal/audio"
	"golang.org/x/sync/singleflight"
)

const (
	MinBars = 160
	MaxBars = 1024
	// BarsPerSecond is the target bucket density before clamping.
	BarsPerSecond = 32
)

// Data is the decoded amplitude envelope of one audio item.
type Data struct {
	Values   []float64
	Duration time.Duration
	Peak     float64
}

// BarCount is the number of buckets for a take of duration d.
func BarCount(d time.Duration) int {
	n := int(math.Round(d.Seconds() * BarsPerSecond))
	return min(max(n, MinBars), MaxBars)
}

// Bucket splits samples into count blocks and keeps the peak absolute value
// of each, clamped to [0, 1]. It also returns the largest bucket value.
func Bucket(samples []float64, count int) ([]float64, float64) {
	if count <= 0 {
		return nil, 0
	}

	total := len(samples)
	block := max(1, total/count)
	values := make([]float64, count)

	var peak float64

	for i := range count {
		start := i * block

		var p float64

		for j := 0; j < block && start+j < total; j++ {
			p = max(p, math.Abs(samples[start+j]))
		}

		values[i] = min(max(p, 0), 1)
		peak = max(peak, values[i])
	}

	return values, peak
}

// Analyze buckets decoded PCM into Data.
func Analyze(pcm audio.PCM) (*Data, error) {
	if len(pcm.Samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", audio.ErrUnsupportedFormat)
	}

	d := pcm.Duration()
	values, peak := Bucket(pcm.Samples, BarCount(d))

	return &Data{Values: values, Duration: d, Peak: peak}, nil
}

// Decode reads an encoded take and returns its amplitude envelope.
func Decode(data []byte, mimeType string) (*Data, error) {
	pcm, err := audio.DecodeMono(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}

	return Analyze(pcm)
}

// Loader fetches the encoded bytes and mime type of an item.
type Loader func(ctx context.Context) ([]byte, string, error)

// Memo holds one item's Data. Concurrent loads share a single decode and
// only successful results are kept.
type Memo struct {
	mu    sync.Mutex
	data  *Data
	group singleflight.Group
}

func (m *Memo) Get() *Data {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.data
}

func (m *Memo) Load(ctx context.Context, fn func(ctx context.Context) (*Data, error)) (*Data, error) {
	if d := m.Get(); d != nil {
		return d, nil
	}

	v, err, _ := m.group.Do("data", func() (any, error) {
		if d := m.Get(); d != nil {
			return d, nil
		}

		d, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		if d != nil && len(d.Values) > 0 {
			m.mu.Lock()
			m.data = d
			m.mu.Unlock()
		}

		return d, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // error from fn
	}

	d, _ := v.(*Data)

	return d, nil
}

// Forget drops the memoized data.
func (m *Memo) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
}
