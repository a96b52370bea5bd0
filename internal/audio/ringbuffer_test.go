package audio_test

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/alkime/practice/internal/audio"
	"github.com/stretchr/testify/require"
)

func TestSampleRingBuffer_ReadSamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		writes   [][]int16
		read     int
		want     []int16
		count    int
	}{
		{name: "fits", capacity: 10, writes: [][]int16{{1, 2, 3, 4, 5}}, read: 5, want: []int16{1, 2, 3, 4, 5}, count: 5},
		{name: "empty write", capacity: 10, writes: [][]int16{{}}, read: 5, want: nil, count: 0},
		{name: "overwrites oldest", capacity: 5, writes: [][]int16{{1, 2, 3, 4, 5, 6, 7}}, read: 5, want: []int16{3, 4, 5, 6, 7}, count: 5},
		{name: "wraps across writes", capacity: 5, writes: [][]int16{{1, 2}, {3, 4}, {5, 6}}, read: 5, want: []int16{2, 3, 4, 5, 6}, count: 5},
		{name: "newest tail", capacity: 10, writes: [][]int16{{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}, read: 3, want: []int16{8, 9, 10}, count: 10},
		{name: "short of request", capacity: 10, writes: [][]int16{{1, 2, 3}}, read: 10, want: []int16{1, 2, 3}, count: 3},
		{name: "zero read", capacity: 10, writes: [][]int16{{1, 2, 3}}, read: 0, want: nil, count: 3},
		{name: "negative read", capacity: 10, writes: [][]int16{{1, 2, 3}}, read: -1, want: nil, count: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := audio.NewSampleRingBuffer(tt.capacity)
			for _, w := range tt.writes {
				buf.Write(w)
			}

			require.Equal(t, tt.want, buf.ReadSamples(tt.read))
			require.Equal(t, tt.count, buf.Count())
		})
	}
}

// The capture callback writes while the meter reads on every frame.
func TestSampleRingBuffer_ConcurrentMeterReads(t *testing.T) {
	t.Parallel()

	buf := audio.NewSampleRingBuffer(audio.LevelWindow)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	go func() {
		frame := make([]int16, 64)
		for ctx.Err() == nil {
			buf.Write(frame)
		}
	}()

	for ctx.Err() == nil {
		require.LessOrEqual(t, len(buf.Read()), audio.LevelWindow)
	}
}

func TestBytesToInt16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []byte
		expected []int16
	}{
		{
			name:     "empty",
			input:    []byte{},
			expected: nil,
		},
		{
			name:     "single sample",
			input:    []byte{0x00, 0x01}, // 256 in little-endian
			expected: []int16{256},
		},
		{
			name:     "multiple samples",
			input:    []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}, // 1, 2, 3
			expected: []int16{1, 2, 3},
		},
		{
			name:     "negative sample",
			input:    []byte{0xFF, 0xFF}, // -1 in little-endian signed
			expected: []int16{-1},
		},
		{
			name:     "max positive",
			input:    []byte{0xFF, 0x7F}, // 32767
			expected: []int16{32767},
		},
		{
			name:     "max negative",
			input:    []byte{0x00, 0x80}, // -32768
			expected: []int16{-32768},
		},
		{
			name:     "odd byte count truncates",
			input:    []byte{0x01, 0x00, 0x02}, // Only first 2 bytes form a sample
			expected: []int16{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := audio.BytesToInt16(tt.input)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestSampleRingBuffer_ReadUsesLevelWindow(t *testing.T) {
	t.Parallel()

	buf := audio.NewSampleRingBuffer(audio.LevelWindow * 2)
	buf.Write(make([]int16, audio.LevelWindow+10))

	require.Len(t, buf.Read(), audio.LevelWindow)
}

func TestBytesToFloat32(t *testing.T) {
	t.Parallel()

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(-1))
	binary.LittleEndian.PutUint32(data[8:], math.Float32bits(0))

	got := audio.BytesToFloat32(data)
	require.Equal(t, []float32{0.5, -1, 0}, got)

	// The result must not alias the driver buffer.
	data[0], data[1], data[2], data[3] = 0, 0, 0, 0
	require.Equal(t, float32(0.5), got[0])

	require.Nil(t, audio.BytesToFloat32([]byte{1, 2, 3}))
}

func TestFloat32ToInt16(t *testing.T) {
	t.Parallel()

	got := audio.Float32ToInt16([]float32{0, 1, -1, 2, -2, 0.5})
	require.Equal(t, []int16{0, 32767, -32768, 32767, -32768, 16383}, got)
	require.Nil(t, audio.Float32ToInt16(nil))
}
