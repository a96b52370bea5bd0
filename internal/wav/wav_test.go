package wav_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/alkime/practice/internal/wav"
	gowav "github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Header(t *testing.T) {
	t.Parallel()

	data, err := wav.Encode([]float32{0, 0.5, -0.5}, 44100)
	require.NoError(t, err)
	require.Len(t, data, wav.HeaderSize+3*4)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(len(data)-8), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(data[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]), "PCM format tag")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[22:24]), "channel count")
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(44100*4), binary.LittleEndian.Uint32(data[28:32]), "byte rate")
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(data[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]), "bit depth")
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(data[40:44]))
}

func TestEncode_Empty(t *testing.T) {
	t.Parallel()

	data, err := wav.Encode(nil, 8000)
	require.NoError(t, err)
	assert.Len(t, data, wav.HeaderSize)
}

func TestEncode_InvalidSampleRate(t *testing.T) {
	t.Parallel()

	_, err := wav.Encode([]float32{0}, 0)
	require.ErrorIs(t, err, wav.ErrInvalidSampleRate)
}

func TestEncode_DuplicatesMonoToBothChannels(t *testing.T) {
	t.Parallel()

	data, err := wav.Encode([]float32{0.25, -1}, 22050)
	require.NoError(t, err)

	pcm := data[wav.HeaderSize:]
	for frame := 0; frame < 2; frame++ {
		left := binary.LittleEndian.Uint16(pcm[frame*4:])
		right := binary.LittleEndian.Uint16(pcm[frame*4+2:])
		assert.Equal(t, left, right, "frame %d", frame)
	}
}

func TestQuantize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{name: "zero", in: 0, want: 0},
		{name: "full positive", in: 1, want: 32767},
		{name: "full negative", in: -1, want: -32768},
		{name: "half positive", in: 0.5, want: 16383},
		{name: "half negative", in: -0.5, want: -16384},
		{name: "clamps above", in: 2.5, want: 32767},
		{name: "clamps below", in: -7, want: -32768},
		{name: "nan", in: float32(math.NaN()), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, wav.Quantize(tt.in))
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sampleRate int
		samples    []float32
	}{
		{name: "ramp", sampleRate: 44100, samples: ramp(441)},
		{name: "clipped", sampleRate: 16000, samples: []float32{1.5, -1.5, 0.999, -0.999, 0}},
		{name: "sine", sampleRate: 8000, samples: sine(800, 440, 8000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := wav.Encode(tt.samples, tt.sampleRate)
			require.NoError(t, err)

			dec := gowav.NewDecoder(bytes.NewReader(data))
			buf, err := dec.FullPCMBuffer()
			require.NoError(t, err)

			require.Equal(t, 2, buf.Format.NumChannels)
			require.Equal(t, tt.sampleRate, buf.Format.SampleRate)
			require.Len(t, buf.Data, len(tt.samples)*2)

			for i, s := range tt.samples {
				want := int(wav.Quantize(s))
				assert.Equal(t, want, buf.Data[i*2], "left sample %d", i)
				assert.Equal(t, want, buf.Data[i*2+1], "right sample %d", i)
			}

			dur, err := dec.Duration()
			require.NoError(t, err)
			frame := time.Second / time.Duration(tt.sampleRate)
			assert.InDelta(t, float64(wav.Duration(len(tt.samples), tt.sampleRate)), float64(dur), float64(frame))
		})
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, wav.Duration(5*44100, 44100))
	assert.Equal(t, time.Duration(0), wav.Duration(100, 0))
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = -1 + 2*float32(i)/float32(n-1)
	}

	return out
}

func sine(n int, freq, rate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}

	return out
}
