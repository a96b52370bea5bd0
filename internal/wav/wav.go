// Package wav encodes mono float PCM into a canonical 16-bit stereo WAV container.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// HeaderSize is the size of the RIFF/fmt/data header written by Encode.
	HeaderSize = 44
	// Channels is the channel count of every encoded container. Mono input is
	// written to both channels.
	Channels = 2
	// BitsPerSample is the PCM bit depth of every encoded container.
	BitsPerSample = 16
	// MimeType is the content type of an encoded container.
	MimeType = "audio/wav"

	formatPCM     = 1
	fmtChunkSize  = 16
	bytesPerFrame = Channels * BitsPerSample / 8
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrTooLarge          = errors.New("too many samples for a WAV container")
)

type header struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	FmtChunkID    [4]byte
	FmtChunkSize  uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataChunkID   [4]byte
	DataChunkSize uint32
}

// Encode converts mono samples in [-1, 1] into a stereo 16-bit PCM WAV file.
// Samples outside the range are clamped before quantization.
func Encode(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}

	dataSize := uint64(len(samples)) * bytesPerFrame
	if dataSize+HeaderSize-8 > math.MaxUint32 {
		return nil, ErrTooLarge
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+int(dataSize)))

	h := header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(dataSize + HeaderSize - 8),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		FmtChunkID:    [4]byte{'f', 'm', 't', ' '},
		FmtChunkSize:  fmtChunkSize,
		AudioFormat:   formatPCM,
		NumChannels:   Channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * bytesPerFrame),
		BlockAlign:    bytesPerFrame,
		BitsPerSample: BitsPerSample,
		DataChunkID:   [4]byte{'d', 'a', 't', 'a'},
		DataChunkSize: uint32(dataSize),
	}

	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	var frame [bytesPerFrame]byte
	for _, s := range samples {
		v := uint16(Quantize(s))
		binary.LittleEndian.PutUint16(frame[0:], v)
		binary.LittleEndian.PutUint16(frame[2:], v)
		buf.Write(frame[:])
	}

	return buf.Bytes(), nil
}

// Quantize clamps a sample to [-1, 1] and scales it to a signed 16-bit value.
// Positive samples scale by 32767 and negative samples by 32768.
func Quantize(s float32) int16 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}

	if s < 0 {
		return int16(s * 32768)
	}

	return int16(s * 32767)
}

// Duration returns the playing time of n mono samples at the given rate.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}

	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
