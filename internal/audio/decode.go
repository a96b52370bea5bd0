package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	beepwav "github.com/gopxl/beep/v2/wav"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Container identifies an encoded audio container.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerWAV
	ContainerMP3
	ContainerOgg
)

func (c Container) String() string {
	switch c {
	case ContainerWAV:
		return "wav"
	case ContainerMP3:
		return "mp3"
	case ContainerOgg:
		return "ogg"
	case ContainerUnknown:
	}

	return "unknown"
}

// Sniff picks the container from the mime type, then from magic bytes.
func Sniff(data []byte, mimeType string) Container {
	mt := strings.ToLower(mimeType)

	switch {
	case strings.Contains(mt, "wav"):
		return ContainerWAV
	case strings.Contains(mt, "mpeg"), strings.Contains(mt, "mp3"):
		return ContainerMP3
	case strings.Contains(mt, "ogg"):
		return ContainerOgg
	}

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return ContainerWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return ContainerOgg
	case bytes.HasPrefix(data, []byte("ID3")):
		return ContainerMP3
	case len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ContainerMP3
	}

	return ContainerUnknown
}

// DecodeStream opens an encoded container as a seekable beep stream.
// The caller owns the returned streamer and must Close it.
func DecodeStream(data []byte, mimeType string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)

	container := Sniff(data, mimeType)
	rc := io.NopCloser(bytes.NewReader(data))

	switch container {
	case ContainerWAV:
		s, format, err = beepwav.Decode(bytes.NewReader(data))
	case ContainerMP3:
		s, format, err = mp3.Decode(rc)
	case ContainerOgg:
		s, format, err = vorbis.Decode(rc)
	case ContainerUnknown:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}

	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode %s stream: %w", container, err)
	}

	return s, format, nil
}

// PCM is the first channel of a decoded recording, scaled to [-1, 1].
type PCM struct {
	Samples    []float64
	SampleRate int
}

func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}

	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// DecodeMono fully decodes a container and keeps only the first channel.
func DecodeMono(data []byte, mimeType string) (PCM, error) {
	if Sniff(data, mimeType) == ContainerWAV {
		return decodeWAVMono(data)
	}

	stream, format, err := DecodeStream(data, mimeType)
	if err != nil {
		return PCM{}, err
	}
	defer stream.Close()

	out := make([]float64, 0, max(stream.Len(), 0))
	buf := make([][2]float64, 4096)

	for {
		n, ok := stream.Stream(buf)
		for i := range n {
			out = append(out, buf[i][0])
		}

		if !ok {
			break
		}
	}

	if err := stream.Err(); err != nil {
		return PCM{}, fmt.Errorf("failed to read decoded stream: %w", err)
	}

	return PCM{Samples: out, SampleRate: int(format.SampleRate)}, nil
}

func decodeWAVMono(data []byte) (PCM, error) {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, fmt.Errorf("%w: invalid WAV container", ErrUnsupportedFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("failed to read WAV samples: %w", err)
	}

	return PCM{Samples: firstChannel(buf), SampleRate: buf.Format.SampleRate}, nil
}

func firstChannel(buf *goaudio.IntBuffer) []float64 {
	channels := max(buf.Format.NumChannels, 1)

	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}

	scale := float64(int(1) << (depth - 1))
	out := make([]float64, 0, len(buf.Data)/channels)

	for i := 0; i < len(buf.Data); i += channels {
		out = append(out, float64(buf.Data[i])/scale)
	}

	return out
}
