package audio

import (
	"github.com/gen2brain/malgo"
)

// CaptureSampleRate is the fixed rate requested for raw microphone capture.
const CaptureSampleRate = 44100

type DeviceConfig struct {
	Format           malgo.FormatType
	CaptureChannels  int
	PlaybackChannels int
	SampleRate       int
}

// MonoCapture returns a single-channel capture configuration.
func MonoCapture(format malgo.FormatType, sampleRate int) DeviceConfig {
	return DeviceConfig{
		Format:           format,
		CaptureChannels:  1,
		PlaybackChannels: 0,
		SampleRate:       sampleRate,
	}
}

// StereoPlayback returns a two-channel float playback configuration.
func StereoPlayback(sampleRate int) DeviceConfig {
	return DeviceConfig{
		Format:           malgo.FormatF32,
		CaptureChannels:  0,
		PlaybackChannels: 2,
		SampleRate:       sampleRate,
	}
}
