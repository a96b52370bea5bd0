// Package visualizer renders playback position for an audio card, either as
// a scrolling waveform or as a plain progress slider.
package visualizer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	ModeWaveform Mode = "waveform"
	ModeSlider   Mode = "slider"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeWaveform:
		return ModeWaveform, nil
	case ModeSlider:
		return ModeSlider, nil
	}

	return "", fmt.Errorf("unknown visualizer %q (want waveform or slider)", s)
}

// Visualizer is one rendering strategy. The mode is chosen once from
// configuration and shared by every card.
type Visualizer interface {
	Mode() Mode
	// Build creates the per-card state for a viewport width in columns.
	Build(width int) *State
	// Resize re-measures the viewport and keeps the current position.
	Resize(st *State, width int)
	ApplyPosition(st *State, current, duration time.Duration)
	Reset(st *State)
	// Populate loads the card's amplitude data through memo. It returns
	// nil when the strategy needs none.
	Populate(ctx context.Context, memo *Memo, load Loader) (*Data, error)
	// Attach applies loaded data to a card's state.
	Attach(st *State, d *Data)
	Render(st *State) string
}

func New(mode Mode) Visualizer {
	if mode == ModeSlider {
		return NewSlider()
	}

	return NewWaveform(DefaultRows)
}

// State is the per-card view state.
type State struct {
	width int

	// slider
	percent float64

	// waveform
	amps          []float64
	placeholder   bool
	peak          float64
	secondsPerBar float64
	colsPerSecond float64
	minContent    float64
	duration      float64
	last          float64
	offset        float64
}

func (s *State) Width() int { return s.width }

// Percent is the slider fill in [0, 100].
func (s *State) Percent() float64 { return s.percent }

// Offset is the waveform track's left edge relative to the viewport, in
// columns. It starts at half the width and decreases as playback advances.
func (s *State) Offset() float64 { return s.offset }

func (s *State) Bars() int { return len(s.amps) }

// Placeholder reports whether the waveform shows the synthetic shape.
func (s *State) Placeholder() bool { return s.placeholder }

// Position is the last applied playback time.
func (s *State) Position() time.Duration {
	return time.Duration(s.last * float64(time.Second))
}
