package visualizer

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/alkime/practice/internal/tui/style"
)

const (
	DefaultRows = 3

	// AmplitudeFloor is subtracted from every bucket before normalising so
	// background noise does not register as signal.
	AmplitudeFloor = 0.001

	barStep        = 1.0
	trackPadding   = 40.0
	windowSeconds  = 4.0
	halfWindow     = windowSeconds / 2
	minPeak        = 0.0001
	minSecsPerBar  = 0.0001
	barBase        = 24.0
	barRange       = 92.0
	barMinHeight   = 12.0
	barMaxHeight   = 120.0
	placeholderMin = 0.1
)

// Block characters for bar heights, empty to full.
const blockChars = " ▁▂▃▄▅▆▇█"

// Waveform scrolls a bar track past a fixed centre marker.
type Waveform struct {
	rows int
}

func NewWaveform(rows int) *Waveform {
	return &Waveform{rows: max(rows, 1)}
}

func (w *Waveform) Mode() Mode { return ModeWaveform }

func (w *Waveform) Build(width int) *State {
	st := &State{width: max(width, 1)} //nolint:exhaustruct // filled below
	w.Attach(st, nil)
	st.offset = st.initialOffset()

	return st
}

func (w *Waveform) Resize(st *State, width int) {
	st.width = max(width, 1)
	w.position(st, st.last)
}

// Attach replaces the bars with d's envelope, or with a placeholder shape
// when d is empty.
func (w *Waveform) Attach(st *State, d *Data) {
	if d != nil && len(d.Values) > 0 {
		amps := make([]float64, len(d.Values))

		var peak float64

		for i, v := range d.Values {
			f := max(0, min(1, v)-AmplitudeFloor)
			amps[i] = f
			peak = max(peak, f)
		}

		if p := d.Peak - AmplitudeFloor; p > 0 {
			peak = p
		}

		st.peak = max(peak, minPeak)
		for i := range amps {
			amps[i] = max(0, amps[i]/st.peak)
		}

		st.amps = amps
		st.placeholder = false

		if d.Duration > 0 {
			st.duration = d.Duration.Seconds()
			st.secondsPerBar = st.duration / float64(len(amps))
		}
	} else {
		st.amps = make([]float64, MinBars)
		for i := range st.amps {
			st.amps[i] = placeholderValue(i, MinBars)
		}

		st.placeholder = true
		if st.peak == 0 {
			st.peak = 1
		}
	}

	spb := st.secondsPerBar
	if spb <= 0 {
		spb = windowSeconds / float64(len(st.amps))
	}

	st.colsPerSecond = barStep / max(spb, minSecsPerBar)
	st.minContent = max(st.minContent, float64(len(st.amps))*barStep+trackPadding)
}

func placeholderValue(i, total int) float64 {
	if total <= 0 {
		return 0.3
	}

	t := float64(i) / float64(total)
	base := 0.35 + 0.25*math.Sin(t*math.Pi*4)
	envelope := 0.2 + 0.8*math.Sin(math.Pi*math.Min(t, 1-t))

	return max(placeholderMin, min(1, base+envelope*0.3))
}

func (w *Waveform) ApplyPosition(st *State, current, duration time.Duration) {
	if duration > 0 {
		st.duration = duration.Seconds()
	}

	w.position(st, max(0, current.Seconds()))
}

func (w *Waveform) position(st *State, t float64) {
	st.last = t
	minOffset := float64(st.width) - st.contentWidth()
	st.offset = max(minOffset, st.initialOffset()-t*st.colsPerSecond)
}

func (w *Waveform) Reset(st *State) {
	st.last = 0
	st.offset = st.initialOffset()
}

func (w *Waveform) Populate(ctx context.Context, memo *Memo, load Loader) (*Data, error) {
	return memo.Load(ctx, func(ctx context.Context) (*Data, error) {
		data, mimeType, err := load(ctx)
		if err != nil {
			return nil, err
		}

		return Decode(data, mimeType)
	})
}

func (s *State) initialOffset() float64 {
	return float64(s.width) / 2
}

func (s *State) contentWidth() float64 {
	total := s.initialOffset() + (s.duration+halfWindow)*s.colsPerSecond
	return max(total, max(s.minContent, float64(s.width)*1.5))
}

// barLevel maps a normalised amplitude to a fill level in [0, rows*8].
func (w *Waveform) barLevel(amp float64) int {
	h := min(max(barBase+amp*barRange, barMinHeight), barMaxHeight)
	return int(math.Round(h / barMaxHeight * float64(w.rows*8)))
}

// Render draws the visible slice of the track. Bars left of the centre have
// been played. The last row marks the centre.
func (w *Waveform) Render(st *State) string {
	runes := []rune(blockChars)
	center := st.width / 2
	shift := int(math.Round(st.offset))

	levels := make([]int, st.width)
	for x := range st.width {
		bar := x - shift
		if bar >= 0 && bar < len(st.amps) {
			levels[x] = w.barLevel(st.amps[bar])
		} else {
			levels[x] = -1
		}
	}

	var sb strings.Builder

	for row := range w.rows {
		base := (w.rows - 1 - row) * 8

		var played, ahead strings.Builder

		for x, level := range levels {
			r := ' '
			if level >= 0 {
				r = runes[min(max(level-base, 0), 8)]
			}

			if x < center {
				played.WriteRune(r)
			} else {
				ahead.WriteRune(r)
			}
		}

		sb.WriteString(style.Progress.Render(played.String()))
		sb.WriteString(style.Muted.Render(ahead.String()))
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat(" ", center))
	sb.WriteString(style.Key.Render("▲"))

	return sb.String()
}
