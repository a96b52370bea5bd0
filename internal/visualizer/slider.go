package visualizer

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

// Slider fills a bar in proportion to the playback position. It never
// decodes audio.
type Slider struct{}

func NewSlider() *Slider {
	return &Slider{}
}

func (s *Slider) Mode() Mode { return ModeSlider }

func (s *Slider) Build(width int) *State {
	return &State{width: max(width, 1)} //nolint:exhaustruct // slider uses width and percent
}

func (s *Slider) Resize(st *State, width int) {
	st.width = max(width, 1)
}

func (s *Slider) ApplyPosition(st *State, current, duration time.Duration) {
	st.last = max(0, current.Seconds())
	st.percent = SliderPercent(current, duration)
}

// SliderPercent is current/duration as a percentage clamped to [0, 100],
// or 0 when the duration is unknown.
func SliderPercent(current, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}

	return min(max(current.Seconds()/duration.Seconds()*100, 0), 100)
}

func (s *Slider) Reset(st *State) {
	st.last = 0
	st.percent = 0
}

func (s *Slider) Populate(context.Context, *Memo, Loader) (*Data, error) {
	return nil, nil
}

func (s *Slider) Attach(*State, *Data) {}

func (s *Slider) Render(st *State) string {
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(st.width),
		progress.WithoutPercentage(),
	)

	return bar.ViewAs(st.percent / 100)
}
