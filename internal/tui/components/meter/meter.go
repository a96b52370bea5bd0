// Package meter provides a TUI component showing live microphone input.
package meter

import (
	"math"
	"strings"
	"time"

	"github.com/alkime/practice/internal/tui/style"
	"github.com/alkime/practice/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Block characters for amplitude visualization (8 levels, bottom to top).
// Index 0 = empty (space), 1-8 = increasing fill levels.
const blockChars = " ▁▂▃▄▅▆▇█"

// TickInterval redraws the meter at ~20 FPS.
const TickInterval = 50 * time.Millisecond

// TickMsg triggers a meter redraw. Ticks from a stopped run are ignored.
type TickMsg struct {
	run int
}

// Model reads input samples from a Levels control and renders them as
// vertical bars (left=older, right=newer) while a take is recording.
type Model struct {
	levels  uictl.Levels[int16]
	width   int
	height  int
	run     int
	running bool
}

// New creates a meter width columns wide and height rows tall.
func New(levels uictl.Levels[int16], width, height int) Model {
	if height < 1 {
		height = 1
	}

	return Model{
		levels:  levels,
		width:   width,
		height:  height,
		run:     0,
		running: false,
	}
}

// Start begins redrawing. It returns nil if the meter is already running.
func (m *Model) Start() tea.Cmd {
	if m.running {
		return nil
	}

	m.running = true
	m.run++

	return m.tick()
}

// Stop ends the redraw loop after the tick in flight.
func (m *Model) Stop() {
	m.running = false
	m.run++
}

func (m Model) Running() bool {
	return m.running
}

// SetWidth changes the number of columns.
func (m *Model) SetWidth(width int) {
	m.width = max(width, 1)
}

// Update handles tick messages for animation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if t, ok := msg.(TickMsg); ok && m.running && t.run == m.run {
		return m, m.tick()
	}

	return m, nil
}

// View renders the meter as block characters.
func (m Model) View() string {
	if m.levels == nil {
		return m.renderEmpty()
	}

	samples := m.levels.Read()
	if len(samples) == 0 {
		return m.renderEmpty()
	}

	return m.renderBars(samples)
}

func (m Model) tick() tea.Cmd {
	run := m.run

	return tea.Tick(TickInterval, func(_ time.Time) tea.Msg {
		return TickMsg{run: run}
	})
}

// renderBars renders samples as vertical bars across multiple rows.
func (m Model) renderBars(samples []int16) string {
	levels := m.calculateLevels(samples)
	runes := []rune(blockChars)

	var sb strings.Builder

	// Render row by row, from top to bottom
	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		var rowSB strings.Builder

		for col := range m.width {
			rowSB.WriteRune(runes[m.blockIndexForRow(levels[col], row)])
		}

		sb.WriteString(style.Progress.Render(rowSB.String()))
	}

	return sb.String()
}

// calculateLevels computes a level from 0 to height*8 for each column.
func (m Model) calculateLevels(samples []int16) []int {
	levels := make([]int, m.width)
	bucketSize := max(1, len(samples)/m.width)
	maxLevel := m.height * 8

	for col := range m.width {
		start := col * bucketSize
		if start >= len(samples) {
			continue
		}

		end := min(start+bucketSize, len(samples))
		levels[col] = amplitudeToLevel(maxAbsAmplitude(samples[start:end]), maxLevel)
	}

	return levels
}

// blockIndexForRow returns the block character index (0-8) for a level at
// a row. Row 0 is the top.
func (m Model) blockIndexForRow(level, row int) int {
	rowFromBottom := m.height - 1 - row
	fill := level - rowFromBottom*8

	return min(max(fill, 0), 8)
}

// renderEmpty draws a flat baseline.
func (m Model) renderEmpty() string {
	var sb strings.Builder

	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		ch := " "
		if row == m.height-1 {
			ch = "▁"
		}

		sb.WriteString(style.Muted.Render(strings.Repeat(ch, m.width)))
	}

	return sb.String()
}

func maxAbsAmplitude(samples []int16) int16 {
	var maxAmp int16

	for _, s := range samples {
		// -32768 has no positive equivalent
		if s == math.MinInt16 {
			return math.MaxInt16
		}

		maxAmp = max(maxAmp, s, -s)
	}

	return maxAmp
}

// amplitudeToLevel maps 0..32767 to 0..maxLevel on a square-root curve so
// quiet input is still visible.
func amplitudeToLevel(amp int16, maxLevel int) int {
	if amp <= 0 {
		return 0
	}

	scaled := math.Sqrt(float64(amp)/math.MaxInt16) * float64(maxLevel)

	return min(int(scaled), maxLevel)
}
