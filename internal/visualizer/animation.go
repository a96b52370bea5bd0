package visualizer

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// FrameInterval paces position updates while a card is playing.
const FrameInterval = 33 * time.Millisecond

// FrameMsg asks the owner of card ID to re-apply the playback position.
type FrameMsg struct {
	ID  string
	gen uint64
}

// Animator runs one frame loop per playing card. Stopping a loop bumps its
// generation so frames already scheduled are dropped.
type Animator struct {
	mu      sync.Mutex
	gens    map[string]uint64
	running map[string]bool
}

func NewAnimator() *Animator {
	return &Animator{
		mu:      sync.Mutex{},
		gens:    map[string]uint64{},
		running: map[string]bool{},
	}
}

// Start begins the frame loop for id. It returns nil if one is running.
func (a *Animator) Start(id string) tea.Cmd {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running[id] {
		return nil
	}

	a.running[id] = true
	a.gens[id]++

	return frame(id, a.gens[id])
}

func (a *Animator) Stop(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running[id] {
		return
	}

	delete(a.running, id)
	a.gens[id]++
}

func (a *Animator) Running(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.running[id]
}

// Next schedules the frame after msg, or returns nil if msg is stale.
func (a *Animator) Next(msg FrameMsg) tea.Cmd {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running[msg.ID] || a.gens[msg.ID] != msg.gen {
		return nil
	}

	return frame(msg.ID, msg.gen)
}

// Current reports whether msg belongs to the running loop for its card.
func (a *Animator) Current(msg FrameMsg) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.running[msg.ID] && a.gens[msg.ID] == msg.gen
}

func frame(id string, gen uint64) tea.Cmd {
	return tea.Tick(FrameInterval, func(time.Time) tea.Msg {
		return FrameMsg{ID: id, gen: gen}
	})
}
