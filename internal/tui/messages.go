package tui

import (
	"time"

	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/pending"
	tea "github.com/charmbracelet/bubbletea"
)

// ReloadDebounce is the quiet period after a change notification before the
// list is reloaded.
const ReloadDebounce = 150 * time.Millisecond

// listLoadedMsg carries a fresh read of the song's takes. Confirmed records
// are only read on full reloads.
type listLoadedMsg struct {
	full       bool
	records    []catalog.Record
	recordsErr error
	uploads    []pending.Upload
	uploadsErr error
}

type queueEventMsg struct {
	event pending.Event
}

type changeMsg struct {
	change catalog.Change
}

// reloadMsg fires after the debounce; only the latest one reloads.
type reloadMsg struct {
	seq int
}

type savedMsg struct {
	title  string
	tempID string
	err    error
}

type deliveredMsg struct {
	title  string
	tempID string
	err    error
}

type playedMsg struct {
	id      string
	playing bool
	frames  tea.Cmd
	err     error
}

type populatedMsg struct {
	id  string
	err error
}

// actionDoneMsg reports the end of a background action (retry, discard,
// seek, resume).
type actionDoneMsg struct {
	action string
	id     string
	err    error
}

// listenEvents waits for the next queue event. A closed channel ends the
// listener.
func listenEvents(ch <-chan pending.Event) tea.Cmd {
	if ch == nil {
		return nil
	}

	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}

		return queueEventMsg{event: ev}
	}
}

func listenChanges(ch <-chan catalog.Change) tea.Cmd {
	if ch == nil {
		return nil
	}

	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}

		return changeMsg{change: c}
	}
}

func scheduleReload(seq int) tea.Cmd {
	return tea.Tick(ReloadDebounce, func(time.Time) tea.Msg {
		return reloadMsg{seq: seq}
	})
}
