package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alkime/practice/internal/playback"
	"github.com/alkime/practice/internal/recorder"
	"github.com/alkime/practice/internal/tui/style"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *Model) toggleRecording() tea.Cmd {
	s, ctx := m.deps.Session, m.cfg.Context

	if s.Recording() {
		err := s.Stop(ctx)
		m.meter.Stop()

		if err != nil {
			m.setErr(err)
			return nil
		}

		m.setStatus("")

		return m.takeTitleFocus()
	}

	// Keep the speakers quiet while the microphone is open.
	m.deps.Playback.Stop()

	if err := s.Start(ctx, m.cfg.SongID); err != nil {
		m.setErr(err)
		return nil
	}

	m.resetTitle()
	m.setStatus("")

	return m.meter.Start()
}

func (m *Model) takeTitleFocus() tea.Cmd {
	if !m.deps.Session.PendingTitleFocus() {
		return nil
	}

	m.deps.Session.TitleFocused()

	return m.title.Focus()
}

func (m *Model) resetTitle() {
	m.title.Reset()
	m.title.Blur()
	m.deps.Playback.Forget(previewID)
}

func (m *Model) discardTake() {
	s := m.deps.Session
	if s.State() == recorder.Idle {
		return
	}

	if err := s.Discard(m.cfg.Context); err != nil {
		m.setErr(err)
		return
	}

	m.meter.Stop()
	m.resetTitle()
	m.setStatus("Take discarded")
}

func (m *Model) preview() tea.Cmd {
	res, ok := m.deps.Session.Result()
	if !ok {
		return nil
	}

	return m.play(playback.Item{ID: previewID, URL: "", MimeType: res.MimeType, Data: res.Data})
}

// save queues the take. Delivery starts once it is safely stored.
func (m *Model) save() tea.Cmd {
	s := m.deps.Session
	if s.State() != recorder.Stopped {
		return nil
	}

	if m.deps.Playback.Playing(previewID) {
		m.deps.Playback.Stop()
	}

	ctx, title := m.cfg.Context, m.title.Value()

	return func() tea.Msg {
		tempID, err := s.Save(ctx, title)
		return savedMsg{title: strings.TrimSpace(title), tempID: tempID, err: err}
	}
}

func (m *Model) handleSaved(msg savedMsg) tea.Cmd {
	if msg.err != nil {
		m.setErr(msg.err)

		if errors.Is(msg.err, recorder.ErrEmptyTitle) {
			return m.takeTitleFocus()
		}

		return nil
	}

	m.title.Blur()
	m.setStatus("")

	ctx, queue := m.cfg.Context, m.deps.Queue

	deliver := func() tea.Msg {
		// Retry starts a fresh bounded cycle, which also covers a second
		// save after a failed first delivery.
		err := queue.Retry(ctx, msg.tempID)
		return deliveredMsg{title: msg.title, tempID: msg.tempID, err: err}
	}

	return tea.Batch(deliver, m.loadList(false))
}

func (m *Model) handleDelivered(msg deliveredMsg) tea.Cmd {
	m.deps.Session.Delivered(msg.tempID, msg.err)

	if msg.err != nil {
		m.setErr(fmt.Errorf("upload failed, press enter to try again: %w", msg.err))
		return m.loadList(false)
	}

	m.resetTitle()
	m.setStatus(fmt.Sprintf("Saved %q", msg.title))

	return m.loadList(false)
}

func (m *Model) viewRecorder() string {
	s := m.deps.Session

	var sb strings.Builder

	switch s.State() {
	case recorder.Idle:
		sb.WriteString(style.Subtitle.Render("Ready to record a take"))
		sb.WriteString("\n")
		sb.WriteString(renderKeyHelp(m.keys.Record))

	case recorder.Recording:
		sb.WriteString(style.Error.Render("● REC"))
		sb.WriteString(" ")
		sb.WriteString(style.Label.Render(s.Timer()))
		sb.WriteString("\n")
		sb.WriteString(m.meter.View())
		sb.WriteString("\n")
		sb.WriteString(renderKeyHelp(m.keys.Record, "  "))
		sb.WriteString(renderKeyHelp(m.keys.Discard))

	case recorder.Stopped:
		sb.WriteString(style.Success.Render("Take ready"))
		sb.WriteString(" ")
		sb.WriteString(style.Subtitle.Render(s.Timer()))

		if m.deps.Playback.Playing(previewID) {
			sb.WriteString("  ")
			sb.WriteString(style.Progress.Render("▶ previewing"))
		}

		sb.WriteString("\n")
		sb.WriteString(m.title.View())
		sb.WriteString("\n")
		sb.WriteString(renderKeyHelp(m.keys.Save, "  "))
		sb.WriteString(renderKeyHelp(m.keys.Preview, "  "))
		sb.WriteString(renderKeyHelp(m.keys.Discard, "  "))

		if m.title.Focused() {
			sb.WriteString(renderKeyHelp(m.keys.Blur))
		} else {
			sb.WriteString(renderKeyHelp(m.keys.Title))
		}

	case recorder.Uploading:
		sb.WriteString(m.spinner.Inline("Uploading take"))
		sb.WriteString(" ")
		sb.WriteString(style.Subtitle.Render(s.Timer()))
		sb.WriteString("\n")
		sb.WriteString(style.Muted.Render(m.title.Value()))
	}

	return style.Panel.Width(max(m.width-2, 10)).Render(sb.String())
}
