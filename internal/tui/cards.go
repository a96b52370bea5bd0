package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkime/practice/internal/cards"
	"github.com/alkime/practice/internal/playback"
	"github.com/alkime/practice/internal/recorder"
	"github.com/alkime/practice/internal/tui/style"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *Model) toggleExpand() tea.Cmd {
	c, ok := m.list.Selected()
	if !ok {
		return nil
	}

	if c.Pending() {
		m.setStatus("Uploads open once they are saved")
		return nil
	}

	collapsed, expanded := m.list.Toggle(c.ID)
	if collapsed != "" {
		m.deps.Playback.Collapse(collapsed)
	}

	if !expanded {
		return nil
	}

	return m.populate(c.Item())
}

// populate prepares the card's player and decodes its waveform. A decode
// failure keeps the placeholder and is only logged.
func (m *Model) populate(item playback.Item) tea.Cmd {
	ctx, pb := m.cfg.Context, m.deps.Playback

	return func() tea.Msg {
		if _, err := pb.Prepare(ctx, item); err != nil {
			return populatedMsg{id: item.ID, err: err}
		}

		if _, err := pb.Populate(ctx, item); err != nil {
			slog.Warn("failed to decode waveform", "id", item.ID, "error", err)
		}

		return populatedMsg{id: item.ID, err: nil}
	}
}

func (m *Model) play(item playback.Item) tea.Cmd {
	ctx, pb := m.cfg.Context, m.deps.Playback

	return func() tea.Msg {
		playing, frames, err := pb.Toggle(ctx, item)
		return playedMsg{id: item.ID, playing: playing, frames: frames, err: err}
	}
}

// togglePlay plays or pauses the selected card. Confirmed cards open first
// so their visualizer is on screen.
func (m *Model) togglePlay() tea.Cmd {
	c, ok := m.list.Selected()
	if !ok {
		return nil
	}

	var cmds []tea.Cmd

	if !c.Pending() && m.list.Expanded() != c.ID {
		collapsed, _ := m.list.Expand(c.ID)
		if collapsed != "" {
			m.deps.Playback.Collapse(collapsed)
		}

		cmds = append(cmds, m.populate(c.Item()))
	}

	cmds = append(cmds, m.play(c.Item()))

	return tea.Batch(cmds...)
}

func (m *Model) seek(offset time.Duration) tea.Cmd {
	if offset == 0 {
		return nil
	}

	c, ok := m.list.Selected()
	if !ok {
		return nil
	}

	if _, prepared := m.deps.Playback.Entry(c.ID); !prepared {
		return nil
	}

	ctx, pb, item := m.cfg.Context, m.deps.Playback, c.Item()

	return func() tea.Msg {
		return actionDoneMsg{action: "seek", id: item.ID, err: pb.Seek(ctx, item, offset)}
	}
}

func (m *Model) retrySelected() tea.Cmd {
	c, ok := m.list.Selected()
	if !ok || !c.Pending() {
		return nil
	}

	if !c.Upload.Failed() {
		m.setStatus("Upload still in progress")
		return nil
	}

	m.setStatus(fmt.Sprintf("Retrying %q", c.Title))

	ctx, queue, id := m.cfg.Context, m.deps.Queue, c.ID

	return func() tea.Msg {
		return actionDoneMsg{action: "retry", id: id, err: queue.Retry(ctx, id)}
	}
}

func (m *Model) discardSelected() tea.Cmd {
	c, ok := m.list.Selected()
	if !ok || !c.Pending() {
		return nil
	}

	s := m.deps.Session
	if c.ID == s.TempID() {
		if s.State() == recorder.Uploading {
			m.setStatus("Wait for the upload to finish")
			return nil
		}

		if err := s.Discard(m.cfg.Context); err == nil {
			m.resetTitle()
		}
	}

	m.deps.Playback.Forget(c.ID)

	ctx, queue, id := m.cfg.Context, m.deps.Queue, c.ID

	return func() tea.Msg {
		return actionDoneMsg{action: "discard", id: id, err: queue.Discard(ctx, id)}
	}
}

func (m *Model) viewCards() string {
	if !m.loaded {
		return style.Muted.Render("Loading takes...")
	}

	if m.list.Len() == 0 {
		return style.Muted.Render("No takes yet for this song.")
	}

	selected, _ := m.list.Selected()

	var sb strings.Builder

	for i, sec := range m.list.Sections() {
		if i > 0 {
			sb.WriteString("\n")
		}

		sb.WriteString(style.Section.Render(sec.Title))

		for _, c := range sec.Cards {
			sb.WriteString("\n")
			sb.WriteString(m.viewCard(c, sec.Own, c.ID == selected.ID))
		}
	}

	return sb.String()
}

func (m *Model) viewCard(c cards.Card, own, selected bool) string {
	var sb strings.Builder

	if selected {
		sb.WriteString(style.Bullet.Render("›"))
		sb.WriteString(" ")
		sb.WriteString(style.Selected.Render(c.Title))
	} else {
		sb.WriteString("  ")
		sb.WriteString(c.Title)
	}

	if c.Pending() {
		sb.WriteString("  ")
		sb.WriteString(m.viewPendingStatus(c))

		return sb.String()
	}

	if !own && c.Record.UploaderID != "" {
		sb.WriteString(style.Muted.Render("  · " + c.Record.UploaderID))
	}

	if m.deps.Playback.Playing(c.ID) {
		sb.WriteString("  ")
		sb.WriteString(style.Success.Render("▶ playing"))
	}

	if m.list.Expanded() != c.ID {
		return sb.String()
	}

	sb.WriteString("\n")
	sb.WriteString(style.Expanded.Render(m.viewPlayer(c.ID)))

	return sb.String()
}

func (m *Model) viewPendingStatus(c cards.Card) string {
	u := c.Upload

	if u.Failed() {
		msg := "upload failed"
		if u.Error != "" {
			msg += ": " + u.Error
		}

		return style.Error.Render(msg) + "  " +
			renderKeyHelp(m.keys.Retry, "  ") +
			renderKeyHelp(m.keys.DiscardPending)
	}

	label := "uploading"
	if u.RetryCount > 0 {
		label = fmt.Sprintf("uploading (retry %d)", u.RetryCount)
	}

	return m.spinner.Inline(label)
}

func (m *Model) viewPlayer(id string) string {
	e, ok := m.deps.Playback.Entry(id)
	if !ok {
		return style.Muted.Render("loading...")
	}

	pos := e.Player.Position()
	total := "-:--"

	if dur, known := e.Player.Duration(); known {
		total = recorder.FormatTimer(dur)
	}

	return m.deps.Playback.Render(id) + "\n" +
		style.Subtitle.Render(recorder.FormatTimer(pos)+" / "+total)
}
