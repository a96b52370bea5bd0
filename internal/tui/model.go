// Package tui is the terminal front-end: a recorder panel above the song's
// audio cards.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkime/practice/internal/cards"
	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/pending"
	"github.com/alkime/practice/internal/playback"
	"github.com/alkime/practice/internal/recorder"
	"github.com/alkime/practice/internal/tui/components/labeledspinner"
	"github.com/alkime/practice/internal/tui/components/meter"
	"github.com/alkime/practice/internal/tui/style"
	"github.com/alkime/practice/internal/visualizer"
	"github.com/alkime/practice/pkg/collections"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// previewID is the playback id of the take held by the recorder panel.
const previewID = "take-preview"

const defaultWidth = 80

// Catalog lists the song's confirmed takes.
type Catalog interface {
	ListBySong(ctx context.Context, songID string) ([]catalog.Record, error)
}

// Queue is the part of the pending queue the list drives.
type Queue interface {
	List(ctx context.Context, songID string) ([]pending.Upload, error)
	Retry(ctx context.Context, tempID string) error
	Discard(ctx context.Context, tempID string) error
	Resume(ctx context.Context, songID string) error
}

// Config holds the per-run settings.
type Config struct {
	Context context.Context //nolint:containedctx // bounds background commands
	Cancel  context.CancelFunc

	SongID string
	UserID string
	// SeekStep is the rewind/forward offset; 0 disables seeking.
	SeekStep time.Duration
	// Resume delivers queued uploads for the song at startup.
	Resume bool
}

// Deps are the collaborators behind the screen.
type Deps struct {
	Session  *recorder.Session
	Queue    Queue
	Catalog  Catalog
	Playback *playback.Controller
	// Events and Changes may be nil.
	Events  <-chan pending.Event
	Changes <-chan catalog.Change
}

// Model is the root bubbletea model.
type Model struct {
	cfg  Config
	deps Deps
	keys KeyMap

	list    *cards.List
	records []catalog.Record
	uploads []pending.Upload
	loaded  bool

	title   textinput.Model
	meter   meter.Model
	spinner labeledspinner.Model

	width     int
	reloadSeq int
	status    string
	err       error
}

// New creates the root model for one song.
func New(cfg Config, deps Deps) *Model {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	ti := textinput.New()
	ti.Prompt = "Title: "
	ti.PromptStyle = style.Label
	ti.Placeholder = "name this take"
	ti.CharLimit = 120
	ti.Width = defaultWidth - 12

	return &Model{
		cfg:       cfg,
		deps:      deps,
		keys:      DefaultKeyMap(),
		list:      cards.NewList(),
		records:   nil,
		uploads:   nil,
		loaded:    false,
		title:     ti,
		meter:     meter.New(deps.Session.Meter(), defaultWidth-4, 2),
		spinner:   labeledspinner.New(spinner.MiniDot, "Uploading", "", ""),
		width:     defaultWidth,
		reloadSeq: 0,
		status:    "",
		err:       nil,
	}
}

// Init loads the list and starts listening for queue and catalog changes.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.loadList(true),
		m.spinner.Init(),
		listenEvents(m.deps.Events),
		listenChanges(m.deps.Changes),
	}

	if m.cfg.Resume {
		cmds = append(cmds, m.resume())
	}

	return tea.Batch(cmds...)
}

// Update handles all messages.
func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case listLoadedMsg:
		return m, m.applyList(msg)

	case queueEventMsg:
		return m, m.handleQueueEvent(msg.event)

	case changeMsg:
		slog.Debug("audios changed", "songId", msg.change.SongID, "audioId", msg.change.AudioID)
		m.reloadSeq++

		return m, tea.Batch(scheduleReload(m.reloadSeq), listenChanges(m.deps.Changes))

	case reloadMsg:
		if msg.seq != m.reloadSeq {
			return m, nil
		}

		return m, m.loadList(true)

	case savedMsg:
		return m, m.handleSaved(msg)

	case deliveredMsg:
		return m, m.handleDelivered(msg)

	case playedMsg:
		if msg.err != nil {
			m.setErr(msg.err)
		}

		return m, msg.frames

	case populatedMsg:
		if msg.err != nil {
			m.setErr(msg.err)
		}

		return m, nil

	case actionDoneMsg:
		return m, m.handleActionDone(msg)

	case visualizer.FrameMsg:
		return m, m.deps.Playback.Frame(msg)

	case meter.TickMsg:
		var cmd tea.Cmd
		m.meter, cmd = m.meter.Update(msg)

		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	// Cursor blink and other input internals
	if m.title.Focused() {
		var cmd tea.Cmd
		m.title, cmd = m.title.Update(teaMsg)

		return m, cmd
	}

	return m, nil
}

func (m *Model) resize(width int) {
	m.width = max(width, 24)
	m.meter.SetWidth(m.width - 4)
	m.title.Width = max(m.width-12, 10)
	m.deps.Playback.Resize(max(m.width-6, 16))
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m.quit()
	}

	if m.title.Focused() {
		return m.handleTitleKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Record):
		return m.toggleRecording()
	case key.Matches(msg, m.keys.Save):
		return m.save()
	case key.Matches(msg, m.keys.Discard):
		m.discardTake()
	case key.Matches(msg, m.keys.Preview):
		return m.preview()
	case key.Matches(msg, m.keys.Title):
		if m.deps.Session.State() == recorder.Stopped {
			return m.title.Focus()
		}
	case key.Matches(msg, m.keys.Up):
		m.list.Move(-1)
	case key.Matches(msg, m.keys.Down):
		m.list.Move(1)
	case key.Matches(msg, m.keys.Expand):
		return m.toggleExpand()
	case key.Matches(msg, m.keys.Play):
		return m.togglePlay()
	case key.Matches(msg, m.keys.Rewind):
		return m.seek(-m.cfg.SeekStep)
	case key.Matches(msg, m.keys.Forward):
		return m.seek(m.cfg.SeekStep)
	case key.Matches(msg, m.keys.Retry):
		return m.retrySelected()
	case key.Matches(msg, m.keys.DiscardPending):
		return m.discardSelected()
	}

	return nil
}

func (m *Model) handleTitleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Save):
		return m.save()
	case key.Matches(msg, m.keys.Blur):
		m.title.Blur()
		return nil
	}

	var cmd tea.Cmd
	m.title, cmd = m.title.Update(msg)

	return cmd
}

func (m *Model) quit() tea.Cmd {
	if m.deps.Session.Recording() {
		if err := m.deps.Session.Discard(m.cfg.Context); err != nil {
			slog.Warn("failed to discard recording on quit", "error", err)
		}
	}

	m.meter.Stop()

	if m.cfg.Cancel != nil {
		m.cfg.Cancel()
	}

	return tea.Quit
}

func (m *Model) setErr(err error) {
	slog.Debug("tui error", "error", err)

	m.err = err
	m.status = ""
}

func (m *Model) setStatus(status string) {
	m.err = nil
	m.status = status
}

// loadList reads the pending uploads, plus the confirmed records on a full
// reload.
func (m *Model) loadList(full bool) tea.Cmd {
	ctx, songID := m.cfg.Context, m.cfg.SongID
	store, queue := m.deps.Catalog, m.deps.Queue

	return func() tea.Msg {
		msg := listLoadedMsg{full: full} //nolint:exhaustruct // filled below

		if full {
			msg.records, msg.recordsErr = store.ListBySong(ctx, songID)
		}

		msg.uploads, msg.uploadsErr = queue.List(ctx, songID)

		return msg
	}
}

func (m *Model) applyList(msg listLoadedMsg) tea.Cmd {
	var cmds []tea.Cmd

	if msg.full {
		if msg.recordsErr != nil {
			m.setErr(fmt.Errorf("failed to load takes: %w", msg.recordsErr))
		} else {
			m.records = msg.records
			m.deps.Playback.ClearAll()
		}
	}

	if msg.uploadsErr != nil {
		m.setErr(fmt.Errorf("failed to load pending uploads: %w", msg.uploadsErr))
	} else {
		m.uploads = msg.uploads
	}

	before := m.pendingIDs()

	m.list.Replace(cards.Merge(m.records, m.uploads, m.cfg.UserID))
	m.loaded = true

	for _, id := range before {
		if _, ok := m.list.Find(id); !ok {
			m.deps.Playback.Forget(id)
		}
	}

	if msg.full {
		if c, ok := m.list.Find(m.list.Expanded()); ok {
			cmds = append(cmds, m.populate(c.Item()))
		}
	}

	return tea.Batch(cmds...)
}

func (m *Model) pendingIDs() []string {
	return collections.FilterApply(m.list.Cards(), cards.Card.Pending,
		func(c cards.Card) string { return c.ID })
}

func (m *Model) handleQueueEvent(ev pending.Event) tea.Cmd {
	cmds := []tea.Cmd{listenEvents(m.deps.Events)}

	if ev.Upload.SongID != m.cfg.SongID {
		return tea.Batch(cmds...)
	}

	slog.Debug("queue event", "kind", ev.Kind, "tempId", ev.Upload.TempID)

	cmds = append(cmds, m.loadList(false))

	if ev.Kind == pending.EventDelivered {
		s := m.deps.Session

		// Delivered from the list while the panel still holds the take.
		if ev.Upload.TempID == s.TempID() && s.State() == recorder.Stopped {
			if err := s.Discard(m.cfg.Context); err == nil {
				m.resetTitle()
				m.setStatus(fmt.Sprintf("Saved %q", ev.Upload.Title))
			}
		}

		m.reloadSeq++
		cmds = append(cmds, scheduleReload(m.reloadSeq))
	}

	return tea.Batch(cmds...)
}

func (m *Model) handleActionDone(msg actionDoneMsg) tea.Cmd {
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, pending.ErrRetriesExhausted):
			// The card shows the failure.
		case errors.Is(msg.err, pending.ErrInFlight):
			m.setStatus("Upload already in progress")
		default:
			m.setErr(fmt.Errorf("%s failed: %w", msg.action, msg.err))
		}
	} else if msg.action == "discard" {
		m.setStatus("Upload discarded")
	}

	if msg.action == "seek" {
		return nil
	}

	return m.loadList(false)
}

func (m *Model) resume() tea.Cmd {
	ctx, songID, queue := m.cfg.Context, m.cfg.SongID, m.deps.Queue

	return func() tea.Msg {
		return actionDoneMsg{action: "resume", id: "", err: queue.Resume(ctx, songID)}
	}
}

// View renders the current UI.
func (m *Model) View() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Practice"))
	sb.WriteString(style.Subtitle.Render("  song " + m.cfg.SongID))
	sb.WriteString("\n\n")

	sb.WriteString(m.viewRecorder())
	sb.WriteString("\n\n")

	sb.WriteString(m.viewCards())
	sb.WriteString("\n\n")

	switch {
	case m.err != nil:
		sb.WriteString(style.Error.Render(m.err.Error()))
	case m.status != "":
		sb.WriteString(style.Success.Render(m.status))
	}

	sb.WriteString("\n")
	sb.WriteString(m.viewHelp())

	return sb.String()
}

func (m *Model) viewHelp() string {
	if m.title.Focused() {
		return renderKeyHelp(m.keys.Save, "  ") +
			renderKeyHelp(m.keys.Blur, "  ") +
			renderKeyHelp(m.keys.ForceQuit)
	}

	s := renderKeyHelp(m.keys.Up, "  ") +
		renderKeyHelp(m.keys.Down, "  ") +
		renderKeyHelp(m.keys.Expand, "  ") +
		renderKeyHelp(m.keys.Play, "  ")

	if m.cfg.SeekStep > 0 {
		s += renderKeyHelp(m.keys.Rewind, "  ") + renderKeyHelp(m.keys.Forward, "  ")
	}

	return s + renderKeyHelp(m.keys.Quit)
}

func renderKeyHelp(keyBinding key.Binding, suffix ...string) string {
	s := style.Help.Render("[") + style.Key.Render(keyBinding.Help().Key) +
		style.Help.Render("] ") +
		style.Help.Render(keyBinding.Help().Desc)

	s += strings.Join(suffix, "")

	return s
}
