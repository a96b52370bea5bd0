package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the recorder panel and the card list.
type KeyMap struct {
	// Recorder
	Record  key.Binding
	Save    key.Binding
	Discard key.Binding
	Preview key.Binding
	Title   key.Binding
	Blur    key.Binding

	// Cards
	Up             key.Binding
	Down           key.Binding
	Expand         key.Binding
	Play           key.Binding
	Rewind         key.Binding
	Forward        key.Binding
	Retry          key.Binding
	DiscardPending key.Binding

	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Record: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "record/stop"),
		),
		Save: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "save take"),
		),
		Discard: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "discard take"),
		),
		Preview: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "preview"),
		),
		Title: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "edit title"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "leave title"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Expand: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open/close"),
		),
		Play: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Rewind: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "rewind"),
		),
		Forward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "forward"),
		),
		Retry: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "retry upload"),
		),
		DiscardPending: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "discard upload"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
	}
}

// ShortHelp returns the list bindings shown under the cards.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Expand, k.Play, k.Quit}
}

// FullHelp returns every binding grouped by area.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Record, k.Save, k.Discard, k.Preview, k.Title},
		{k.Up, k.Down, k.Expand, k.Play, k.Rewind, k.Forward},
		{k.Retry, k.DiscardPending, k.Quit, k.ForceQuit},
	}
}
