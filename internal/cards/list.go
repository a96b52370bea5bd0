package cards

// List is the navigable card list. At most one card is expanded, and only
// confirmed cards expand.
type List struct {
	sections []Section
	flat     []Card
	cursor   int
	expanded string
}

func NewList() *List {
	return &List{sections: nil, flat: nil, cursor: 0, expanded: ""}
}

// Replace swaps in freshly merged sections. The cursor stays on the same
// card when it still exists; the expanded card is dropped if it is gone.
func (l *List) Replace(sections []Section) {
	var selected string
	if c, ok := l.Selected(); ok {
		selected = c.ID
	}

	l.sections = sections
	l.flat = nil

	for _, s := range sections {
		l.flat = append(l.flat, s.Cards...)
	}

	l.cursor = min(l.cursor, max(len(l.flat)-1, 0))

	if i := l.index(selected); i >= 0 {
		l.cursor = i
	}

	if c, ok := l.Find(l.expanded); !ok || c.Pending() {
		l.expanded = ""
	}
}

func (l *List) Sections() []Section { return l.sections }

func (l *List) Cards() []Card { return l.flat }

func (l *List) Len() int { return len(l.flat) }

func (l *List) Cursor() int { return l.cursor }

func (l *List) Selected() (Card, bool) {
	if l.cursor < 0 || l.cursor >= len(l.flat) {
		return Card{}, false //nolint:exhaustruct // not found
	}

	return l.flat[l.cursor], true
}

// Move shifts the cursor by delta, stopping at either end.
func (l *List) Move(delta int) {
	if len(l.flat) == 0 {
		l.cursor = 0
		return
	}

	l.cursor = min(max(l.cursor+delta, 0), len(l.flat)-1)
}

func (l *List) Find(id string) (Card, bool) {
	if i := l.index(id); i >= 0 {
		return l.flat[i], true
	}

	return Card{}, false //nolint:exhaustruct // not found
}

// Expanded is the expanded card's id, or empty.
func (l *List) Expanded() string { return l.expanded }

// Expand opens id and returns the card it closed, if any. Expanding the
// open card or a pending card changes nothing.
func (l *List) Expand(id string) (collapsed string, ok bool) {
	c, found := l.Find(id)
	if !found || c.Pending() {
		return "", false
	}

	if l.expanded == id {
		return "", true
	}

	collapsed = l.expanded
	l.expanded = id

	return collapsed, true
}

// Collapse closes the expanded card and returns its id.
func (l *List) Collapse() string {
	id := l.expanded
	l.expanded = ""

	return id
}

// Toggle collapses id if it is open, otherwise expands it. It returns the
// card that was closed, if any, and whether id is now expanded.
func (l *List) Toggle(id string) (collapsed string, expanded bool) {
	if l.expanded == id && id != "" {
		return l.Collapse(), false
	}

	collapsed, ok := l.Expand(id)

	return collapsed, ok
}

func (l *List) index(id string) int {
	if id == "" {
		return -1
	}

	for i, c := range l.flat {
		if c.ID == id {
			return i
		}
	}

	return -1
}
