package cards_test

import (
	"testing"

	"github.com/alkime/practice/internal/cards"
	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/pending"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id int64, name, uploader string) catalog.Record {
	return catalog.Record{ID: id, Name: name, Detail: "recording", UploaderID: uploader, SongID: "7", URL: "audios/x.wav"}
}

func upload(tempID, title string) pending.Upload {
	return pending.Upload{ //nolint:exhaustruct // only identity matters here
		TempID:     tempID,
		Title:      title,
		SongID:     "7",
		UploaderID: "me",
		MimeType:   "audio/wav",
		Status:     pending.StatusUploading,
	}
}

func titles(s cards.Section) []string {
	out := make([]string, 0, len(s.Cards))
	for _, c := range s.Cards {
		out = append(out, c.Title)
	}

	return out
}

func TestMerge(t *testing.T) {
	t.Parallel()

	confirmed := []catalog.Record{
		rec(1, "delta", "me"),
		rec(2, "Bravo", "me"),
		rec(3, "Zulu", "them"),
		rec(4, "alpha", "them"),
	}

	sections := cards.Merge(confirmed, []pending.Upload{upload("pending-1", "Charlie")}, "me")
	require.Len(t, sections, 2)

	assert.Equal(t, cards.OwnSection, sections[0].Title)
	assert.True(t, sections[0].Own)
	assert.Equal(t, []string{"Bravo", "Charlie", "delta"}, titles(sections[0]))
	assert.True(t, sections[0].Cards[1].Pending())

	assert.Equal(t, cards.OthersSection, sections[1].Title)
	assert.Equal(t, []string{"alpha", "Zulu"}, titles(sections[1]))
}

func TestMerge_EmptySectionsOmitted(t *testing.T) {
	t.Parallel()

	sections := cards.Merge([]catalog.Record{rec(1, "A", "them")}, nil, "me")
	require.Len(t, sections, 1)
	assert.Equal(t, cards.OthersSection, sections[0].Title)

	assert.Empty(t, cards.Merge(nil, nil, "me"))
}

func TestMerge_AccentsSortWithBaseLetters(t *testing.T) {
	t.Parallel()

	confirmed := []catalog.Record{rec(1, "Zeta", "me"), rec(2, "Élan", "me"), rec(3, "eco", "me")}

	sections := cards.Merge(confirmed, nil, "me")
	require.Len(t, sections, 1)
	assert.Equal(t, []string{"eco", "Élan", "Zeta"}, titles(sections[0]))
}

func TestCard_Item(t *testing.T) {
	t.Parallel()

	c := cards.FromRecord(rec(42, "Take", "me"))
	assert.Equal(t, "42", c.ID)
	assert.Equal(t, "audios/x.wav", c.Item().URL)

	u := upload("pending-9", "Take")
	u.Base64Data = "UklGRg=="

	p := cards.FromUpload(u)
	assert.Equal(t, []byte("RIFF"), p.Item().Data)
	assert.Equal(t, "audio/wav", p.Item().MimeType)
}

func TestList_OneExpanded(t *testing.T) {
	t.Parallel()

	l := cards.NewList()
	l.Replace(cards.Merge(
		[]catalog.Record{rec(1, "A", "me"), rec(2, "B", "me")},
		[]pending.Upload{upload("pending-1", "C")},
		"me",
	))

	require.Equal(t, 3, l.Len())

	collapsed, ok := l.Expand("1")
	assert.True(t, ok)
	assert.Empty(t, collapsed)
	assert.Equal(t, "1", l.Expanded())

	collapsed, ok = l.Expand("2")
	assert.True(t, ok)
	assert.Equal(t, "1", collapsed)
	assert.Equal(t, "2", l.Expanded())

	_, ok = l.Expand("pending-1")
	assert.False(t, ok, "pending cards do not expand")
	assert.Equal(t, "2", l.Expanded())

	collapsed, expanded := l.Toggle("2")
	assert.Equal(t, "2", collapsed)
	assert.False(t, expanded)
	assert.Empty(t, l.Expanded())

	_, expanded = l.Toggle("1")
	assert.True(t, expanded)
	assert.Equal(t, "1", l.Collapse())
	assert.Empty(t, l.Collapse())
}

func TestList_ReplaceKeepsSelection(t *testing.T) {
	t.Parallel()

	l := cards.NewList()
	l.Replace(cards.Merge([]catalog.Record{rec(1, "B", "me"), rec(2, "C", "me")}, nil, "me"))

	l.Move(1)
	sel, ok := l.Selected()
	require.True(t, ok)
	assert.Equal(t, "C", sel.Title)

	_, ok = l.Expand("2")
	require.True(t, ok)

	// A new take sorts ahead of the selection.
	l.Replace(cards.Merge([]catalog.Record{rec(1, "B", "me"), rec(2, "C", "me"), rec(3, "A", "me")}, nil, "me"))

	sel, ok = l.Selected()
	require.True(t, ok)
	assert.Equal(t, "C", sel.Title)
	assert.Equal(t, 2, l.Cursor())
	assert.Equal(t, "2", l.Expanded())

	// The expanded card was deleted elsewhere.
	l.Replace(cards.Merge([]catalog.Record{rec(3, "A", "me")}, nil, "me"))
	assert.Empty(t, l.Expanded())
	assert.Equal(t, 0, l.Cursor())

	l.Move(5)
	assert.Equal(t, 0, l.Cursor())

	l.Replace(nil)
	_, ok = l.Selected()
	assert.False(t, ok)
}
