// Package cards merges confirmed and pending takes into the sections shown
// under the recorder, and tracks which card is expanded.
package cards

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/pending"
	"github.com/alkime/practice/internal/playback"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	OwnSection    = "Your takes"
	OthersSection = "Other users"
)

type Kind int

const (
	Confirmed Kind = iota
	Pending
)

// Card is one row in the list: a stored audio or a pending upload.
type Card struct {
	ID     string
	Kind   Kind
	Title  string
	Record catalog.Record
	Upload pending.Upload
}

func FromRecord(r catalog.Record) Card {
	return Card{
		ID:     strconv.FormatInt(r.ID, 10),
		Kind:   Confirmed,
		Title:  r.Name,
		Record: r,
		Upload: pending.Upload{}, //nolint:exhaustruct // confirmed card
	}
}

func FromUpload(u pending.Upload) Card {
	return Card{
		ID:     u.TempID,
		Kind:   Pending,
		Title:  u.Title,
		Record: catalog.Record{}, //nolint:exhaustruct // pending card
		Upload: u,
	}
}

func (c Card) Pending() bool { return c.Kind == Pending }

// Item is the playable form of the card. Pending cards play their local
// payload.
func (c Card) Item() playback.Item {
	if c.Kind == Pending {
		data, _ := c.Upload.Payload()
		return playback.Item{ID: c.ID, URL: "", MimeType: c.Upload.MimeType, Data: data}
	}

	return playback.Item{ID: c.ID, URL: c.Record.URL, MimeType: "", Data: nil}
}

type Section struct {
	Title string
	Own   bool
	Cards []Card
}

// Merge partitions cards by owner and sorts each section by title, ignoring
// case. Pending uploads always belong to userID. Empty sections are left out.
func Merge(confirmed []catalog.Record, uploads []pending.Upload, userID string) []Section {
	var own, others []Card

	for _, r := range confirmed {
		if userID != "" && r.UploaderID == userID {
			own = append(own, FromRecord(r))
		} else {
			others = append(others, FromRecord(r))
		}
	}

	for _, u := range uploads {
		own = append(own, FromUpload(u))
	}

	col := collate.New(language.Und, collate.IgnoreCase)
	byTitle := func(a, b Card) int {
		return cmp.Or(
			col.CompareString(a.Title, b.Title),
			strings.Compare(a.Title, b.Title),
			cmp.Compare(a.Kind, b.Kind),
			strings.Compare(a.ID, b.ID),
		)
	}

	slices.SortStableFunc(own, byTitle)
	slices.SortStableFunc(others, byTitle)

	var sections []Section
	if len(own) > 0 {
		sections = append(sections, Section{Title: OwnSection, Own: true, Cards: own})
	}

	if len(others) > 0 {
		sections = append(sections, Section{Title: OthersSection, Own: false, Cards: others})
	}

	return sections
}
