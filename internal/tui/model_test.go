//nolint:funlen // Test file
package tui_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alkime/practice/internal/capture"
	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/pending"
	"github.com/alkime/practice/internal/playback"
	"github.com/alkime/practice/internal/recorder"
	"github.com/alkime/practice/internal/storage"
	"github.com/alkime/practice/internal/tui"
	"github.com/alkime/practice/internal/visualizer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:gochecknoinits // recommend for CI by bubbletea folks
func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

const songID = "7"

type fakeEngine struct {
	mu     sync.Mutex
	active bool
}

func (e *fakeEngine) Start(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = true

	return nil
}

func (e *fakeEngine) Stop(context.Context) (capture.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = false

	return capture.Result{Data: []byte("RIFFtake"), MimeType: "audio/wav", Duration: time.Second}, nil
}

func (e *fakeEngine) Discard(context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = false
}

func (e *fakeEngine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.active
}

func (e *fakeEngine) Levels() []int16 { return []int16{1200, -800, 400} }

type fakePlayer struct {
	mu     sync.Mutex
	paused bool
	pos    time.Duration
	ready  chan struct{}
}

func newFakePlayer() *fakePlayer {
	p := &fakePlayer{mu: sync.Mutex{}, paused: true, pos: 0, ready: make(chan struct{})}
	close(p.ready)

	return p
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = false

	return nil
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = true
}

func (p *fakePlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.paused
}

func (p *fakePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pos
}

func (p *fakePlayer) Duration() (time.Duration, bool) { return 10 * time.Second, true }

func (p *fakePlayer) Ready() <-chan struct{} { return p.ready }

func (p *fakePlayer) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pos = pos

	return nil
}

func (p *fakePlayer) Close() error { return nil }

type harness struct {
	objects  *storage.MemoryStore
	store    *catalog.MemoryStore
	notifier *catalog.LocalNotifier
	queue    *pending.Queue
	tm       *teatest.TestModel
}

func newHarness(t *testing.T, prepare func(h *harness)) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		objects:  storage.NewMemoryStore("audios"),
		store:    catalog.NewMemoryStore("song_id"),
		notifier: catalog.NewLocalNotifier(),
		queue:    nil,
		tm:       nil,
	}

	up := pending.NewUploader(h.objects, h.store, h.notifier)
	h.queue = pending.NewQueue(pending.NewMemoryKV(), up, pending.DefaultPolicy(),
		pending.WithPreparer(up),
		pending.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)

	events := make(chan pending.Event, 16)
	require.NoError(t, h.queue.Subscribe(events))
	require.NoError(t, h.queue.Start(ctx))

	changes, err := h.notifier.Subscribe(ctx, songID)
	require.NoError(t, err)

	if prepare != nil {
		prepare(h)
	}

	factory := playback.FactoryFunc(func(context.Context, playback.Source, playback.Handlers) (playback.Player, error) {
		return newFakePlayer(), nil
	})
	pb := playback.NewController(playback.NewStorageResolver(h.objects), factory, visualizer.NewSlider())

	session := recorder.NewSession(&fakeEngine{}, h.queue, recorder.WithUploader("user-1")) //nolint:exhaustruct // zero engine

	m := tui.New(tui.Config{
		Context:  ctx,
		Cancel:   cancel,
		SongID:   songID,
		UserID:   "user-1",
		SeekStep: 5 * time.Second,
		Resume:   false,
	}, tui.Deps{
		Session:  session,
		Queue:    h.queue,
		Catalog:  h.store,
		Playback: pb,
		Events:   events,
		Changes:  changes,
	})

	h.tm = teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 40))

	return h
}

func (h *harness) quit(t *testing.T) {
	t.Helper()

	h.tm.Send(keyRunes("q"))
	h.tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func seedIntro(h *harness) {
	h.store.Seed(catalog.Record{
		ID:         1,
		Name:       "Intro",
		Detail:     "recording",
		UploaderID: "user-1",
		SongID:     songID,
		URL:        "audios/1-intro.wav",
	})
}

func recordTake(t *testing.T, h *harness, title string) {
	t.Helper()

	checker := defaultChecker()

	h.tm.Send(keyRunes("r"))
	checker.CheckString(t, h.tm, "● REC")

	h.tm.Send(keyRunes("r"))
	checker.CheckString(t, h.tm, "Take ready")

	h.tm.Type(title)
	h.tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModel_RecordAndSave(t *testing.T) {
	t.Parallel()

	h := newHarness(t, seedIntro)
	checker := defaultChecker()

	checker.CheckString(t, h.tm, "Intro")

	recordTake(t, h, "Bridge idea")
	checker.CheckString(t, h.tm, `Saved "Bridge idea"`)

	recs, err := h.store.ListBySong(context.Background(), songID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, catalog.Record{
		ID:         2,
		Name:       "Bridge idea",
		Detail:     "recording",
		UploaderID: "user-1",
		SongID:     songID,
		URL:        "audios/2-bridge-idea.wav",
	}, recs[0])

	left, err := h.queue.List(context.Background(), songID)
	require.NoError(t, err)
	assert.Empty(t, left)

	h.quit(t)
}

func TestModel_FailedUploadRetriedFromList(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(h *harness) {
		h.objects.FailNextUploads(3)
	})
	checker := defaultChecker()

	checker.CheckString(t, h.tm, "No takes yet")

	recordTake(t, h, "Verse")
	checker.CheckStrings(t, h.tm, "press enter to try again", "retry upload")

	failed, err := h.queue.List(context.Background(), songID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Failed())
	assert.Equal(t, 3, failed[0].RetryCount)

	// The panel lets go of the take once the list delivers it.
	h.tm.Send(keyRunes("R"))
	checker.CheckStrings(t, h.tm, `Saved "Verse"`, "Ready to record a take")

	require.Eventually(t, func() bool {
		recs, err := h.store.ListBySong(context.Background(), songID)
		return err == nil && len(recs) == 1 && recs[0].URL == "audios/1-verse.wav"
	}, time.Second, 20*time.Millisecond)

	h.quit(t)
}

func TestModel_PlayAndSeek(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(h *harness) {
		seedIntro(h)
		require.NoError(t, h.objects.Upload(context.Background(), "audios/1-intro.wav", []byte("RIFFintro"), "audio/wav"))
	})
	checker := defaultChecker()

	checker.CheckString(t, h.tm, "Intro")

	h.tm.Send(tea.KeyMsg{Type: tea.KeySpace})
	checker.CheckStrings(t, h.tm, "▶ playing", "0:00 / 0:10")

	h.tm.Send(tea.KeyMsg{Type: tea.KeyRight})
	checker.CheckString(t, h.tm, "0:05 / 0:10")

	h.tm.Send(tea.KeyMsg{Type: tea.KeyLeft})
	h.tm.Send(tea.KeyMsg{Type: tea.KeyLeft})
	checker.CheckString(t, h.tm, "0:00 / 0:10")

	h.quit(t)
}

func TestModel_ReloadsOnChange(t *testing.T) {
	t.Parallel()

	h := newHarness(t, seedIntro)
	checker := defaultChecker()

	checker.CheckString(t, h.tm, "Intro")

	h.store.Seed(catalog.Record{
		ID:         5,
		Name:       "Outro",
		Detail:     "recording",
		UploaderID: "user-2",
		SongID:     songID,
		URL:        "audios/5-outro.wav",
	})
	require.NoError(t, h.notifier.Publish(context.Background(), catalog.Change{SongID: songID, AudioID: 5}))

	checker.CheckStrings(t, h.tm, "Outro", "user-2")

	h.quit(t)
}

func TestModel_DiscardTake(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	checker := defaultChecker()

	h.tm.Send(keyRunes("r"))
	checker.CheckString(t, h.tm, "● REC")

	h.tm.Send(keyRunes("x"))
	checker.CheckString(t, h.tm, "Take discarded")

	left, err := h.queue.List(context.Background(), songID)
	require.NoError(t, err)
	assert.Empty(t, left)

	h.quit(t)
}

type outputChecker struct {
	intervl, timeout time.Duration
}

func defaultChecker() outputChecker {
	return outputChecker{intervl: 50 * time.Millisecond, timeout: 2 * time.Second}
}

func (o outputChecker) Check(t *testing.T, tm *teatest.TestModel, check func(buf []byte) bool) {
	t.Helper()

	teatest.WaitFor(t, tm.Output(), check,
		teatest.WithCheckInterval(o.intervl),
		teatest.WithDuration(o.timeout))
}

func (o outputChecker) CheckString(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()

	o.Check(t, tm, func(buf []byte) bool {
		return bytes.Contains(buf, []byte(substr))
	})
}

// CheckStrings waits until every substring was written. Output is consumed
// by each check, so strings from the same frame must be checked together.
func (o outputChecker) CheckStrings(t *testing.T, tm *teatest.TestModel, substrs ...string) {
	t.Helper()

	o.Check(t, tm, func(buf []byte) bool {
		for _, s := range substrs {
			if !bytes.Contains(buf, []byte(s)) {
				return false
			}
		}

		return true
	})
}
