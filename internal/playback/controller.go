package playback

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alkime/practice/internal/visualizer"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/singleflight"
)

// DefaultDurationWait bounds how long Seek waits for an unknown duration.
const DefaultDurationWait = 1200 * time.Millisecond

// Entry is the cached player and view state of one item.
type Entry struct {
	Item   Item
	Source Source
	Player Player
	Memo   *visualizer.Memo
	View   *visualizer.State
}

type Option func(*Controller)

func WithDurationWait(d time.Duration) Option {
	return func(c *Controller) { c.durationWait = d }
}

// WithWidth sets the visualizer width for new entries.
func WithWidth(width int) Option {
	return func(c *Controller) { c.width = width }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Controller) { c.client = client }
}

// WithEndedHook is called with the item id when a player reaches the end.
func WithEndedHook(fn func(id string)) Option {
	return func(c *Controller) { c.onEnded = fn }
}

// Controller owns every prepared player. Only one item plays at a time.
type Controller struct {
	resolver     Resolver
	factory      Factory
	vis          visualizer.Visualizer
	animator     *visualizer.Animator
	client       *http.Client
	durationWait time.Duration
	width        int
	onEnded      func(id string)

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*Entry
	current string
}

func NewController(resolver Resolver, factory Factory, vis visualizer.Visualizer, opts ...Option) *Controller {
	c := &Controller{
		resolver:     resolver,
		factory:      factory,
		vis:          vis,
		animator:     visualizer.NewAnimator(),
		client:       http.DefaultClient,
		durationWait: DefaultDurationWait,
		width:        60,
		onEnded:      nil,
		group:        singleflight.Group{},
		mu:           sync.Mutex{},
		entries:      map[string]*Entry{},
		current:      "",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) Visualizer() visualizer.Visualizer {
	return c.vis
}

// Prepare returns the cached entry for item, building it on first use.
// Concurrent calls for the same item share one build.
func (c *Controller) Prepare(ctx context.Context, item Item) (*Entry, error) {
	if e, ok := c.Entry(item.ID); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(item.ID, func() (any, error) {
		if e, ok := c.Entry(item.ID); ok {
			return e, nil
		}

		src, err := c.resolver.Resolve(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve audio %s: %w", item.ID, err)
		}

		id := item.ID

		player, err := c.factory.NewPlayer(ctx, src, Handlers{OnEnded: func() { c.ended(id) }})
		if err != nil {
			return nil, fmt.Errorf("failed to create player for %s: %w", item.ID, err)
		}

		e := &Entry{
			Item:   item,
			Source: src,
			Player: player,
			Memo:   &visualizer.Memo{}, //nolint:exhaustruct // zero value
			View:   c.vis.Build(c.width),
		}

		c.mu.Lock()
		c.entries[id] = e
		c.mu.Unlock()

		slog.Debug("audio prepared", "id", id, "remote", src.URL != "")

		return e, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped inside
	}

	e, _ := v.(*Entry)

	return e, nil
}

// Populate loads the item's amplitude data and applies it to its view.
// Decode failures leave the placeholder in place.
func (c *Controller) Populate(ctx context.Context, item Item) (*visualizer.Data, error) {
	e, err := c.Prepare(ctx, item)
	if err != nil {
		return nil, err
	}

	d, err := c.vis.Populate(ctx, e.Memo, e.Source.Loader(c.client))
	if err != nil {
		slog.Warn("failed to build waveform", "id", item.ID, "error", err)
		return nil, err //nolint:wrapcheck // logged with context
	}

	if d != nil {
		c.mu.Lock()
		c.vis.Attach(e.View, d)
		c.syncView(e)
		c.mu.Unlock()
	}

	return d, nil
}

// Toggle plays item, stopping whatever else is playing, or pauses it. It
// returns whether item is now playing and the command driving its frames.
func (c *Controller) Toggle(ctx context.Context, item Item) (bool, tea.Cmd, error) {
	e, err := c.Prepare(ctx, item)
	if err != nil {
		return false, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != "" && c.current != item.ID {
		c.stopLocked()
	}

	if !e.Player.Paused() {
		e.Player.Pause()
		c.animator.Stop(item.ID)
		c.current = ""

		return false, nil, nil
	}

	if err := e.Player.Play(); err != nil {
		c.animator.Stop(item.ID)
		c.vis.Reset(e.View)

		return false, nil, fmt.Errorf("failed to play audio %s: %w", item.ID, err)
	}

	c.current = item.ID
	c.syncView(e)

	return true, c.animator.Start(item.ID), nil
}

// Seek moves item's position by offset, clamped to [0, duration]. An
// unknown duration is waited for briefly.
func (c *Controller) Seek(ctx context.Context, item Item, offset time.Duration) error {
	e, err := c.Prepare(ctx, item)
	if err != nil {
		return err
	}

	dur, known := e.Player.Duration()
	if !known {
		timer := time.NewTimer(c.durationWait)

		select {
		case <-e.Player.Ready():
		case <-timer.C:
		case <-ctx.Done():
		}

		timer.Stop()

		dur, known = e.Player.Duration()
	}

	next := e.Player.Position() + offset
	if known {
		next = min(next, dur)
	}

	next = max(next, 0)

	if err := e.Player.Seek(next); err != nil {
		return fmt.Errorf("failed to seek audio %s: %w", item.ID, err)
	}

	c.mu.Lock()
	c.vis.ApplyPosition(e.View, next, dur)
	c.mu.Unlock()

	return nil
}

// Frame re-applies the playing item's position. It returns the next frame,
// or nil once the item stopped.
func (c *Controller) Frame(msg visualizer.FrameMsg) tea.Cmd {
	if !c.animator.Current(msg) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[msg.ID]
	if !ok || e.Player.Paused() {
		c.animator.Stop(msg.ID)
		return nil
	}

	c.syncView(e)

	return c.animator.Next(msg)
}

// Stop pauses and rewinds the playing item.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
}

// Collapse stops id if it is playing and resets its view. The entry and its
// decoded data stay cached.
func (c *Controller) Collapse(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == id {
		c.stopLocked()
		return
	}

	c.animator.Stop(id)

	if e, ok := c.entries[id]; ok {
		c.vis.Reset(e.View)
	}
}

// ClearAll stops and releases every cached player.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	for id, e := range c.entries {
		c.animator.Stop(id)
		e.Player.Pause()

		if err := e.Player.Close(); err != nil {
			slog.Warn("failed to close player", "id", id, "error", err)
		}
	}

	clear(c.entries)
}

// Forget releases one entry, used when an item is deleted.
func (c *Controller) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == id {
		c.stopLocked()
	}

	e, ok := c.entries[id]
	if !ok {
		return
	}

	c.animator.Stop(id)
	delete(c.entries, id)

	if err := e.Player.Close(); err != nil {
		slog.Warn("failed to close player", "id", id, "error", err)
	}
}

func (c *Controller) Resize(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.width = width
	for _, e := range c.entries {
		c.vis.Resize(e.View, width)
	}
}

func (c *Controller) Playing(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current == id && id != ""
}

// Current is the playing item's id, or empty.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

func (c *Controller) Entry(id string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]

	return e, ok
}

// Render draws id's visualizer, or nothing if it was never prepared.
func (c *Controller) Render(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return ""
	}

	return c.vis.Render(e.View)
}

func (c *Controller) ended(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == id {
		c.stopLocked()
	} else if e, ok := c.entries[id]; ok {
		c.animator.Stop(id)
		c.vis.Reset(e.View)
	}

	if c.onEnded != nil {
		go c.onEnded(id)
	}
}

func (c *Controller) stopLocked() {
	id := c.current
	c.current = ""

	if id == "" {
		return
	}

	c.animator.Stop(id)

	e, ok := c.entries[id]
	if !ok {
		return
	}

	e.Player.Pause()

	if err := e.Player.Seek(0); err != nil {
		slog.Debug("failed to rewind player", "id", id, "error", err)
	}

	c.vis.Reset(e.View)
}

func (c *Controller) syncView(e *Entry) {
	dur, _ := e.Player.Duration()
	c.vis.ApplyPosition(e.View, e.Player.Position(), dur)
}
