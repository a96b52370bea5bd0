// Package recorder holds the state machine behind the recorder panel.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alkime/practice/internal/capture"
	"github.com/alkime/practice/internal/pending"
	"github.com/alkime/practice/pkg/uictl"
)

var (
	ErrNoSong       = errors.New("no song selected")
	ErrEmptyTitle   = errors.New("title is required")
	ErrBusy         = errors.New("upload already in progress")
	ErrInvalidState = errors.New("invalid recorder state")
)

type State int

const (
	Idle State = iota
	Recording
	Stopped
	Uploading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Uploading:
		return "uploading"
	}

	return "unknown"
}

// Saver persists a finished take before any network call is made.
type Saver interface {
	Submit(ctx context.Context, d pending.Draft) (pending.Upload, error)
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithUploader sets the user id stamped on saved takes.
func WithUploader(userID string) Option {
	return func(s *Session) { s.uploaderID = userID }
}

// Session is one recorder panel. Only one take is held at a time.
type Session struct {
	engine     capture.Engine
	saver      Saver
	now        func() time.Time
	uploaderID string

	mu                sync.Mutex
	state             State
	songID            string
	startedAt         time.Time
	stoppedAt         time.Time
	result            capture.Result
	tempID            string
	err               error
	keepVisible       bool
	pendingTitleFocus bool
}

func NewSession(engine capture.Engine, saver Saver, opts ...Option) *Session {
	s := &Session{ //nolint:exhaustruct // zero state is Idle
		engine: engine,
		saver:  saver,
		now:    time.Now,
		state:  Idle,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start arms the capture engine for songID. Calling it while already
// recording does nothing.
func (s *Session) Start(ctx context.Context, songID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Recording:
		return nil
	case Uploading:
		return ErrBusy
	case Idle, Stopped:
	}

	if songID == "" {
		return ErrNoSong
	}

	if s.state == Stopped {
		// An unsaved take would be lost. A queued one is safe in the
		// pending queue and can be left behind.
		if s.tempID == "" {
			return fmt.Errorf("%w: save or discard the current take first", ErrInvalidState)
		}

		s.resetLocked()
	}

	if err := s.engine.Start(ctx); err != nil {
		s.err = err
		return fmt.Errorf("failed to start recording: %w", err)
	}

	s.state = Recording
	s.songID = songID
	s.startedAt = s.now()
	s.stoppedAt = time.Time{}
	s.result = capture.Result{} //nolint:exhaustruct // cleared
	s.err = nil
	s.keepVisible = true
	s.pendingTitleFocus = false

	slog.Debug("recording started", "songId", songID)

	return nil
}

// Stop ends capture and holds the encoded take for preview and save.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording {
		return fmt.Errorf("%w: not recording", ErrInvalidState)
	}

	s.stoppedAt = s.now()

	res, err := s.engine.Stop(ctx)
	if err != nil {
		s.state = Idle
		s.err = err
		s.keepVisible = false

		return fmt.Errorf("failed to stop recording: %w", err)
	}

	s.state = Stopped
	s.result = res
	s.pendingTitleFocus = true

	slog.Debug("recording stopped", "songId", s.songID, "bytes", len(res.Data), "mimeType", res.MimeType)

	return nil
}

// Discard drops the current take. A recording in progress is torn down.
func (s *Session) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Uploading:
		return ErrBusy
	case Recording:
		s.engine.Discard(ctx)
	case Idle, Stopped:
	}

	s.resetLocked()

	return nil
}

// Save queues the take under title and returns its temp id. The caller
// delivers it and reports back through Delivered. Saving again after a
// failed delivery returns the same temp id.
func (s *Session) Save(ctx context.Context, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Uploading:
		return "", ErrBusy
	case Stopped:
	case Idle, Recording:
		return "", fmt.Errorf("%w: nothing to save", ErrInvalidState)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		s.pendingTitleFocus = true
		return "", ErrEmptyTitle
	}

	if s.tempID != "" {
		s.state = Uploading
		s.err = nil

		return s.tempID, nil
	}

	u, err := s.saver.Submit(ctx, pending.Draft{
		Title:      title,
		SongID:     s.songID,
		UploaderID: s.uploaderID,
		MimeType:   s.result.MimeType,
		Data:       s.result.Data,
	})
	if err != nil {
		s.err = err
		return "", fmt.Errorf("failed to queue recording: %w", err)
	}

	s.tempID = u.TempID
	s.state = Uploading
	s.err = nil
	s.pendingTitleFocus = false

	return s.tempID, nil
}

// Delivered reports the outcome of the delivery started by Save. Reports
// for other temp ids are ignored.
func (s *Session) Delivered(tempID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Uploading || tempID != s.tempID {
		return
	}

	if err != nil {
		s.state = Stopped
		s.err = err

		return
	}

	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.state = Idle
	s.startedAt = time.Time{}
	s.stoppedAt = time.Time{}
	s.result = capture.Result{} //nolint:exhaustruct // cleared
	s.tempID = ""
	s.err = nil
	s.keepVisible = false
	s.pendingTitleFocus = false
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Recording() bool {
	return s.State() == Recording
}

func (s *Session) SongID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.songID
}

// TempID is the queued take's id, empty until the first save.
func (s *Session) TempID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tempID
}

// Elapsed is the recording time, frozen once stopped.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Recording:
		return s.now().Sub(s.startedAt)
	case Stopped, Uploading:
		return s.stoppedAt.Sub(s.startedAt)
	case Idle:
	}

	return 0
}

// Timer formats Elapsed as m:ss.
func (s *Session) Timer() string {
	return FormatTimer(s.Elapsed())
}

func FormatTimer(d time.Duration) string {
	secs := max(int(d/time.Second), 0)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// KeepVisible reports whether the panel should stay on screen.
func (s *Session) KeepVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.keepVisible
}

// PendingTitleFocus reports whether the title field should take focus.
func (s *Session) PendingTitleFocus() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pendingTitleFocus
}

// TitleFocused acknowledges PendingTitleFocus.
func (s *Session) TitleFocused() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingTitleFocus = false
}

// Result is the stopped take, if any.
func (s *Session) Result() (capture.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result, len(s.result.Data) > 0
}

// Err is the last failure, cleared by the next successful transition.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Meter exposes the live input levels for the panel's level display.
func (s *Session) Meter() uictl.Levels[int16] {
	return meter{engine: s.engine}
}

// Toggle starts or stops recording for songID.
func (s *Session) Toggle(ctx context.Context, songID string) error {
	if s.Recording() {
		return s.Stop(ctx)
	}

	return s.Start(ctx, songID)
}

type meter struct {
	engine capture.Engine
}

func (m meter) Read() []int16 {
	if !m.engine.Active() {
		return nil
	}

	return m.engine.Levels()
}
