package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alkime/practice/internal/app"
	"github.com/alkime/practice/internal/audio"
	"github.com/alkime/practice/internal/capture"
	"github.com/alkime/practice/internal/config"
	"github.com/alkime/practice/internal/logger"
	"github.com/alkime/practice/internal/pending"
	"github.com/alkime/practice/internal/playback"
	"github.com/alkime/practice/internal/recorder"
	"github.com/alkime/practice/internal/tui"
	"github.com/alkime/practice/internal/visualizer"
	tea "github.com/charmbracelet/bubbletea"
)

// TUICmd is the default command that runs the TUI.
type TUICmd struct {
	Song       string `flag:"" optional:"" help:"Song id the takes belong to (default: PRACTICE_SONG)"`
	User       string `flag:"" optional:"" help:"Uploader id of this musician (default: PRACTICE_USER)"`
	Visualizer string `flag:"" optional:"" help:"Playback visualizer: waveform or slider"`
	NoResume   bool   `flag:"" help:"Do not deliver queued uploads at startup"`
}

// Run executes the TUI command.
//
//nolint:funlen // CLI command with multiple setup steps
func (c *TUICmd) Run(cfg *config.Config) error {
	song := firstNonEmpty(c.Song, cfg.Song)
	user := firstNonEmpty(c.User, cfg.User)

	if song == "" {
		return errors.New("missing song: pass --song or set PRACTICE_SONG")
	}

	if c.Visualizer != "" {
		cfg.Visualizer = c.Visualizer
	}

	mode, err := visualizer.ParseMode(cfg.Visualizer)
	if err != nil {
		return fmt.Errorf("invalid visualizer: %w", err)
	}

	// The terminal belongs to the UI, so logs go to the rotating file.
	_, logFile, err := logger.SetupLogger(cfg, logger.ModeTUI)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	events := make(chan pending.Event, 32)
	if err := a.Queue.Subscribe(events); err != nil {
		return fmt.Errorf("failed to subscribe to queue events: %w", err)
	}

	if err := a.Queue.Start(ctx); err != nil {
		return err
	}

	changes, err := a.Notifier.Subscribe(ctx, song)
	if err != nil {
		// The list still refreshes after local saves.
		slog.Warn("realtime updates unavailable", "song", song, "error", err)
		changes = nil
	}

	backend := capture.MalgoBackend{}
	engine := capture.NewProbingEngine(
		capture.NewPCMEngine(backend, cfg.SampleRate),
		capture.NewChunkedEngine(backend, cfg.SampleRate),
	)

	var sessionOpts []recorder.Option
	if user != "" {
		sessionOpts = append(sessionOpts, recorder.WithUploader(user))
	}

	session := recorder.NewSession(engine, a.Queue, sessionOpts...)

	client := &http.Client{Timeout: 30 * time.Second} //nolint:exhaustruct // defaults
	pb := playback.NewController(
		playback.NewStorageResolver(a.Objects),
		playback.NewDevicePlayerFactory(client),
		visualizer.New(mode),
		playback.WithHTTPClient(client),
	)
	defer pb.ClearAll()

	model := tui.New(tui.Config{
		Context:  ctx,
		Cancel:   cancel,
		SongID:   song,
		UserID:   user,
		SeekStep: cfg.SeekStep(),
		Resume:   !c.NoResume,
	}, tui.Deps{
		Session:  session,
		Queue:    a.Queue,
		Catalog:  a.Store,
		Playback: pb,
		Events:   events,
		Changes:  changes,
	})

	slog.Info("starting practice session", "song", song, "user", user, "visualizer", mode)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	if left, err := a.Queue.List(context.Background(), song); err == nil && len(left) > 0 {
		fmt.Printf("%d take(s) still waiting to upload; run 'practice resume --song %s'\n", len(left), song)
	}

	fmt.Println("bye!")

	return nil
}

// ResumeCmd delivers the queued uploads of a song without the UI.
type ResumeCmd struct {
	Song string `flag:"" optional:"" help:"Song id (default: PRACTICE_SONG); empty resumes every song"`
}

// Run executes the resume command.
func (c *ResumeCmd) Run(cfg *config.Config) error {
	ctx := context.Background()
	song := firstNonEmpty(c.Song, cfg.Song)

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	queued, err := a.Queue.List(ctx, song)
	if err != nil {
		return fmt.Errorf("failed to read pending uploads: %w", err)
	}

	if len(queued) == 0 {
		fmt.Println("nothing to upload")
		return nil
	}

	slog.Info("resuming pending uploads", "song", song, "count", len(queued))

	if err := a.Queue.Resume(ctx, song); err != nil {
		return fmt.Errorf("failed to resume uploads: %w", err)
	}

	left, err := a.Queue.List(ctx, song)
	if err != nil {
		return fmt.Errorf("failed to read pending uploads: %w", err)
	}

	fmt.Printf("delivered %d of %d take(s)\n", len(queued)-len(left), len(queued))

	for _, u := range left {
		fmt.Printf("  %s %q: %s\n", u.TempID, u.Title, u.Error)
	}

	return nil
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	adev := audio.NewDevice(nil)

	devices, err := adev.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", strings.Join(dev.Formats, ","),
		)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}
