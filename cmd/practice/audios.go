package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alkime/practice/internal/app"
	"github.com/alkime/practice/internal/config"
	"github.com/alkime/practice/internal/editor"
	"github.com/alkime/practice/internal/storage"
)

// AudiosCmd groups the lifecycle commands of confirmed takes.
type AudiosCmd struct {
	List   ListAudiosCmd  `cmd:"" help:"List the takes of a song"`
	Rename RenameAudioCmd `cmd:"" help:"Rename a take"`
	Delete DeleteAudioCmd `cmd:"" help:"Delete a take and its stored audio"`
}

// ListAudiosCmd prints a song's takes.
type ListAudiosCmd struct {
	Song string `arg:"" optional:"" help:"Song id (default: PRACTICE_SONG)"`
}

// Run executes the list command.
func (c *ListAudiosCmd) Run(cfg *config.Config) error {
	song := firstNonEmpty(c.Song, cfg.Song)
	if song == "" {
		return errors.New("missing song: pass it as an argument or set PRACTICE_SONG")
	}

	ctx := context.Background()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := a.Store.ListBySong(ctx, song)
	if err != nil {
		return fmt.Errorf("failed to list audios: %w", err)
	}

	if len(recs) == 0 {
		fmt.Printf("no takes for song %s\n", song)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUPLOADER\tURL")

	for _, r := range recs {
		url := storage.NormalizePath(r.URL, a.Objects.Bucket())
		if !storage.IsHTTPURL(url) {
			url = a.Objects.PublicURL(url)
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, r.UploaderID, url)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to print audios: %w", err)
	}

	return nil
}

// RenameAudioCmd renames a take. Without a name the current one is opened
// in the editor.
type RenameAudioCmd struct {
	ID   int64  `arg:"" help:"Audio id"`
	Name string `arg:"" optional:"" help:"New name"`
}

// Run executes the rename command.
func (c *RenameAudioCmd) Run(cfg *config.Config) error {
	ctx := context.Background()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.TrimSpace(c.Name)
	if name == "" {
		rec, err := a.Store.Get(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("failed to load audio: %w", err)
		}

		name, err = editor.EditLine(ctx, rec.Name, fmt.Sprintf("new name for audio %d", c.ID))
		if err != nil {
			return fmt.Errorf("failed to edit name: %w", err)
		}

		if name == rec.Name {
			fmt.Println("name unchanged")
			return nil
		}
	}

	if err := a.Admin().Rename(ctx, c.ID, name); err != nil {
		return err
	}

	fmt.Printf("audio %d renamed to %q\n", c.ID, name)

	return nil
}

// DeleteAudioCmd removes a take, storage object first.
type DeleteAudioCmd struct {
	ID  int64 `arg:"" help:"Audio id"`
	Yes bool  `short:"y" help:"Do not ask for confirmation"`
}

// Run executes the delete command.
func (c *DeleteAudioCmd) Run(cfg *config.Config) error {
	ctx := context.Background()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if !c.Yes {
		rec, err := a.Store.Get(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("failed to load audio: %w", err)
		}

		fmt.Printf("delete %q (audio %d)? [y/N] ", rec.Name, c.ID)

		var answer string
		if _, err := fmt.Scanln(&answer); err != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("cancelled")
			return nil
		}
	}

	if err := a.Admin().Delete(ctx, c.ID); err != nil {
		return err
	}

	fmt.Printf("audio %d deleted\n", c.ID)

	return nil
}
