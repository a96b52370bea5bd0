package pending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/storage"
)

const prepareTimeout = 2 * time.Second

// Uploader delivers an upload by storing the object and then inserting the
// catalog row. Both must succeed for the upload to count as delivered.
type Uploader struct {
	objects  storage.ObjectStore
	store    catalog.Store
	notifier catalog.Notifier
	folder   string
}

func NewUploader(objects storage.ObjectStore, store catalog.Store, notifier catalog.Notifier) *Uploader {
	if notifier == nil {
		notifier = catalog.NopNotifier{}
	}

	return &Uploader{
		objects:  objects,
		store:    store,
		notifier: notifier,
		folder:   objects.Bucket(),
	}
}

// Prepare resolves the song column and next id at save time. Failures are
// ignored; Deliver allocates whatever is still missing.
func (up *Uploader) Prepare(ctx context.Context, u *Upload) {
	ctx, cancel := context.WithTimeout(ctx, prepareTimeout)
	defer cancel()

	if col, err := up.store.SongColumn(ctx); err == nil {
		u.SongColumn = col
	} else {
		slog.Debug("song column unavailable at save time", "error", err)
	}

	if id, err := up.store.NextID(ctx); err == nil {
		u.NextAudioID = id
	} else {
		slog.Debug("next audio id unavailable at save time", "error", err)
	}
}

func (up *Uploader) Deliver(ctx context.Context, u *Upload, checkpoint func(*Upload) error) error {
	data, err := u.Payload()
	if err != nil {
		return err
	}

	if err := up.allocate(ctx, u, checkpoint); err != nil {
		return err
	}

	if !u.Uploaded {
		if err := up.objects.Upload(ctx, u.ObjectPath, data, u.MimeType); err != nil {
			return fmt.Errorf("failed to upload object: %w", err)
		}

		u.Uploaded = true
		if err := checkpoint(u); err != nil {
			return err
		}
	}

	rec := catalog.Record{
		ID:         u.NextAudioID,
		Name:       u.Title,
		Detail:     catalog.DefaultDetail,
		UploaderID: u.UploaderID,
		SongID:     u.SongID,
		URL:        u.ObjectPath,
	}

	if err := up.store.Insert(ctx, rec, u.SongColumn); err != nil {
		return up.insertFailed(ctx, u, checkpoint, err)
	}

	up.publish(ctx, u)

	return nil
}

// allocate fills in the song column, id and object path if still missing.
func (up *Uploader) allocate(ctx context.Context, u *Upload, checkpoint func(*Upload) error) error {
	changed := false

	if u.SongColumn == "" {
		col, err := up.store.SongColumn(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve song column: %w", err)
		}

		u.SongColumn = col
		changed = true
	}

	if u.NextAudioID == 0 {
		id, err := up.store.NextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to allocate audio id: %w", err)
		}

		u.NextAudioID = id
		changed = true
	}

	if u.ObjectPath == "" {
		u.ObjectPath = storage.ObjectPath(up.folder, u.NextAudioID, u.Title, u.MimeType)
		u.Uploaded = false
		changed = true
	}

	if !changed {
		return nil
	}

	return checkpoint(u)
}

func (up *Uploader) insertFailed(ctx context.Context, u *Upload, checkpoint func(*Upload) error, err error) error {
	switch {
	case errors.Is(err, catalog.ErrDuplicate):
		// A previous attempt may have inserted the row before the client
		// lost track of it. The same object path means it was ours.
		if existing, getErr := up.store.Get(ctx, u.NextAudioID); getErr == nil && existing.URL == u.ObjectPath {
			slog.Info("audio row already present, treating as delivered", "tempId", u.TempID, "audioId", u.NextAudioID)
			up.publish(ctx, u)

			return nil
		}

		// Someone else took the id. Allocate a new one next attempt; the
		// object already stored under the old path is left orphaned.
		u.NextAudioID = 0
		u.ObjectPath = ""
		u.Uploaded = false
	case errors.Is(err, catalog.ErrNoSongColumn):
		u.SongColumn = ""
	default:
		return fmt.Errorf("failed to insert audio row: %w", err)
	}

	if cpErr := checkpoint(u); cpErr != nil {
		return cpErr
	}

	return fmt.Errorf("failed to insert audio row: %w", err)
}

func (up *Uploader) publish(ctx context.Context, u *Upload) {
	err := up.notifier.Publish(ctx, catalog.Change{SongID: u.SongID, AudioID: u.NextAudioID})
	if err != nil {
		slog.Warn("failed to publish audio change", "songId", u.SongID, "error", err)
	}
}
