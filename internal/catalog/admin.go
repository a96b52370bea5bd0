package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkime/practice/internal/storage"
)

// Admin runs the rename and delete lifecycle of confirmed takes.
type Admin struct {
	Objects storage.ObjectStore
	Store   Store
}

func (a Admin) Rename(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("audio %d: name cannot be empty", id)
	}

	if err := a.Store.Rename(ctx, id, name); err != nil {
		return fmt.Errorf("failed to rename audio: %w", err)
	}

	slog.Info("renamed audio", "id", id, "name", name)

	return nil
}

// Delete removes the storage object before the row. A row is never left
// pointing at a missing object; an orphaned object is acceptable.
func (a Admin) Delete(ctx context.Context, id int64) error {
	rec, err := a.Store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load audio: %w", err)
	}

	path := storage.NormalizePath(rec.URL, a.Objects.Bucket())
	if path != "" && !storage.IsHTTPURL(path) {
		if _, err := a.Objects.Remove(ctx, path); err != nil {
			return fmt.Errorf("failed to remove storage object, row kept: %w", err)
		}
	}

	if err := a.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete audio row: %w", err)
	}

	slog.Info("deleted audio", "id", id, "path", path)

	return nil
}
