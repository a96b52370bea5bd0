package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alkime/practice/internal/catalog"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openAudios creates an audios table whose song column is named songColumn.
func openAudios(t *testing.T, songColumn string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "catalog.db")), &gorm.Config{ //nolint:exhaustruct // defaults
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = catalog.CloseGorm(db) })

	require.NoError(t, db.Exec(`CREATE TABLE audios (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		detail TEXT,
		uploader_id TEXT,
		url TEXT,
		`+songColumn+` TEXT
	)`).Error)

	return db
}

func seedRow(t *testing.T, db *gorm.DB, songColumn string, id int64, name string, songID any) {
	t.Helper()

	require.NoError(t, db.Exec(
		"INSERT INTO audios (id, name, detail, uploader_id, url, "+songColumn+") VALUES (?, ?, 'recording', 'user-1', ?, ?)",
		id, name, "audios/"+name+".wav", songID,
	).Error)
}

func TestGormStore_SongColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		column string
		seed   func(t *testing.T, db *gorm.DB)
	}{
		{
			name:   "first candidate with string ids",
			column: "relational_song_id",
			seed: func(t *testing.T, db *gorm.DB) {
				t.Helper()
				seedRow(t, db, "relational_song_id", 1, "intro", "song-abc")
			},
		},
		{
			name:   "later candidate",
			column: "cancion_id",
			seed: func(t *testing.T, db *gorm.DB) {
				t.Helper()
				seedRow(t, db, "cancion_id", 1, "intro", "7")
			},
		},
		{
			name:   "null in first row",
			column: "song_id",
			seed: func(t *testing.T, db *gorm.DB) {
				t.Helper()
				seedRow(t, db, "song_id", 1, "orphan", nil)
				seedRow(t, db, "song_id", 2, "intro", "song-abc")
			},
		},
		{
			name:   "empty table",
			column: "song_id",
			seed:   func(*testing.T, *gorm.DB) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := openAudios(t, tt.column)
			tt.seed(t, db)

			store, err := catalog.NewGormStore(db, nil)
			require.NoError(t, err)

			col, err := store.SongColumn(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.column, col)
		})
	}
}

func TestGormStore_NoAcceptedColumn(t *testing.T) {
	t.Parallel()

	db := openAudios(t, "legacy_song")

	store, err := catalog.NewGormStore(db, nil)
	require.NoError(t, err)

	_, err = store.SongColumn(context.Background())
	require.ErrorIs(t, err, catalog.ErrNoSongColumn)

	_, err = store.ListBySong(context.Background(), "7")
	require.ErrorIs(t, err, catalog.ErrNoSongColumn)
}

func TestGormStore_SongColumnStopsOnOtherErrors(t *testing.T) {
	t.Parallel()

	db := openAudios(t, "song_id")
	require.NoError(t, db.Exec("DROP TABLE audios").Error)

	store, err := catalog.NewGormStore(db, nil)
	require.NoError(t, err)

	_, err = store.SongColumn(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrNoSongColumn)
	assert.Contains(t, err.Error(), "no such table")
}

func TestGormStore_InsertAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openAudios(t, "relational_song_id")
	seedRow(t, db, "relational_song_id", 1, "Delta", "song-abc")
	seedRow(t, db, "relational_song_id", 2, "Other", "song-xyz")

	store, err := catalog.NewGormStore(db, nil)
	require.NoError(t, err)

	next, err := store.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next)

	rec := catalog.Record{
		ID:         next,
		Name:       "Bravo",
		UploaderID: "user-2",
		SongID:     "song-abc",
		URL:        "audios/3-bravo.wav",
	}
	require.NoError(t, store.Insert(ctx, rec, ""))

	err = store.Insert(ctx, rec, "relational_song_id")
	require.ErrorIs(t, err, catalog.ErrDuplicate)

	recs, err := store.ListBySong(ctx, "song-abc")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, catalog.Record{
		ID:         3,
		Name:       "Bravo",
		Detail:     catalog.DefaultDetail,
		UploaderID: "user-2",
		SongID:     "song-abc",
		URL:        "audios/3-bravo.wav",
	}, recs[0])
	assert.Equal(t, "Delta", recs[1].Name)

	got, err := store.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, recs[0], got)
}

func TestGormStore_InsertUnknownColumn(t *testing.T) {
	t.Parallel()

	db := openAudios(t, "song_id")

	store, err := catalog.NewGormStore(db, nil)
	require.NoError(t, err)

	err = store.Insert(context.Background(), catalog.Record{ID: 1, Name: "Take", SongID: "7"}, "cancion_id")
	require.ErrorIs(t, err, catalog.ErrNoSongColumn)
}

func TestGormStore_NextIDEmpty(t *testing.T) {
	t.Parallel()

	store, err := catalog.NewGormStore(openAudios(t, "song_id"), nil)
	require.NoError(t, err)

	next, err := store.NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestGormStore_RenameAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openAudios(t, "song_id")
	seedRow(t, db, "song_id", 4, "Verse", "7")

	store, err := catalog.NewGormStore(db, nil)
	require.NoError(t, err)

	require.NoError(t, store.Rename(ctx, 4, "Verse v2"))

	got, err := store.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Verse v2", got.Name)

	require.ErrorIs(t, store.Rename(ctx, 99, "Nope"), catalog.ErrNotFound)

	require.NoError(t, store.Delete(ctx, 4))
	require.ErrorIs(t, store.Delete(ctx, 4), catalog.ErrNotFound)

	_, err = store.Get(ctx, 4)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}
