package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/storage"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissingColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "mysql 1054", err: &mysql.MySQLError{Number: 1054, Message: "x"}, want: true},
		{name: "wrapped mysql 1054", err: errors.Join(errors.New("ctx"), &mysql.MySQLError{Number: 1054}), want: true},
		{name: "other mysql error", err: &mysql.MySQLError{Number: 1045, Message: "access denied"}, want: false},
		{name: "unknown column text", err: errors.New("Unknown column 'song_id' in 'field list'"), want: true},
		{name: "does not exist text", err: errors.New(`column audios.song_id does not exist`), want: true},
		{name: "sqlite select", err: errors.New("SQL logic error: no such column: cancion_id (1)"), want: true},
		{name: "sqlite insert", err: errors.New("table audios has no column named cancion_id"), want: true},
		{name: "missing table", err: errors.New("SQL logic error: no such table: audios (1)"), want: false},
		{name: "unrelated", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, catalog.IsMissingColumn(tt.err))
		})
	}
}

func TestMemoryStore_DiscoversSongColumn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := catalog.NewMemoryStore("cancion_id")
	store.Seed(
		catalog.Record{ID: 2, Name: "Delta", SongID: "7"},
		catalog.Record{ID: 1, Name: "Bravo", SongID: "7"},
		catalog.Record{ID: 3, Name: "Other song", SongID: "8"},
	)

	col, err := store.SongColumn(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cancion_id", col)

	recs, err := store.ListBySong(ctx, "7")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Bravo", recs[0].Name)
	assert.Equal(t, "Delta", recs[1].Name)
}

func TestMemoryStore_Insert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := catalog.NewMemoryStore("song_id")

	next, err := store.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	rec := catalog.Record{ID: next, Name: "Take", UploaderID: "u1", SongID: "7", URL: "audios/1-take.wav"}
	require.NoError(t, store.Insert(ctx, rec, ""))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultDetail, got.Detail)

	err = store.Insert(ctx, rec, "song_id")
	require.ErrorIs(t, err, catalog.ErrDuplicate)

	err = store.Insert(ctx, catalog.Record{ID: 9}, "relational_song_id")
	require.ErrorIs(t, err, catalog.ErrNoSongColumn)
	assert.True(t, catalog.IsMissingColumn(err))

	next, err = store.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestMemoryStore_NoAcceptedColumn(t *testing.T) {
	t.Parallel()

	store := catalog.NewMemoryStore("legacy_song")

	_, err := store.SongColumn(context.Background())
	require.ErrorIs(t, err, catalog.ErrNoSongColumn)
}

type failingRemove struct {
	*storage.MemoryStore
}

func (failingRemove) Remove(context.Context, ...string) ([]string, error) {
	return nil, errors.New("storage offline")
}

func TestAdmin_Delete(t *testing.T) {
	t.Parallel()

	t.Run("storage first", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		objects := storage.NewMemoryStore("audios")
		require.NoError(t, objects.Upload(ctx, "audios/1-a.wav", []byte("x"), "audio/wav"))

		store := catalog.NewMemoryStore()
		store.Seed(catalog.Record{ID: 1, Name: "A", URL: "1-a.wav"})

		admin := catalog.Admin{Objects: objects, Store: store}
		require.NoError(t, admin.Delete(ctx, 1))

		assert.Empty(t, objects.Paths())
		_, err := store.Get(ctx, 1)
		require.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("storage failure keeps row", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := catalog.NewMemoryStore()
		store.Seed(catalog.Record{ID: 1, Name: "A", URL: "audios/1-a.wav"})

		admin := catalog.Admin{Objects: failingRemove{storage.NewMemoryStore("audios")}, Store: store}
		require.Error(t, admin.Delete(ctx, 1))

		_, err := store.Get(ctx, 1)
		require.NoError(t, err)
	})

	t.Run("missing row", func(t *testing.T) {
		t.Parallel()

		admin := catalog.Admin{Objects: storage.NewMemoryStore("audios"), Store: catalog.NewMemoryStore()}
		require.ErrorIs(t, admin.Delete(context.Background(), 5), catalog.ErrNotFound)
	})
}

func TestAdmin_Rename(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := catalog.NewMemoryStore()
	store.Seed(catalog.Record{ID: 1, Name: "Old"})

	admin := catalog.Admin{Objects: storage.NewMemoryStore("audios"), Store: store}

	require.Error(t, admin.Rename(ctx, 1, "   "))
	require.NoError(t, admin.Rename(ctx, 1, " New "))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)

	require.ErrorIs(t, admin.Rename(ctx, 2, "x"), catalog.ErrNotFound)
}

func TestLocalNotifier(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	n := catalog.NewLocalNotifier()

	ch, err := n.Subscribe(ctx, "7")
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, catalog.Change{SongID: "8", AudioID: 1}))
	require.NoError(t, n.Publish(ctx, catalog.Change{SongID: "7", AudioID: 2}))

	select {
	case c := <-ch:
		assert.Equal(t, catalog.Change{SongID: "7", AudioID: 2}, c)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	cancel()

	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestChannelName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "audios_song_42", catalog.ChannelName("42"))
}

func TestDBConfig_FormatDSN(t *testing.T) {
	t.Parallel()

	cfg := catalog.DBConfig{Host: "db", Port: 3306, User: "practice", Password: "secret", Name: "practice"} //nolint:exhaustruct // pool defaults
	dsn := cfg.FormatDSN()

	assert.Contains(t, dsn, "practice:secret@tcp(db:3306)/practice")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	cfg.DSN = "raw-dsn"
	assert.Equal(t, "raw-dsn", cfg.FormatDSN())
}
