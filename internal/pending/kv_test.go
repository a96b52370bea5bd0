package pending_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alkime/practice/internal/pending"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestFileKV(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "pending.json")

	kv := pending.NewFileKV(path)

	got, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, kv.Set(ctx, "a", []byte(`[1,2]`)))
	require.NoError(t, kv.Set(ctx, "b", []byte(`{"x":true}`)))

	reopened := pending.NewFileKV(path)

	got, err = reopened.Get(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(got))

	got, err = reopened.Get(ctx, "b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":true}`, string(got))

	assertOnlyStoreFile(t, path)
}

// Two processes (the TUI and a resume run) share one queue file.
func TestFileKV_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pending.json")
	writers := []*pending.FileKV{pending.NewFileKV(path), pending.NewFileKV(path)}

	var g errgroup.Group

	for i := range 20 {
		kv := writers[i%len(writers)]

		g.Go(func() error {
			return kv.Set(ctx, fmt.Sprintf("k%d", i), []byte(`{"n":1}`))
		})
	}

	require.NoError(t, g.Wait())

	_, err := pending.NewFileKV(path).Get(ctx, "k0")
	require.NoError(t, err)

	assertOnlyStoreFile(t, path)
}

func assertOnlyStoreFile(t *testing.T, path string) {
	t.Helper()

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestFileKV_RejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	kv := pending.NewFileKV(filepath.Join(t.TempDir(), "pending.json"))
	require.Error(t, kv.Set(context.Background(), "a", []byte("not json")))
}

func TestFileKV_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pending.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))

	_, err := pending.NewFileKV(path).Get(context.Background(), "a")
	require.Error(t, err)
}

func TestQueue_OverFileKV(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pending.json")

	q := pending.NewQueue(pending.NewFileKV(path), nil, pending.DefaultPolicy())

	u, err := q.Submit(ctx, draft("Take", "7"))
	require.NoError(t, err)

	list, err := pending.NewQueue(pending.NewFileKV(path), nil, pending.DefaultPolicy()).List(ctx, "7")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, u.TempID, list[0].TempID)
}
