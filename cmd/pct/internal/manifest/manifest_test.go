package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), ".pct", "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	compiledAt := time.Date(2026, 10, 1, 12, 30, 0, 0, time.UTC)
	want := Artifact{
		Template:     "blog/post.html",
		Unit:         "PCT_blog__post___html",
		Parent:       "base.html",
		SourceHash:   "abc123",
		SettingsHash: "cfg1",
		OutputPath:   "/out/PCT_blog__post___html.go",
		Constructors: 5,
		Blocks:       1,
		Sentinels:    0,
		CompiledAt:   compiledAt,
	}
	require.NoError(t, store.Put(ctx, want))

	got, err := store.Get(ctx, "blog/post.html")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Put(ctx, Artifact{Template: "a.html", Unit: "PCT_a___html", SourceHash: "one", OutputPath: "x"}))
	require.NoError(t, store.Put(ctx, Artifact{Template: "a.html", Unit: "PCT_a___html", SourceHash: "two", OutputPath: "x", Blocks: 3}))

	got, err := store.Get(ctx, "a.html")
	require.NoError(t, err)
	assert.Equal(t, "two", got.SourceHash)
	assert.Equal(t, 3, got.Blocks)
	assert.False(t, got.CompiledAt.IsZero())

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "missing.html")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListAndChildren(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, a := range []Artifact{
		{Template: "z.html", Unit: "PCT_z___html", Parent: "base.html"},
		{Template: "base.html", Unit: "PCT_base___html"},
		{Template: "a.html", Unit: "PCT_a___html", Parent: "base.html"},
	} {
		require.NoError(t, store.Put(ctx, a))
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a.html", all[0].Template)
	assert.Equal(t, "z.html", all[2].Template)

	children, err := store.Children(ctx, "base.html")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "a.html", children[0].Template)

	require.NoError(t, store.Delete(ctx, "a.html"))
	require.NoError(t, store.Delete(ctx, "never-built.html"))
	children, err = store.Children(ctx, "base.html")
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestUpToDate(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	out := filepath.Join(t.TempDir(), "PCT_a___html.go")

	ok, err := store.UpToDate(ctx, "a.html", "hash", "cfg")
	require.NoError(t, err)
	assert.False(t, ok, "never built")

	require.NoError(t, store.Put(ctx, Artifact{Template: "a.html", Unit: "PCT_a___html", SourceHash: "hash", SettingsHash: "cfg", OutputPath: out}))

	ok, err = store.UpToDate(ctx, "a.html", "hash", "cfg")
	require.NoError(t, err)
	assert.False(t, ok, "output file missing")

	require.NoError(t, os.WriteFile(out, []byte("package precompiled\n"), 0644))

	ok, err = store.UpToDate(ctx, "a.html", "hash", "cfg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpToDate(ctx, "a.html", "changed", "cfg")
	require.NoError(t, err)
	assert.False(t, ok, "source changed")

	ok, err = store.UpToDate(ctx, "a.html", "hash", "other")
	require.NoError(t, err)
	assert.False(t, ok, "settings changed")
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "manifest.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, Artifact{Template: "a.html", Unit: "PCT_a___html"}))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "a.html")
	require.NoError(t, err)
	assert.Equal(t, "PCT_a___html", got.Unit)
	assert.Equal(t, path, store.Path())
}

func TestConcurrentPut(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a'+i)) + ".html"
			errs <- store.Put(ctx, Artifact{Template: name, Unit: "PCT_" + name})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
