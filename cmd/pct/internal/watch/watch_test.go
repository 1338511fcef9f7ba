package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New([]string{root}, []string{".html"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	t.Cleanup(func() { w.Close() })
	return w
}

func run(t *testing.T, w *Watcher) <-chan []string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	batches := make(chan []string, 16)
	go w.Run(ctx, func(names []string) { batches <- names })
	return batches
}

func waitFor(t *testing.T, batches <-chan []string, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case names := <-batches:
			for _, name := range names {
				if name == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("no change reported for %s", want)
		}
	}
}

func TestNewWatchesSubdirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "blog", "drafts"), 0755))

	w := newTestWatcher(t, root)

	watched := w.Watched()
	assert.Len(t, watched, 3)
	assert.Contains(t, watched, filepath.Join(root, "blog", "drafts"))
}

func TestNewMissingRoot(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")}, []string{".html"}, nil)
	assert.Error(t, err)
}

func TestRunReportsTemplateName(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "blog"), 0755))

	w := newTestWatcher(t, root)
	batches := run(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, "blog", "post.html"), []byte("{{.}}"), 0644))
	waitFor(t, batches, "blog/post.html")
}

func TestRunIgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()

	w := newTestWatcher(t, root)
	batches := run(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "page.html"), []byte("x"), 0644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case names := <-batches:
			assert.NotContains(t, names, "notes.txt")
			for _, name := range names {
				if name == "page.html" {
					return
				}
			}
		case <-deadline:
			t.Fatal("no change reported for page.html")
		}
	}
}

func TestRunWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()

	w := newTestWatcher(t, root)
	batches := run(t, w)

	dir := filepath.Join(root, "admin")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.Eventually(t, func() bool {
		for _, d := range w.Watched() {
			if d == dir {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("x"), 0644))
	waitFor(t, batches, "admin/index.html")
}

func TestRunStopsOnCancel(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func([]string) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestTemplateName(t *testing.T) {
	w := &Watcher{roots: []string{"/src/a", "/src/b"}, extensions: []string{".html"}}

	name, ok := w.templateName("/src/b/x/y.html")
	assert.True(t, ok)
	assert.Equal(t, "x/y.html", name)

	_, ok = w.templateName("/elsewhere/y.html")
	assert.False(t, ok)

	assert.True(t, w.isTemplate("y.html"))
	assert.False(t, w.isTemplate("y.htm"))
}
