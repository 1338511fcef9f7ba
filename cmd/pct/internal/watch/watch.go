package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before reporting changes
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports edited templates under a set of source directories
type Watcher struct {
	watcher    *fsnotify.Watcher
	roots      []string
	extensions []string
	logger     *slog.Logger
	debounce   time.Duration

	mu      sync.Mutex
	watched map[string]bool
}

// New watches every directory below roots. Only files with one of
// extensions are reported.
func New(roots, extensions []string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:    fw,
		extensions: extensions,
		logger:     logger,
		debounce:   DefaultDebounce,
		watched:    map[string]bool{},
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		w.roots = append(w.roots, abs)
		if err := w.addTree(abs); err != nil {
			fw.Close()
			return nil, err
		}
	}

	return w, nil
}

// SetDebounce changes the settle interval. It must be called before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Watched returns the watched directories, sorted
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.watched))
	for dir := range w.watched {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.add(path)
	})
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watched[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watched[dir] = true
	return nil
}

// Run delivers the names of changed templates to onChange, in batches
// collected over the debounce interval, until ctx is done or Close is
// called. Each batch is sorted and holds each name once.
func (w *Watcher) Run(ctx context.Context, onChange func(names []string)) error {
	pending := map[string]bool{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			name, ok := w.handle(event)
			if !ok {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(w.debounce)
			}
			pending[name] = true

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			pending = map[string]bool{}
			onChange(names)
		}
	}
}

// handle maps an event to a template name
func (w *Watcher) handle(event fsnotify.Event) (string, bool) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return "", false
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return "", false
	}
	if !w.isTemplate(event.Name) {
		return "", false
	}

	name, ok := w.templateName(event.Name)
	if ok {
		w.logger.Debug("template changed", "template", name, "op", event.Op.String())
	}
	return name, ok
}

func (w *Watcher) isTemplate(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// templateName returns path relative to the root holding it, slash separated
func (w *Watcher) templateName(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// Close stops watching. A running Run returns nil.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
