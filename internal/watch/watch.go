// Package watch rebuilds test harnesses when the files they load change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/phobologic/jsharness/internal/fsys"
	"github.com/phobologic/jsharness/internal/model"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher maps file changes back to the test files that depend on them.
type Watcher struct {
	fw       *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration

	mu sync.Mutex
	// dependents maps a canonical file path to the roots that load it.
	dependents map[string]map[string]struct{}
	// files maps a root to the canonical files tracked for it.
	files map[string][]string
	dirs  map[string]struct{}
}

// New returns a Watcher. A zero debounce means DefaultDebounce.
func New(log *zap.Logger, debounce time.Duration) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		fw:         fw,
		log:        log,
		debounce:   debounce,
		dependents: make(map[string]map[string]struct{}),
		files:      make(map[string][]string),
		dirs:       make(map[string]struct{}),
	}, nil
}

// Track watches every local file of tc. Tracking a root again replaces its
// previous file set, so a rebuilt context can be tracked after its
// references change.
func (w *Watcher) Track(tc *model.TestContext) error {
	root := tc.InputTestFile

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, file := range w.files[root] {
		delete(w.dependents[file], root)
		if len(w.dependents[file]) == 0 {
			delete(w.dependents, file)
		}
	}
	delete(w.files, root)

	var tracked []string
	for _, f := range tc.ReferencedFiles {
		if !f.IsLocal {
			continue
		}
		dir := filepath.Dir(f.Path)
		if _, ok := w.dirs[dir]; !ok {
			if err := w.fw.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			w.dirs[dir] = struct{}{}
		}
		id := fsys.Canonical(f.Path)
		if w.dependents[id] == nil {
			w.dependents[id] = make(map[string]struct{})
		}
		w.dependents[id][root] = struct{}{}
		tracked = append(tracked, id)
	}
	w.files[root] = tracked
	w.log.Debug("tracking", zap.String("test", root), zap.Int("files", len(tracked)))
	return nil
}

func (w *Watcher) rootsFor(path string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var roots []string
	for root := range w.dependents[fsys.Canonical(path)] {
		roots = append(roots, root)
	}
	return roots
}

// Run delivers changed roots to onChange, sorted and deduplicated, until ctx
// is done or the watcher is closed. onChange runs on the Run goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(roots []string)) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			roots := w.rootsFor(ev.Name)
			if len(roots) == 0 {
				continue
			}
			w.log.Debug("change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			for _, r := range roots {
				pending[r] = struct{}{}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			roots := make([]string, 0, len(pending))
			for r := range pending {
				roots = append(roots, r)
			}
			sort.Strings(roots)
			clear(pending)
			onChange(roots)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
