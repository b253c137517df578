// Package watch re-triggers planning when files in the repository change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/logfields"
	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

// Handler receives the repository-relative paths that changed during one
// quiet window, sorted.
type Handler func(ctx context.Context, changed []string) error

// Watcher monitors a directory tree and calls a Handler after bursts of
// changes settle.
type Watcher struct {
	root     string
	debounce time.Duration
	ignored  sets.Set[string]
	paths    []string
	handler  Handler
	logger   *slog.Logger
	ready    chan struct{}
}

// New creates a watcher for root. Directories named in ignore are skipped at
// any depth; ".git" is always ignored.
func New(root string, debounce time.Duration, handler Handler, ignore ...string) (*Watcher, error) {
	if handler == nil {
		return nil, ferrors.ValidationError("watch handler is required").Build()
	}
	if debounce <= 0 {
		return nil, ferrors.ValidationError("debounce must be > 0").
			WithContext("debounce", debounce.String()).Build()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	ignored := sets.New(append([]string{".git"}, ignore...)...)
	return &Watcher{
		root:     abs,
		debounce: debounce,
		ignored:  ignored,
		handler:  handler,
		logger:   slog.Default(),
		ready:    make(chan struct{}),
	}, nil
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// WithIgnoredPaths skips repository-relative paths at one location only.
func (w *Watcher) WithIgnoredPaths(rels ...string) *Watcher {
	for _, r := range rels {
		if r = path.Clean(filepath.ToSlash(r)); r != "." && r != "" {
			w.paths = append(w.paths, r)
		}
	}
	return w
}

// Ready is closed once every directory is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is canceled. Handler errors are logged and do not stop
// the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil {
			w.logger.Error("Error closing file watcher", logfields.Error(cerr))
		}
	}()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("Watching for changes", logfields.Path(w.root))
	close(w.ready)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var fire <-chan time.Time
	pending := sets.New[string]()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			rel, keep := w.relevant(event.Name)
			if !keep {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.maybeAddDir(fw, event.Name)
			}
			w.logger.Debug("File change detected", logfields.Path(rel), slog.String("op", event.Op.String()))
			pending.Add(rel)
			timer.Reset(w.debounce)
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))

		case <-fire:
			fire = nil
			changed := sets.Sorted(pending)
			pending = sets.New[string]()
			if err := w.handler(ctx, changed); err != nil {
				w.logger.Error("Change handler failed", logfields.Count(len(changed)), logfields.Error(err))
			}
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root {
			if _, keep := w.relevant(p); !keep {
				return filepath.SkipDir
			}
		}
		if err := fw.Add(p); err != nil {
			return ferrors.FileSystemError("failed to watch directory").
				WithContext("path", p).WithCause(err).Build()
		}
		return nil
	})
}

func (w *Watcher) maybeAddDir(fw *fsnotify.Watcher, p string) {
	if err := w.addTree(fw, p); err != nil {
		// The path may already be gone again.
		w.logger.Debug("Not watching new path", logfields.Path(p), logfields.Error(err))
	}
}

// relevant maps an event path to a slash separated path relative to the
// root and reports whether it lies outside every ignored directory.
func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if w.ignored.Has(part) {
			return "", false
		}
	}
	for _, p := range w.paths {
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return "", false
		}
	}
	return rel, true
}
