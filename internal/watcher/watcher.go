// Package watcher reports settled changes below a media root so the
// library can rescan it.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher recursively watches one directory tree with fsnotify and
// debounces its events into batches.
type Watcher struct {
	logger *slog.Logger
	root   string
	opts   Options
	fsw    *fsnotify.Watcher
}

// New watches root and every non-ignored directory below it.
func New(logger *slog.Logger, root string, opts Options) (*Watcher, error) {
	opts.setDefaults()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		logger: logger,
		root:   filepath.Clean(root),
		opts:   opts,
		fsw:    fsw,
	}
	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers batches to onChange until ctx is done. onChange runs on
// Run's goroutine, so a slow handler delays the next batch instead of
// overlapping with it. Run closes the underlying watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(Batch)) error {
	defer w.fsw.Close()

	var (
		pending map[string]Event
		batch   Batch
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			e, keep := w.translate(ev)
			if !keep {
				continue
			}

			now := time.Now()
			if pending == nil {
				pending = make(map[string]Event)
				batch = Batch{First: now}
			}
			pending[e.Path] = e
			batch.Last = now

			if timer == nil {
				timer = time.NewTimer(w.opts.SettleDelay)
			} else {
				timer.Reset(w.opts.SettleDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			batch.Events = make([]Event, 0, len(pending))
			for _, e := range pending {
				batch.Events = append(batch.Events, e)
			}
			pending = nil

			w.logger.Debug("media tree settled", "changes", len(batch.Events))
			onChange(batch)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	if w.opts.shouldIgnore(w.root, ev.Name) {
		return Event{}, false
	}
	typ, ok := eventType(ev.Op)
	if !ok {
		return Event{}, false
	}

	if typ == EventCreated {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
		}
	}
	return Event{Type: typ, Path: ev.Name}, true
}

// addTree watches dir and its subdirectories. Unreadable entries are
// logged and skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("walk %s: %w", dir, err)
			}
			w.logger.Warn("failed to access path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.opts.shouldIgnore(w.root, path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to add watch", "path", path, "error", err)
			return nil
		}
		return nil
	})
}
