// Package watch runs a callback whenever files land in the inbox.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"taxarchive/internal/archive"
)

// BatchFunc handles one debounced batch of new or changed files.
// Paths are absolute and sorted.
type BatchFunc func(ctx context.Context, paths []string) error

// Watcher watches a directory tree and coalesces bursts of events into batches.
// Batches are delivered one at a time on the goroutine calling Run.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   archive.Logger
}

// New creates a Watcher for dir.
func New(dir string, debounce time.Duration, logger archive.Logger) *Watcher {
	return &Watcher{dir: dir, debounce: debounce, logger: logger}
}

// Run watches until ctx is cancelled. Errors returned by fn are logged and
// watching continues.
func (w *Watcher) Run(ctx context.Context, fn BatchFunc) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watching %s: not a directory", w.dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	pending := make(map[string]struct{})
	if err := w.addTree(fw, w.dir, nil); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("watching inbox", "dir", w.dir, "debounce", w.debounce.String())

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
				// Files may land in a new directory before it is watched.
				if err := w.addTree(fw, ev.Name, pending); err != nil {
					w.logger.Warn("watching new directory failed", "path", ev.Name, "error", err)
				}
			} else {
				pending[ev.Name] = struct{}{}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			batch := existing(pending)
			clear(pending)
			if len(batch) == 0 {
				continue
			}
			w.logger.Info("inbox batch", "files", len(batch))
			if err := fn(ctx, batch); err != nil {
				w.logger.Error("handling inbox batch failed", "error", err)
			}
		}
	}
}

// addTree watches root and every directory below it. Files already present
// are added to pending when it is non-nil.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string, pending map[string]struct{}) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.Add(p); err != nil {
				return fmt.Errorf("watching %s: %w", p, err)
			}
			return nil
		}
		if pending != nil {
			pending[p] = struct{}{}
		}
		return nil
	})
}

// existing returns the pending regular files that are still present, so
// files moved away by the previous batch do not trigger another one.
func existing(pending map[string]struct{}) []string {
	var out []string
	for p := range pending {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}
