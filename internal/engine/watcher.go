package engine

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called after a watcher-driven collection change.
// kind is one of "created", "updated", "deleted".
type ChangeCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the vault root and feeds file
// change events into the engine until ctx is cancelled. It calls cb
// (if non-nil) after each collection mutation.
//
// fsnotify reports a rename as an event on the old path only; the new
// path arrives as a separate create. The old document is dropped
// immediately and a short debounced reconciliation pass picks up
// whatever the create events missed, so a cross-directory rename
// converges even though the engine never sees an explicit rename pair.
func Watch(ctx context.Context, e *Engine, vaultRoot string, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, e, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories join the watch list; any documents they
			// already contain are decoded right away.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					scanNewDir(ctx, e, vaultRoot, absPath, cb)
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&fsnotify.Create != 0:
				if err := e.Created(ctx, rel); err != nil {
					logger.Warn("watcher: create failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				if cb != nil {
					cb("created", rel)
				}

			case ev.Op&fsnotify.Write != 0:
				if err := e.Changed(ctx, rel); err != nil {
					logger.Warn("watcher: change failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				if cb != nil {
					cb("updated", rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				e.Deleted(rel)
				if cb != nil {
					cb("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				e.Deleted(rel)
				if cb != nil {
					cb("deleted", rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile diffs the store against the collection: documents on disk
// but absent from the collection are decoded, collection entries whose
// document is gone are dropped.
func reconcile(ctx context.Context, e *Engine, logger *slog.Logger, cb ChangeCallback) {
	metas, err := e.store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]bool, len(metas))
	for _, m := range metas {
		disk[m.Path] = true
	}

	known := e.DocumentPaths()
	for p := range known {
		if !disk[p] {
			if e.Deleted(p) > 0 && cb != nil {
				cb("deleted", p)
			}
		}
	}
	for _, m := range metas {
		if known[m.Path] {
			continue
		}
		if err := e.Created(ctx, m.Path); err != nil {
			continue
		}
		if cb != nil {
			cb("created", m.Path)
		}
	}
}

// scanNewDir decodes any documents already present in a directory that
// just appeared (e.g. moved into the vault wholesale).
func scanNewDir(ctx context.Context, e *Engine, vaultRoot, dirPath string, cb ChangeCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if err := e.Created(ctx, rel); err == nil && cb != nil {
			cb("created", rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
