// Package watch follows external changes to a local bucket directory and
// keeps the listing cache and the document catalog in step with them.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/bucketpress/internal/catalog"
	"github.com/starford/bucketpress/internal/objstore"
	"github.com/starford/bucketpress/internal/vdir"
)

const reconcileDelay = 200 * time.Millisecond

// Watcher ties a local bucket to the engine cache and the catalog.
type Watcher struct {
	store   *objstore.FS
	engine  *vdir.Engine
	catalog catalog.Catalog
	logger  *slog.Logger
	notify  vdir.ChangeFunc
}

// New creates a watcher. notify may be nil.
func New(store *objstore.FS, engine *vdir.Engine, cat catalog.Catalog, logger *slog.Logger, notify vdir.ChangeFunc) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{store: store, engine: engine, catalog: cat, logger: logger, notify: notify}
}

// Run processes file system events until ctx is cancelled.
//
// Directories created at runtime are added to the watch list. Rename events
// trigger a debounced catalog reconciliation, since fsnotify reports only
// the old name.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	root := w.store.Root()
	if err := addDirsRecursive(fw, root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.reconcile(ctx)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, ev, scheduleReconcile)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event, scheduleReconcile func()) {
	key, ok := w.store.KeyOf(ev.Name)
	if !ok {
		return
	}
	w.engine.InvalidateKey(key)

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", key),
					slog.String("error", err.Error()))
			}
			w.indexDir(ctx, ev.Name)
			w.emit("created", key)
			return
		}
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if catalog.IsDocument(key) {
			if err := w.index(ctx, key); err != nil {
				w.logger.Warn("watcher: index failed", slog.String("path", key), slog.String("error", err.Error()))
				return
			}
		}
		kind := "updated"
		if ev.Op&fsnotify.Create != 0 {
			kind = "created"
		}
		w.logger.Debug("watcher: changed", slog.String("path", key), slog.String("op", kind))
		w.emit(kind, key)

	case ev.Op&fsnotify.Remove != 0:
		w.forget(key)
		w.emit("deleted", key)

	case ev.Op&fsnotify.Rename != 0:
		w.forget(key)
		w.emit("deleted", key)
		scheduleReconcile()
	}
}

// forget drops key, or everything under it if it was a directory, from the
// catalog.
func (w *Watcher) forget(key string) {
	if err := w.catalog.Delete(key); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", key), slog.String("error", err.Error()))
	}
	if _, err := w.catalog.DeletePrefix(key); err != nil {
		w.logger.Warn("watcher: delete prefix failed", slog.String("path", key), slog.String("error", err.Error()))
	}
}

func (w *Watcher) index(ctx context.Context, key string) error {
	data, err := w.store.Download(ctx, key)
	if err != nil {
		return err
	}
	return catalog.Index(w.catalog, key, data)
}

// indexDir indexes documents already present in a newly created directory.
func (w *Watcher) indexDir(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		key, ok := w.store.KeyOf(p)
		if !ok || !catalog.IsDocument(key) {
			return nil
		}
		if err := w.index(ctx, key); err == nil {
			w.logger.Debug("watcher: indexed from new dir", slog.String("path", key))
			w.emit("created", key)
		}
		return nil
	})
}

func (w *Watcher) reconcile(ctx context.Context) {
	if err := catalog.Sync(ctx, w.catalog, w.engine, w.logger); err != nil {
		w.logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
	}
}

func (w *Watcher) emit(kind, key string) {
	if w.notify != nil {
		w.notify(kind, key)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
