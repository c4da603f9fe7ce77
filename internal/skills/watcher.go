package skills

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a Loader's catalog when a SKILL.md under one of its
// non-builtin roots is created, removed, or edited. The builtin catalog is
// compiled in and never changes at runtime, so it is not watched.
type Watcher struct {
	loader *Loader
	fsw    *fsnotify.Watcher
	done   chan struct{}
}

// NewWatcher creates a Watcher for loader's workspace/global/marketplace
// skill roots. Roots that don't exist yet are skipped; Reload picks them up
// once this process or the operator creates them, but only after the next
// restart (or an explicit loader.Reload()) since no directory exists to
// watch in the meantime.
func NewWatcher(loader *Loader) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range loader.watchRoots() {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if err := addRecursive(fsw, dir); err != nil {
				slog.Warn("skills: watch failed", "dir", dir, "error", err)
			}
		}
	}

	return &Watcher{loader: loader, fsw: fsw, done: make(chan struct{})}, nil
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// Start runs the watch loop until ctx is cancelled or Stop is called.
// Reload events are debounced: a burst of filesystem events (a skill
// directory being unpacked file-by-file) triggers exactly one Reload.
func (w *Watcher) Start(ctx context.Context) error {
	go func() {
		var debounce *time.Timer
		reload := func() {
			if err := w.loader.Reload(); err != nil {
				slog.Warn("skills: reload failed", "error", err)
			} else {
				slog.Info("skills: catalog reloaded")
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != skillFileName && !ev.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, reload)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("skills: watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Stop ends the watch loop and releases the underlying OS resources.
func (w *Watcher) Stop() {
	close(w.done)
	w.fsw.Close()
}

// watchRoots returns the non-builtin directories whose contents affect the
// catalog.
func (l *Loader) watchRoots() []string {
	var roots []string
	if l.workspaceDir != "" {
		roots = append(roots, filepath.Join(l.workspaceDir, "skills"))
	}
	if l.globalDir != "" {
		roots = append(roots, l.globalDir)
	}
	if l.marketplaceDir != "" {
		roots = append(roots, l.marketplaceDir)
	}
	return roots
}
