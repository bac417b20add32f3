package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/bootforge/internal/ctxlog"
)

// WatchDebounce is how long Watch waits for changes to settle.
const WatchDebounce = 300 * time.Millisecond

// Watch builds the configured targets, then rebuilds them whenever a file
// in the workspace changes, until ctx is done. Changes to build files reload
// the rules first. Build failures are logged and do not stop the loop.
func (a *App) Watch(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := a.addWatchRecursive(watcher, a.cfg.Root); err != nil {
		return err
	}
	a.logger.Info("👀 Watching for changes.", "root", a.cfg.Root)

	produced := a.watchBuild(ctx, false)
	timer := time.NewTimer(WatchDebounce)
	timer.Stop()
	pending, reload := false, false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if a.ignored(ev.Name) {
				continue
			}
			rel, err := filepath.Rel(a.cfg.Root, ev.Name)
			if err == nil {
				if _, ok := produced[filepath.ToSlash(rel)]; ok {
					continue
				}
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := a.addWatchRecursive(watcher, ev.Name); err != nil {
						a.logger.Warn("Cannot watch new directory.", "path", ev.Name, "error", err)
					}
				}
			}
			if filepath.Ext(ev.Name) == ".hcl" {
				reload = true
			}
			a.logger.Debug("Workspace changed.", "path", ev.Name, "op", ev.Op.String())
			pending = true
			timer.Reset(WatchDebounce)
		case <-timer.C:
			if !pending {
				continue
			}
			produced = a.watchBuild(ctx, reload)
			pending, reload = false, false
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("Watch error.", "error", err)
		}
	}
}

// watchBuild runs one build and returns the names of the rebuilt targets,
// whose own write events are not changes.
func (a *App) watchBuild(ctx context.Context, reload bool) map[string]struct{} {
	if reload {
		table, err := a.load(ctx)
		if err != nil {
			a.logger.Error("Build files could not be reloaded, keeping the previous rules.", "error", err)
		} else {
			a.engine = a.newEngine(table)
		}
	}
	report, err := a.Run(ctx)
	if err != nil {
		a.logger.Error("Build failed, waiting for changes.", "error", err)
	}
	produced := make(map[string]struct{})
	if report != nil {
		for _, name := range report.Rebuilt() {
			produced[name] = struct{}{}
		}
	}
	return produced
}

// ignored reports whether a path is VCS metadata, the registry directory or
// a temporary file of an atomic write.
func (a *App) ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && strings.Contains(base, ".tmp-") {
		return true
	}
	// Also matches the -wal and -shm files next to the database.
	if strings.HasPrefix(path, a.cfg.path(a.cfg.Registry)) {
		return true
	}
	for _, dir := range []string{
		filepath.Join(a.cfg.Root, ".git"),
		filepath.Dir(a.cfg.path(a.cfg.Registry)),
	} {
		if dir == a.cfg.Root {
			continue
		}
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (a *App) addWatchRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if a.ignored(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
