package rrdstore

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/opswatch/updateworker/logger"
)

// Watcher observes a store's dbdir for externally deleted .rrd files,
// so a stale (previous, current) sample cache in state doesn't
// silently diverge from what is actually on disk.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// WatchDir starts watching dir for removed .rrd files. onRemove is
// called with the path of every .rrd file removed out from under the
// store. Watching is best-effort: a setup failure is logged and
// WatchDir returns nil, the same degrade-to-no-op shape as
// carbon.Dial.
func WatchDir(dir string, onRemove func(path string)) *Watcher {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnw("rrd file watcher unavailable, continuing without it",
			logger.FieldPath, dir, logger.FieldError, err.Error())
		return nil
	}
	if err := fsw.Add(dir); err != nil {
		logger.Warnw("failed to watch rrd directory",
			logger.FieldPath, dir, logger.FieldError, err.Error())
		fsw.Close()
		return nil
	}

	w := &Watcher{fsw: fsw}
	go w.loop(onRemove)
	return w
}

func (w *Watcher) loop(onRemove func(path string)) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Remove != 0 && filepath.Ext(event.Name) == ".rrd" {
				onRemove(event.Name)
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher. Safe to call on a nil Watcher.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	w.fsw.Close()
}
