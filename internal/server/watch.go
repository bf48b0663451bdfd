package server

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher reports changes to loaded files. Events are coalesced: notify
// fires once per quiet period of debounce.
type watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	notify   func()
	logger   *slog.Logger

	mu    sync.Mutex
	dirs  map[string]bool
	files map[string]bool
	timer *time.Timer
	done  bool
}

func newWatcher(debounce time.Duration, notify func(), logger *slog.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &watcher{
		fw:       fw,
		debounce: debounce,
		notify:   notify,
		logger:   logger,
		dirs:     map[string]bool{},
		files:    map[string]bool{},
	}, nil
}

// update watches the directories of files and replaces the set of files
// whose changes count.
func (w *watcher) update(files []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.files = make(map[string]bool, len(files))
	for _, f := range files {
		w.files[f] = true
		dir := filepath.Dir(f)
		if w.dirs[dir] {
			continue
		}
		if err := w.fw.Add(dir); err != nil {
			w.logger.Warn("watch.add_failed", "dir", dir, "error", err)
			continue
		}
		w.dirs[dir] = true
	}
}

func (w *watcher) run() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.touch(ev.Name)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch.error", "error", err)
		}
	}
}

func (w *watcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done || !w.files[filepath.Clean(path)] {
		return
	}
	w.logger.Debug("watch.changed", "path", path)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *watcher) close() {
	w.mu.Lock()
	w.done = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.fw.Close()
}
