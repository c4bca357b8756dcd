package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/soyeahso/agentcanvas/internal/logging"
)

const defaultWatchDebounce = 200 * time.Millisecond

// Watcher invalidates a FileStore's cache when projects.json changes on disk
// outside this process. It watches the containing directory because saves
// replace the file by rename.
type Watcher struct {
	store    *FileStore
	log      *logging.Logger
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange func()
}

// NewWatcher creates a watcher for the store's directory.
func NewWatcher(s *FileStore, log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		store:    s,
		log:      log.Sub("store-watch"),
		fsw:      fsw,
		debounce: defaultWatchDebounce,
	}, nil
}

// OnChange registers a callback run after each invalidation.
func (w *Watcher) OnChange(fn func()) { w.onChange = fn }

// Run blocks until ctx is done, invalidating the store after a quiet period
// following any event on projects.json.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	dir := filepath.Dir(w.store.Path())
	if _, err := w.store.Load(); err != nil {
		w.log.Warn().Err(err).Msg("initial store load failed")
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.log.Debug().Str("dir", dir).Msg("watching workspaces store")

	name := filepath.Base(w.store.Path())
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("store watcher error")

		case <-timer.C:
			if !w.store.ChangedOnDisk() {
				w.log.Debug().Msg("ignoring store event for our own write")
				continue
			}
			w.store.Invalidate()
			w.log.Debug().Msg("workspaces store changed on disk")
			if w.onChange != nil {
				w.onChange()
			}
		}
	}
}
