package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the data directory and reports when the alarm document is
// rewritten by another process, so the engine can reload its in-memory list.
// Events are debounced because an atomic save produces a create/rename burst.
type Watcher struct {
	dir      string
	file     string
	debounce time.Duration
	onChange func()
	logger   *slog.Logger
}

// NewWatcher returns a watcher for the alarm document inside dir. onChange is
// invoked from the watch goroutine after the debounce window closes.
func NewWatcher(dir string, debounce time.Duration, onChange func(), logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		file:     alarmsFile,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, invoking the change callback whenever
// the alarm document settles after a write.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	// Watch the directory, not the file: atomic saves replace the file via
	// rename, which drops a watch placed on the file itself.
	if err := fsWatcher.Add(w.dir); err != nil {
		return err
	}

	var pending *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != w.file {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(w.debounce)
				fire = pending.C
			} else {
				if !pending.Stop() {
					<-pending.C
				}
				pending.Reset(w.debounce)
			}
		case <-fire:
			pending = nil
			fire = nil
			w.logger.Debug("alarm document changed on disk, reloading")
			if w.onChange != nil {
				w.onChange()
			}
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
