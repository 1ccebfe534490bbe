package settings

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"noelle/internal/infra/debounce"
)

const reloadQuiet = 100 * time.Millisecond

// Watch reloads the file after external edits until ctx is done. The parent
// directory is watched since editors usually replace the file.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return err
	}

	reload := debounce.New(reloadQuiet)
	go func() {
		defer w.Close()
		defer reload.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					reload.Do(s.reloadFromDisk)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("settings watcher error", "error", err)
			}
		}
	}()
	return nil
}
