package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watcherDebounce = 500 * time.Millisecond

// Watch watches the settings file's directory and calls onChange with the
// re-loaded settings after modifications. It blocks until the context is
// cancelled. Events are debounced so an editor's write-then-rename shows up
// as one reload.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: most editors replace the file,
	// which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger.Info("watching settings for changes", "path", path)

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("settings file changed", "op", event.Op)

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watcherDebounce, func() {
				settings, err := Load(path)
				if err != nil {
					logger.Error("settings reload failed", "error", err)
					return
				}
				logger.Info("settings reloaded")
				onChange(settings)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("settings watcher error", "error", err)
		}
	}
}
