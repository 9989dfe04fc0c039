package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watcherDebounce = 500 * time.Millisecond

// Watch reloads the catalog when the settings file changes on disk.
// It blocks until the context is cancelled. The settings file's directory
// is watched rather than the file itself so atomic rename saves are seen.
func Watch(ctx context.Context, path string, catalog *Catalog, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

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

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watcherDebounce, func() {
				s, err := Load(path)
				if err != nil {
					logger.Error("settings reload failed", "error", err)
					return
				}
				catalog.Replace(s.Vaults)
				logger.Info("vault catalog reloaded", "vaults", len(s.Vaults))
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error", "error", err)
		}
	}
}
