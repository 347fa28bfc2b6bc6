package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/veloro-ai/modelrouter/models"
	"go.uber.org/zap"
)

// WatchCatalog watches the catalog file and calls reload with the
// parsed descriptors on every change. Editors often replace files by
// rename, so the parent directory is watched and events are filtered
// by name. A short debounce absorbs write bursts. Invalid catalog
// contents are logged and skipped; the previous catalog stays active.
func WatchCatalog(ctx context.Context, path string, reload func([]models.ModelDescriptor) error, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		trigger := make(chan struct{}, 1)

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(250*time.Millisecond, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})

			case <-trigger:
				descriptors, err := LoadCatalog(path)
				if err != nil {
					logger.Error("catalog reload skipped", zap.String("path", path), zap.Error(err))
					continue
				}
				if err := reload(descriptors); err != nil {
					logger.Error("catalog reload rejected", zap.String("path", path), zap.Error(err))
					continue
				}
				logger.Info("catalog reloaded", zap.String("path", path), zap.Int("models", len(descriptors)))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("catalog watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
