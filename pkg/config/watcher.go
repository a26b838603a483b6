package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is how long we wait after a change before reading the file,
// to let editors that truncate and then write finish.
const FileDebounce = 10 * time.Millisecond

// Watch reloads the settings file whenever it changes and passes the result
// to apply. It watches the containing directory so editors that replace the
// file are seen. Watch blocks until ctx is done; decode errors are logged and
// the previous settings stay in effect.
func Watch(ctx context.Context, path string, apply func(Settings), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Debug("failed to close settings watcher", "error", err)
		}
	}()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	name := filepath.Clean(path)
	logger = logger.With(slog.String("component", "settings_watcher"), slog.String("path", name))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			pending = time.After(FileDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.LogAttrs(ctx, slog.LevelWarn, "watch error", slog.Any("error", err))
		case <-pending:
			pending = nil
			s, err := Load(name, logger)
			if err != nil {
				logger.LogAttrs(ctx, slog.LevelError, "reload settings", slog.Any("error", err))
				continue
			}
			logger.Debug("settings reloaded", "hour24", s.Hour24)
			apply(s)
		}
	}
}
