package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
)

// Watch reloads the complete config (defaults, file, environment) whenever
// the file at path is written or replaced, and passes fn the patch from the
// last applied config to the reloaded one. A key removed from the file thus
// reverts to its default. current is the config in force when watching starts.
// Unreadable or invalid revisions are logged and skipped. Watch blocks until
// ctx is done.
func Watch(ctx context.Context, path string, current engine.Config, log zerolog.Logger, fn func(engine.ConfigPatch)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors commonly replace the file by rename.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			next, err := Load(abs)
			if err != nil {
				log.Warn().Err(err).Str("path", abs).Msg("config reload skipped")
				continue
			}
			p := current.Diff(next)
			if p.Empty() {
				continue
			}
			current = next
			log.Info().Str("path", abs).Msg("config reloaded")
			fn(p)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}
