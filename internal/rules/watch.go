package rules

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the engine whenever its rules file changes. It blocks until
// ctx is done. The parent directory is watched because editors usually
// replace files instead of writing them in place.
func (e *Engine) Watch(ctx context.Context, logger zerolog.Logger) error {
	if e.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(e.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch rules directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := e.Reload(); err != nil {
				logger.Warn().Err(err).Str("path", target).Msg("rules reload failed; keeping previous rules")
				continue
			}
			logger.Info().Str("path", target).Int("rules", e.Len()).Msg("rules reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("rules watcher error")
		}
	}
}
