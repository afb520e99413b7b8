package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay coalesces the burst of events editors emit for one save.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the registry from path whenever the file changes, until ctx
// is cancelled. The parent directory is watched so that editors that save
// by renaming a temp file are picked up. A file that fails to parse is
// logged and the previous descriptor set stays active.
//
// Watch blocks; run it in a goroutine.
func (r *Registry) Watch(ctx context.Context, path string, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	log := logger.With().Str("component", "registry").Str("path", abs).Logger()
	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		case <-timer.C:
			descs, err := ParseFile(abs)
			if err != nil {
				log.Warn().Err(err).Msg("registry reload failed, keeping previous types")
				continue
			}
			r.Replace(descs)
			log.Info().Int("types", len(descs)).Msg("registry reloaded")
		}
	}
}
