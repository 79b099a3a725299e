package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/fsnotify/fsnotify"
)

const defaultReloadDebounce = 200 * time.Millisecond

// Watch reloads the configuration whenever its file is written or replaced
// and reports every attempt to onChange with the configuration now in
// effect. The file's directory is watched so that editors replacing the file
// are noticed. The watch is active when Watch returns and stops with ctx.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func(Config, error)) error {
	path := s.Path()
	if path == "" {
		return errors.New("no configuration file to watch")
	}
	if onChange == nil {
		return errors.New("change callback is required")
	}
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	go s.processEvents(ctx, watcher, filepath.Base(path), debounce, onChange)
	return nil
}

func (s *Store) processEvents(ctx context.Context, watcher *fsnotify.Watcher, name string, debounce time.Duration, onChange func(Config, error)) {
	defer watcher.Close()

	var pending time.Time
	ticker := time.NewTicker(debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == name && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Config watcher error: %v", err)

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < debounce {
				continue
			}
			pending = time.Time{}
			err := s.Reload()
			if err != nil {
				logger.Warn("Config reload failed, keeping previous settings: %v", err)
			}
			onChange(s.Get(), err)

		case <-ctx.Done():
			return
		}
	}
}
