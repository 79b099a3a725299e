package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
)

// FileName is the configuration file looked up next to the executable
const FileName = "ferret-hunt.yaml"

// Store manages the loaded configuration and swaps it on reload
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string // file the configuration came from; "" when defaults are in use
	dirs []string
}

// NewStore creates a store searching the executable directory, then the
// working directory. An explicit path, when given, is the only candidate.
func NewStore(explicit string) *Store {
	s := &Store{cfg: Default()}
	if explicit != "" {
		s.path = explicit
		return s
	}
	s.dirs = []string{execDir()}
	if wd, err := os.Getwd(); err == nil && wd != s.dirs[0] {
		s.dirs = append(s.dirs, wd)
	}
	return s
}

// Load reads the configuration. Without an explicit path a missing file is
// not an error and the defaults stay in effect.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path
	if path == "" {
		for _, dir := range s.dirs {
			candidate := filepath.Join(dir, FileName)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		logger.Info("No %s found in %v; using defaults", FileName, s.dirs)
		return nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	s.cfg = cfg
	s.path = path
	logger.Info("Config loaded: workers=%d, path=%s", cfg.Workers, path)
	return nil
}

// Reload re-reads the file the configuration came from. On error the
// current configuration is kept.
func (s *Store) Reload() error {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()
	if path == "" {
		return s.Load()
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to reload %s: %w", path, err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	logger.Info("Config reloaded from %s", path)
	return nil
}

// Get returns the current configuration
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Path returns the file in use, or "" when running on defaults
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// execDir returns the directory containing the current executable.
// Falls back to "." if the executable path cannot be determined.
func execDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
