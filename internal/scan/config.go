package scan

import (
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt"
)

// Config holds scan configuration
type Config struct {
	Workers int         // hunts run concurrently
	Filter  hunt.Filter // which hunts to run

	PollInterval time.Duration // registry polling period while monitoring
	Debounce     time.Duration // quiet period before a monitored change re-runs a hunt
}

// DefaultConfig returns the default scan configuration
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		PollInterval: 2 * time.Second,
		Debounce:     500 * time.Millisecond,
	}
}
