// Package config loads the agent configuration from ferret-hunt.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt"
	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scan"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scope"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk ferret-hunt.yaml structure
type Config struct {
	Workers int           `yaml:"workers"`
	Log     LogConfig     `yaml:"log"`
	Scope   ScopeConfig   `yaml:"scope"`
	Hunts   HuntsConfig   `yaml:"hunts"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// LogConfig controls the log file
type LogConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Dir       string `yaml:"dir"`
	Level     string `yaml:"level"`
	Verbosity int    `yaml:"verbosity"`
}

// ScopeConfig restricts what hunts look at
type ScopeConfig struct {
	Name    string   `yaml:"name"`
	Users   []string `yaml:"users"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// HuntsConfig selects hunts by name and tag
type HuntsConfig struct {
	Disabled    []string `yaml:"disabled"`
	Tactics     []string `yaml:"tactics"`
	DataSources []string `yaml:"data_sources"`
	Categories  []string `yaml:"categories"`
}

// MonitorConfig tunes the change watcher
type MonitorConfig struct {
	RegistryPollInterval time.Duration `yaml:"registry_poll_interval"`
	Debounce             time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when no file is present
func Default() Config {
	sc := scan.DefaultConfig()
	return Config{
		Workers: sc.Workers,
		Log: LogConfig{
			Enabled: true,
			Level:   "info",
		},
		Monitor: MonitorConfig{
			RegistryPollInterval: sc.PollInterval,
			Debounce:             sc.Debounce,
		},
	}
}

// Parse reads YAML over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile parses the file at path
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Validate checks every field that would otherwise fail later
func (c Config) Validate() error {
	var errs []error
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Log.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity))
	}
	if c.Log.Level != "" {
		if _, err := logger.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Monitor.RegistryPollInterval < 0 || c.Monitor.Debounce < 0 {
		errs = append(errs, errors.New("monitor intervals must not be negative"))
	}
	if _, err := c.HuntFilter(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BuildScope(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BuildScope compiles the configured scope
func (c Config) BuildScope() (*scope.Scope, error) {
	opts := []scope.Option{
		scope.WithUsers(c.Scope.Users...),
		scope.WithInclude(c.Scope.Include...),
		scope.WithExclude(c.Scope.Exclude...),
	}
	if c.Scope.Name != "" {
		opts = append(opts, scope.WithName(c.Scope.Name))
	}
	return scope.New(opts...)
}

// HuntFilter converts the hunt selection into a catalog filter
func (c Config) HuntFilter() (hunt.Filter, error) {
	f := hunt.Filter{Disabled: c.Hunts.Disabled}

	var err error
	if f.Tactics, err = parseSet(c.Hunts.Tactics, types.ParseTactic); err != nil {
		return hunt.Filter{}, err
	}
	if f.DataSources, err = parseSet(c.Hunts.DataSources, types.ParseDataSource); err != nil {
		return hunt.Filter{}, err
	}
	if f.Categories, err = parseSet(c.Hunts.Categories, types.ParseCategory); err != nil {
		return hunt.Filter{}, err
	}
	return f, nil
}

// ScanConfig returns the scheduler settings
func (c Config) ScanConfig() (scan.Config, error) {
	filter, err := c.HuntFilter()
	if err != nil {
		return scan.Config{}, err
	}
	return scan.Config{
		Workers:      c.Workers,
		Filter:       filter,
		PollInterval: c.Monitor.RegistryPollInterval,
		Debounce:     c.Monitor.Debounce,
	}, nil
}

// LoggerOptions returns the logger settings, or false when logging is off
func (c Config) LoggerOptions() (logger.Options, bool) {
	if !c.Log.Enabled {
		return logger.Options{}, false
	}
	level := logger.LevelInfo
	if l, err := logger.ParseLevel(c.Log.Level); err == nil {
		level = l
	}
	return logger.Options{
		Dir:       c.Log.Dir,
		Level:     level,
		Verbosity: c.Log.Verbosity,
	}, true
}

func parseSet[T types.Tag](names []string, parse func(string) (T, error)) (types.Set[T], error) {
	if len(names) == 0 {
		return nil, nil
	}
	set := types.NewSet[T]()
	for _, n := range names {
		t, err := parse(n)
		if err != nil {
			return nil, err
		}
		set[t] = struct{}{}
	}
	return set, nil
}
