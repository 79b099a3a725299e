package cli

import (
	"fmt"

	"github.com/digggggmori-pixel/ferret-hunt/internal/config"
	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt"
	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt/hunts"
	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/internal/output"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/spf13/cobra"
)

const configFileHint = config.FileName + " (default: next to the executable, then the working directory)"

// session is everything a command needs once flags and config are resolved
type session struct {
	store   *config.Store
	cfg     config.Config
	backend registry.Backend
	catalog *hunt.Catalog
	out     *output.Handler
	logging bool
}

// huntOverrides are hunt selection flags that take precedence over the config file
type huntOverrides struct {
	tactics  []string
	disabled []string
}

func (o huntOverrides) apply(cfg *config.Config) {
	if len(o.tactics) > 0 {
		cfg.Hunts.Tactics = o.tactics
	}
	cfg.Hunts.Disabled = append(append([]string(nil), cfg.Hunts.Disabled...), o.disabled...)
}

func openSession(cmd *cobra.Command, json bool, overrides huntOverrides) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	configPath, _ := flags.GetString("config")
	snapshot, _ := flags.GetString("snapshot")
	quiet, _ := flags.GetBool("quiet")
	verbose, _ := flags.GetBool("verbose")

	store := config.NewStore(configPath)
	if err := store.Load(); err != nil {
		return nil, err
	}
	cfg := store.Get()
	overrides.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &session{
		store: store,
		cfg:   cfg,
		out: output.New(output.Options{
			Quiet:   quiet,
			Verbose: verbose,
			JSON:    json,
			Writer:  cmd.OutOrStdout(),
		}),
	}

	if opts, ok := cfg.LoggerOptions(); ok {
		if err := logger.Init(opts); err != nil {
			return nil, err
		}
		s.logging = true
		if p := store.Path(); p != "" {
			logger.Info("Configuration: %s", p)
		}
	}

	if snapshot != "" {
		b, err := registry.LoadSnapshotFile(snapshot)
		if err != nil {
			s.close()
			return nil, err
		}
		logger.Info("Registry snapshot: %s", snapshot)
		s.backend = b
	} else {
		s.backend = registry.Default()
	}

	s.catalog = hunt.NewCatalog()
	if err := hunts.Register(s.catalog, hunt.LocalEnvironment().WithRegistry(s.backend)); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	if s.logging {
		logger.Close()
	}
}
