package cli

import (
	"context"

	"github.com/digggggmori-pixel/ferret-hunt/internal/config"
	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scan"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
	"github.com/spf13/cobra"
)

func newMonitorCmd() *cobra.Command {
	var (
		jsonOut   bool
		overrides huntOverrides
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch hunt locations and report new detections as they appear",
		Long: `Subscribe to the registry keys and folders each selected hunt
inspects and re-run a hunt whenever one of its locations changes.
Findings present when monitoring starts are taken as the baseline and
are not reported; only detections that appear afterwards are printed.

Editing the configuration file restarts monitoring with the new
settings. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, jsonOut, overrides)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			reloads := make(chan reload, 1)
			if s.store.Path() != "" {
				err := s.store.Watch(ctx, 0, func(cfg config.Config, err error) {
					// Only the latest outcome matters
					select {
					case <-reloads:
					default:
					}
					reloads <- reload{cfg, err}
				})
				if err != nil {
					logger.Warn("Configuration changes will not be picked up: %v", err)
				}
			}

			cfg := s.cfg
			for {
				runCtx, cancel := context.WithCancel(ctx)
				done := make(chan error, 1)
				go func() { done <- s.monitor(runCtx, cfg) }()

				next, err := s.awaitReload(done, reloads, overrides)
				cancel()
				if err != nil || next == nil {
					return err
				}
				if err := <-done; err != nil {
					return err
				}
				cfg = *next
				s.out.PrintNotice("Configuration reloaded from %s", s.store.Path())
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print each detection as a JSON line")
	cmd.Flags().StringSliceVar(&overrides.tactics, "tactic", nil, "Only run hunts covering these tactics (overrides config)")
	cmd.Flags().StringSliceVar(&overrides.disabled, "disable", nil, "Hunts to skip, by name")

	return cmd
}

type reload struct {
	cfg config.Config
	err error
}

// awaitReload blocks until the running session ends or a usable
// configuration arrives. Rejected configurations are reported and the
// session keeps running. A nil configuration means the session ended.
func (s *session) awaitReload(done <-chan error, reloads <-chan reload, overrides huntOverrides) (*config.Config, error) {
	for {
		select {
		case err := <-done:
			return nil, err
		case r := <-reloads:
			if r.err != nil {
				s.out.PrintError("configuration not reloaded: %v", r.err)
				continue
			}
			next := r.cfg
			overrides.apply(&next)
			if err := next.Validate(); err != nil {
				s.out.PrintError("configuration not reloaded: %v", err)
				continue
			}
			return &next, nil
		}
	}
}

// monitor runs one monitoring session under cfg until ctx is cancelled
func (s *session) monitor(ctx context.Context, cfg config.Config) error {
	sc, err := cfg.BuildScope()
	if err != nil {
		return err
	}
	scanCfg, err := cfg.ScanConfig()
	if err != nil {
		return err
	}
	svc, err := scan.NewService(ctx, s.catalog, s.backend, scanCfg)
	if err != nil {
		return err
	}

	s.out.PrintHeader(scan.Version, sc.Name())
	selected := svc.Hunts()
	for i, h := range selected {
		s.out.PrintStep(i+1, len(selected), "Watching "+h.Info().Technique.String())
		for _, e := range h.GetMonitoringEvents() {
			s.out.PrintDetail("%s", e)
		}
	}

	detections := make(chan types.Detection)
	done := make(chan error, 1)
	go func() { done <- svc.Monitor(sc, detections) }()

	for {
		select {
		case d := <-detections:
			s.out.PrintDetection(d)
		case err := <-done:
			return err
		}
	}
}
