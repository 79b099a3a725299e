package cli

import (
	"errors"
	"fmt"

	"github.com/digggggmori-pixel/ferret-hunt/internal/output"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scan"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var (
		jsonOut   bool
		outPath   string
		reportDir string
		overrides huntOverrides
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the selected hunts once and report detections",
		Long: `Run every selected hunt once against the configured scope.

Detections of the same artifact reported by several hunts are merged,
keeping the highest certainty.

Example:
  ferret-hunt scan
  ferret-hunt scan --tactic persistence --out results/scan.json
  ferret-hunt scan --snapshot exported.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, jsonOut, overrides)
			if err != nil {
				return err
			}
			defer s.close()

			sc, err := s.cfg.BuildScope()
			if err != nil {
				return err
			}
			scanCfg, err := s.cfg.ScanConfig()
			if err != nil {
				return err
			}
			svc, err := scan.NewService(cmd.Context(), s.catalog, s.backend, scanCfg)
			if err != nil {
				return err
			}

			s.out.PrintHeader(scan.Version, sc.Name())

			progress := make(chan scan.Progress)
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				for p := range progress {
					if p.Done {
						return
					}
					s.out.PrintStep(p.Step, p.Total, p.StepName)
					s.out.PrintDetail("%s", p.Detail)
				}
			}()

			result, scanErr := svc.WithProgress(progress).Execute(sc)
			<-drained
			if result == nil {
				return scanErr
			}

			if jsonOut {
				if err := output.WriteJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				for _, hr := range result.Hunts {
					s.out.PrintHuntResult(hr)
				}
				s.out.PrintDetections(result.Detections)
				s.out.PrintSummary(result)
			}

			var errs []error
			if scanErr != nil {
				errs = append(errs, scanErr)
			}
			if outPath != "" {
				if _, err := s.out.SaveResults(result, outPath); err != nil {
					errs = append(errs, err)
				}
			}
			if reportDir != "" {
				if _, err := s.out.SaveDetailedReport(result, reportDir); err != nil {
					errs = append(errs, err)
				}
			}
			if err := errors.Join(errs...); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Write the scan result as JSON to stdout")
	cmd.Flags().StringVar(&outPath, "out", "", "Also save the JSON result to this file")
	cmd.Flags().StringVar(&reportDir, "report", "", "Also save a text report into this directory")
	cmd.Flags().StringSliceVar(&overrides.tactics, "tactic", nil, "Only run hunts covering these tactics (overrides config)")
	cmd.Flags().StringSliceVar(&overrides.disabled, "disable", nil, "Hunts to skip, by name")

	return cmd
}
