package cli

import (
	"github.com/digggggmori-pixel/ferret-hunt/internal/output"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var reportDir string

	cmd := &cobra.Command{
		Use:   "report <results.json>",
		Short: "Render a scan result saved with scan --out",
		Long: `Print the hunts, detections and summary of a saved JSON scan
result the same way scan does, optionally writing a text report.

Example:
  ferret-hunt report results/scan.json
  ferret-hunt report results/scan.json --report reports/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
			verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
			out := output.New(output.Options{Quiet: quiet, Verbose: verbose, Writer: cmd.OutOrStdout()})

			result, err := output.LoadResults(args[0])
			if err != nil {
				return err
			}

			out.PrintNotice("Scan %s of %s", result.ScanID, result.Scope)
			for _, hr := range result.Hunts {
				out.PrintHuntResult(hr)
			}
			out.PrintDetections(result.Detections)
			out.PrintSummary(result)

			if reportDir != "" {
				if _, err := out.SaveDetailedReport(result, reportDir); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportDir, "report", "", "Also save a text report into this directory")
	return cmd
}
