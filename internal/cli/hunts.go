package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHuntsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hunts",
		Short: "List the available hunts and whether the configuration selects them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, false, huntOverrides{})
			if err != nil {
				return err
			}
			defer s.close()

			filter, err := s.cfg.HuntFilter()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTECHNIQUE\tTACTICS\tDATA SOURCES\tSELECTED")
			for _, h := range s.catalog.All() {
				info := h.Info()
				selected := "no"
				if filter.Matches(info) {
					selected = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					info.Name, info.Technique, info.Tactics, info.DataSources, selected)
				for _, e := range h.GetMonitoringEvents() {
					fmt.Fprintf(tw, "  %s\t\t\t\t\n", e)
				}
			}
			return tw.Flush()
		},
	}
}
