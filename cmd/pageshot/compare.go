package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/use-agent/pageshot/report"
)

func newCompareCommand(gs *globalState) *cobra.Command {
	th := report.DefaultThresholds

	cmd := &cobra.Command{
		Use:   "compare <report-a> <report-b>",
		Short: "Check two runs of a plan are equivalent",
		Long: `Compare two run reports (report.json files or the directories holding
them). Runs are equivalent when they have the same status, the same steps
with the same outcomes and screenshot names, and page fingerprints within
the thresholds. Exit status is 1 when they differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := report.Load(args[0])
			if err != nil {
				return err
			}
			b, err := report.Load(args[1])
			if err != nil {
				return err
			}

			cmp := report.Compare(a, b, th)
			if cmp.Equivalent {
				color.New(color.FgGreen).Fprintf(gs.stdout, "equivalent: %s (%d steps)\n", a.Plan, len(a.Steps))
				return nil
			}
			color.New(color.FgRed).Fprintf(gs.stderr, "not equivalent: %d differences\n", len(cmp.Differences))
			for _, d := range cmp.Differences {
				fmt.Fprintf(gs.stderr, "  - %s\n", d)
			}
			return errFailed
		},
	}

	f := cmd.Flags()
	f.IntVar(&th.Text, "text-threshold", th.Text, "max differing bits between text fingerprints")
	f.IntVar(&th.Structure, "structure-threshold", th.Structure, "max differing bits between structure fingerprints")
	return cmd
}
