package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/use-agent/pageshot/plan"
)

func newPlansCommand(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "plans [name]",
		Short: "List built-in plans, or print one as YAML",
		Long: `List the built-in plans. With a name, print that plan as YAML; the
output is a valid --plan-file to start a custom plan from.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 1 {
				p, err := plan.Builtin(args[0])
				if err != nil {
					return err
				}
				data, err := plan.Marshal(p)
				if err != nil {
					return err
				}
				_, err = gs.stdout.Write(data)
				return err
			}

			tw := tabwriter.NewWriter(gs.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTEPS\tDESCRIPTION")
			for _, info := range plan.Infos() {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Steps, info.Description)
			}
			return tw.Flush()
		},
	}
}
