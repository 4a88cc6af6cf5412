package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/soundpuff-e2e/internal/scenarios"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scenarios in run order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, sc := range scenarios.Catalogue() {
				who := "user"
				if !sc.NeedsLogin {
					who = "guest"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", sc.Name, who, sc.Description)
			}
			return tw.Flush()
		},
	}
}
