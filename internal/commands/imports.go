package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newImportsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "imports",
		Short: "Show the import log",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			entries, err := a.store.ListImports(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No imports yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tIMPORTED AT\tFILE\tADDED\tRUN")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
					e.ID, e.ImportedAt.Local().Format(time.DateTime), e.Filename, e.RecordsAdded, e.RunID)
			}
			return w.Flush()
		}),
	}
}
