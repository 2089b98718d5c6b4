package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/goblin-dev/goblin/internal/importer"
	"github.com/goblin-dev/goblin/internal/spending"
)

func newSpendCommand(a *app) *cobra.Command {
	var month string
	var categories []int64
	var depth int

	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Total the expenses of categories and their subcategories for a month",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			if len(categories) == 0 {
				return errors.New("at least one --category is required")
			}

			calc := spending.NewCalculator(a.store)
			calc.Depth = a.cfg.Spending.Depth
			if cmd.Flags().Changed("depth") {
				calc.Depth = depth
			}

			total, err := calc.Spent(cmd.Context(), month, categories)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Spent in %s: %s\n", month, importer.FormatAmount(total))
			return nil
		}),
	}

	cmd.Flags().StringVar(&month, "month", time.Now().Format("2006-01"), "month as YYYY-MM")
	cmd.Flags().Int64SliceVar(&categories, "category", nil, "category id; repeat or comma-separate for several")
	cmd.Flags().IntVar(&depth, "depth", spending.DefaultDepth, "subcategory generations to include; -1 = all")

	return cmd
}
