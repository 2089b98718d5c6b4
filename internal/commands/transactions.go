package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goblin-dev/goblin/internal/importer"
	"github.com/goblin-dev/goblin/internal/model"
)

func newTransactionsCommand(a *app) *cobra.Command {
	var account int64
	var r model.DateRange

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txns"},
		Short:   "List an account's transactions, newest first",
		Args:    cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := r.Validate(); err != nil {
				return err
			}
			if err := a.requireAccount(ctx, account); err != nil {
				return err
			}

			txns, err := a.store.ListTransactions(ctx, account, r)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transactions.")
				return nil
			}
			categories, err := a.store.ListCategories(ctx)
			if err != nil {
				return err
			}
			return printTransactions(cmd.OutOrStdout(), txns, categoryPaths(categories))
		}),
	}

	cmd.Flags().Int64Var(&account, "account", 0, "account id (required)")
	addRangeFlags(cmd, &r)

	cmd.AddCommand(
		newRecategorizeCommand(a),
		newReportCommand(a),
	)
	return cmd
}

func newRecategorizeCommand(a *app) *cobra.Command {
	var category int64
	var none bool

	cmd := &cobra.Command{
		Use:   "recategorize <id>...",
		Short: "Move transactions to another category",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			if (category > 0) == none {
				return errors.New("pass either --category or --none")
			}
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			var target *int64
			if !none {
				target = &category
			}
			n, err := a.store.RecategorizeTransactions(cmd.Context(), ids, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d of %d transaction(s).\n", n, len(ids))
			return nil
		}),
	}

	cmd.Flags().Int64Var(&category, "category", 0, "target category id")
	cmd.Flags().BoolVar(&none, "none", false, "clear the category instead")

	return cmd
}

func newReportCommand(a *app) *cobra.Command {
	var account int64
	var r model.DateRange

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Total expenses per top-level category, most spent first",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := r.Validate(); err != nil {
				return err
			}
			if err := a.requireAccount(ctx, account); err != nil {
				return err
			}

			totals, err := a.store.SpendingByCategory(ctx, account, r)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(totals) == 0 {
				fmt.Fprintln(out, "No expenses.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tTOTAL")
			for _, t := range totals {
				fmt.Fprintf(w, "%s\t%s\n", t.Category, importer.FormatAmount(t.Total))
			}
			return w.Flush()
		}),
	}

	cmd.Flags().Int64Var(&account, "account", 0, "account id (required)")
	addRangeFlags(cmd, &r)

	return cmd
}

func addRangeFlags(cmd *cobra.Command, r *model.DateRange) {
	cmd.Flags().StringVar(&r.From, "from", "", "first date to include, YYYY-MM-DD")
	cmd.Flags().StringVar(&r.To, "to", "", "last date to include, YYYY-MM-DD")
}

// categoryPaths names each category as "Parent / Child".
func categoryPaths(categories []model.Category) map[int64]string {
	names := make(map[int64]model.Category, len(categories))
	for _, c := range categories {
		names[c.ID] = c
	}
	paths := make(map[int64]string, len(categories))
	for _, c := range categories {
		path := c.Name
		if c.ParentID != nil {
			if p, ok := names[*c.ParentID]; ok {
				path = p.Name + " / " + c.Name
			}
		}
		paths[c.ID] = path
	}
	return paths
}

func printTransactions(w io.Writer, txns []model.Transaction, paths map[int64]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tPAYEE\tAMOUNT\tCATEGORY\tSTATUS")
	for _, t := range txns {
		category := "-"
		if t.CategoryID != nil {
			category = paths[*t.CategoryID]
		}
		status := t.Status
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date, t.Payee, importer.FormatAmount(t.Amount), category, status)
	}
	return tw.Flush()
}
