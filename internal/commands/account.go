package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goblin-dev/goblin/internal/model"
)

func newAccountCommand(a *app) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage bank accounts",
	}
	accountCmd.AddCommand(newAccountAddCommand(a), newAccountListCommand(a))
	return accountCmd
}

func newAccountAddCommand(a *app) *cobra.Command {
	var acct model.Account

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			id, err := a.store.CreateAccount(cmd.Context(), &acct)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %d (%s, %s)\n", id, acct.Name, acct.Currency)
			return nil
		}),
	}

	cmd.Flags().StringVar(&acct.Name, "name", "", "account name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&acct.AccountNumber, "number", "", "bank account number")
	cmd.Flags().StringVar(&acct.Currency, "currency", model.DefaultCurrency, "ISO currency code")

	return cmd
}

func newAccountListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			accounts, err := a.store.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tNUMBER\tCURRENCY")
			for _, acct := range accounts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", acct.ID, acct.Name, acct.AccountNumber, acct.Currency)
			}
			return w.Flush()
		}),
	}
}
