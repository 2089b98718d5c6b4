package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubscriptionsCommand(a *app) *cobra.Command {
	subsCmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "Manage saved subscriptions",
	}
	subsCmd.AddCommand(
		newSubscriptionsListCommand(a),
		newSubscriptionsDismissCommand(a),
		newSubscriptionsDeleteCommand(a),
		newSubscriptionsClearCommand(a),
	)
	return subsCmd
}

func newSubscriptionsListCommand(a *app) *cobra.Command {
	var account int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active subscriptions by next charge date",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireAccount(ctx, account); err != nil {
				return err
			}
			subs, err := a.store.ListSubscriptions(ctx, account)
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active subscriptions.")
				return nil
			}
			return printSubscriptions(cmd.OutOrStdout(), subs, true)
		}),
	}

	cmd.Flags().Int64Var(&account, "account", 0, "account id (required)")

	return cmd
}

func newSubscriptionsDismissCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Mark a subscription inactive; detection may offer it again",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.DismissSubscription(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dismissed subscription %d.\n", id)
			return nil
		}),
	}
}

func newSubscriptionsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteSubscription(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted subscription %d.\n", id)
			return nil
		}),
	}
}

func newSubscriptionsClearCommand(a *app) *cobra.Command {
	var account int64

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every subscription of an account",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireAccount(ctx, account); err != nil {
				return err
			}
			n, err := a.store.ClearSubscriptions(ctx, account)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d subscription(s).\n", n)
			return nil
		}),
	}

	cmd.Flags().Int64Var(&account, "account", 0, "account id (required)")

	return cmd
}
