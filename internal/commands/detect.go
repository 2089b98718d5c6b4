package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goblin-dev/goblin/internal/detect"
	"github.com/goblin-dev/goblin/internal/importer"
	"github.com/goblin-dev/goblin/internal/logger"
	"github.com/goblin-dev/goblin/internal/model"
)

func newDetectCommand(a *app) *cobra.Command {
	var account int64
	var minConfidence float64
	var save bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Find recurring payments in an account",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireAccount(ctx, account); err != nil {
				return err
			}

			d := detect.New(a.store)
			d.MinConfidence = a.cfg.Detection.MinConfidence
			d.MinOccurrences = a.cfg.Detection.MinOccurrences
			if cmd.Flags().Changed("min-confidence") {
				if minConfidence < 0 || minConfidence > 1 {
					return fmt.Errorf("--min-confidence %v outside [0, 1]", minConfidence)
				}
				d.MinConfidence = minConfidence
			}

			candidates, err := d.Detect(ctx, account)
			if err != nil {
				return err
			}
			a.metrics.ObserveDetection(len(candidates))
			log := logger.FromContext(ctx)
			log.Info().Int("candidates", len(candidates)).Msg("detection_finished")

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "No recurring payments found.")
				return nil
			}
			if err := printSubscriptions(out, candidates, false); err != nil {
				return err
			}

			if !save {
				return nil
			}
			for i := range candidates {
				if _, err := a.store.SaveSubscription(ctx, &candidates[i]); err != nil {
					return fmt.Errorf("saving %s: %w", candidates[i].PayeePattern, err)
				}
			}
			fmt.Fprintf(out, "Saved %d subscription(s).\n", len(candidates))
			return nil
		}),
	}

	cmd.Flags().Int64Var(&account, "account", 0, "account id (required)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", detect.DefaultMinConfidence, "minimum confidence to report")
	cmd.Flags().BoolVar(&save, "save", false, "save every candidate as a subscription")

	return cmd
}

func printSubscriptions(w io.Writer, subs []model.Subscription, withID bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if withID {
		fmt.Fprint(tw, "ID\t")
	}
	fmt.Fprintln(tw, "PAYEE\tAMOUNT\tFREQUENCY\tCONFIDENCE\tLAST\tNEXT\tCHARGES")
	for _, s := range subs {
		if withID {
			fmt.Fprintf(tw, "%d\t", s.ID)
		}
		next := s.NextChargeDate
		if next == "" {
			next = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%d\n",
			s.PayeePattern, importer.FormatAmount(s.Amount), s.Frequency, s.Confidence,
			s.LastChargeDate, next, len(s.TransactionIDs))
	}
	return tw.Flush()
}
