package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/bridgetx/internal/transaction"
)

func newEstimateCmd(global *globalOptions) *cobra.Command {
	opts := &sendOptions{}
	var printTx bool

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Simulate a transaction and print the compute budget it would get",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(global, nil)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.ready(ctx); err != nil {
				return err
			}
			req, err := buildRequest(cmd.InOrStdin(), opts)
			if err != nil {
				return err
			}

			// Подпись не нужна, кошелек не загружаем.
			sub := transaction.NewSubmitter(a.client, nil, submitterConfig(a.cfg), a.logger,
				transaction.WithMetrics(a.metrics))
			budget, err := sub.Estimate(ctx, req)
			if err != nil {
				printFailure(cmd.ErrOrStderr(), a.logger, err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "units_consumed: %d\n", budget.UnitsConsumed)
			fmt.Fprintf(out, "unit_limit:     %d\n", budget.UnitLimit)
			fmt.Fprintf(out, "unit_price:     %d\n", budget.UnitPrice)
			fmt.Fprintf(out, "simulations:    %d\n", budget.Attempts)
			if printTx {
				encoded, err := encodeBase64(req.Transaction)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "input:", encoded)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.txPath, "tx", "-", "encoded unsigned transaction file, - for stdin")
	cmd.Flags().StringVar(&opts.commitment, "commitment", "", "processed, confirmed or finalized (default from config)")
	cmd.Flags().BoolVar(&printTx, "print-input", false, "echo the decoded input transaction as base64")
	return cmd
}
