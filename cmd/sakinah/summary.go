package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sakinah/internal/aggregate"
	"sakinah/internal/cli"
	"sakinah/internal/core"
)

func summaryCmd() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show balances, the active budget period and spending by category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(_ context.Context, app *cli.App) error {
				day := app.Controller.Today()
				if period != "" {
					d, err := core.ParseDate(period)
					if err != nil {
						return fmt.Errorf("--period: %w", err)
					}
					day = d
				}
				s := cli.BuildSummary(app.Controller.Owner(), app.Controller.Transactions(), app.Policy, day, app.Controller.Now())
				return cli.RenderSummary(os.Stdout, s)
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "show the budget period containing this date (default: today)")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		typ      string
		from, to string
		history  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := aggregate.Filter{Type: core.TxType(typ), From: from, To: to}
			if typ != "" && !f.Type.Valid() {
				return fmt.Errorf("--type %q: %w", typ, core.ErrInvalidType)
			}
			for _, d := range []string{from, to} {
				if d == "" {
					continue
				}
				if _, err := core.ParseDate(d); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(_ context.Context, app *cli.App) error {
				txs := f.Apply(app.Controller.Transactions())
				if history {
					txs = aggregate.HistoryView(txs)
				}
				return cli.RenderTransactions(os.Stdout, txs)
			})
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "income or expense")
	cmd.Flags().StringVar(&from, "from", "", "first date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date, inclusive (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&history, "history", false, "show each withdrawal once")
	return cmd
}
