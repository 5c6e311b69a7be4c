package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sakinah/internal/cli"
	"sakinah/internal/core"
)

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income or an expense",
	}
	cmd.AddCommand(addTransactionCmd(core.Income))
	cmd.AddCommand(addTransactionCmd(core.Expense))
	return cmd
}

func addTransactionCmd(typ core.TxType) *cobra.Command {
	var (
		account      string
		category     string
		date         string
		description  string
		counterparty string
	)

	defaultAccount := string(core.Cash)
	if typ == core.Income {
		defaultAccount = string(core.Bank)
	}

	cmd := &cobra.Command{
		Use:   string(typ) + " <amount>",
		Short: "Record a new " + string(typ),
		Example: fmt.Sprintf("  sakinah add %s 25000 --category Makanan\n  sakinah add %s \"Rp 1.500.000\" --category Gaji --account bank",
			typ, typ),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
				if date == "" {
					date = app.Controller.Today().String()
				}
				tx, err := app.Controller.AddTransaction(ctx, core.Transaction{
					Type:         typ,
					Amount:       amount,
					Date:         date,
					Account:      core.Account(strings.ToLower(account)),
					Category:     strings.TrimSpace(category),
					Description:  strings.TrimSpace(description),
					Counterparty: strings.TrimSpace(counterparty),
				})
				if err != nil {
					return err
				}
				fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Recorded %s %s (%s)", typ, cli.Rupiah(tx.Amount), tx.ID)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", defaultAccount, "cash or bank")
	cmd.Flags().StringVar(&category, "category", "", "category name")
	cmd.Flags().StringVar(&date, "date", "", "transaction date (default: today)")
	cmd.Flags().StringVar(&description, "description", "", "free-form note")
	cmd.Flags().StringVar(&counterparty, "counterparty", "", "who was paid or paid you")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func withdrawCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Move money from the bank account to cash",
		Long: `Record a cash withdrawal as two linked rows: a bank expense and a cash
income, both labelled "` + core.WithdrawalCategory + `". Deleting either row removes both.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
				pair, err := app.Controller.WithdrawCash(ctx, amount, date)
				if err != nil {
					return err
				}
				fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Withdrew %s on %s", cli.Rupiah(amount), pair[0].Date)))
				return cli.RenderTransactions(os.Stdout, pair)
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "withdrawal date (default: today)")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <transaction-id>",
		Short: "Delete a transaction, and its counterpart if it is a withdrawal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
				removed, err := app.Controller.DeleteTransaction(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Println(cli.SuccessStyle.Render("✓ Deleted " + strings.Join(removed, ", ")))
				return nil
			})
		},
	}
}
