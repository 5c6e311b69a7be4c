package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sakinah/internal/cli"
	"sakinah/internal/config"
	"sakinah/internal/log"
)

var (
	cfgFile string
	token   string
	owner   string

	cfg    *config.Config
	logger *log.Logger

	rootCmd = &cobra.Command{
		Use:   "sakinah",
		Short: "Personal cash and bank ledger with a synced local cache",
		Long: `sakinah keeps one owner's categories and transactions in a local cache,
mirrors every change to the configured store, and reports balances,
budget periods and spending breakdowns.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "access token (default: $SAKINAH_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "act as this owner without a token (default: $SAKINAH_OWNER)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(withdrawCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(categoriesCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.WarningStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	var err error
	cfg, err = cli.LoadAndValidateConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = cli.SetupLogger(cfg, os.Stderr)

	if token == "" {
		token = os.Getenv("SAKINAH_TOKEN")
	}
	if owner == "" {
		owner = os.Getenv("SAKINAH_OWNER")
	}
	return nil
}

// withApp opens the sync stack, signs in, runs fn and then waits for the
// remote writes fn queued before closing.
func withApp(ctx context.Context, fn func(ctx context.Context, app *cli.App) error) (err error) {
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout+5*time.Second)
		defer cancel()
		if cerr := app.Close(closeCtx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()

	if err := app.SignIn(token, owner); err != nil {
		return err
	}
	return fn(ctx, app)
}
