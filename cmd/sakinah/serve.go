package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"sakinah/internal/cli"
	apphttp "sakinah/internal/http"
)

func serveCmd() *cobra.Command {
	var writesPerMinute int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Long: `Serve the cached ledger over HTTP. Clients sign in with POST /api/session;
--token or --owner signs in at startup instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cli.NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if token != "" || owner != "" {
				if err := app.SignIn(token, owner); err != nil {
					_ = app.Close(context.Background())
					return err
				}
			}

			srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
				Controller:      app.Controller,
				Session:         app.Session,
				Policy:          app.Policy,
				Logger:          logger,
				WritesPerMinute: writesPerMinute,
			})
			srv.ReadTimeout = 10 * time.Second
			srv.IdleTimeout = 60 * time.Second
			srv.MaxHeaderBytes = 1 << 16

			ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("Server shutdown error", "error", err)
				}
				if err := app.Close(ctx); err != nil {
					logger.Error("Sync shutdown error", "error", err)
				}
			})

			logger.Info("Starting sakinah server", "port", cfg.Port, "backend", cfg.DataBackend)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				_ = app.Close(context.Background())
				return err
			}

			cli.WaitForShutdown(ctx, done)
			logger.Info("Server stopped gracefully")
			return nil
		},
	}

	cmd.Flags().IntVar(&writesPerMinute, "writes-per-minute", 120, "mutating requests allowed per client per minute")
	return cmd
}
