// Package cli provides the initialization shared by the sakinah commands:
// environment, config, logging, backend and sync controller wiring, and
// signal handling.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"sakinah/internal/aggregate"
	"sakinah/internal/auth"
	"sakinah/internal/backend"
	"sakinah/internal/cache"
	"sakinah/internal/config"
	"sakinah/internal/log"
	"sakinah/internal/notify"
	"sakinah/internal/services"
)

var ErrNoCredentials = errors.New("no credentials: pass --token, set SAKINAH_TOKEN, or pass --owner")

// SetupLogger builds the process logger from cfg and makes it the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// configFile (or ./config.yaml) and validates it.
func LoadAndValidateConfig(configFile string) (*config.Config, error) {
	cfg, err := config.LoadFrom(viper.New(), configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is one wired sync stack: gateway, cache, bus, session and controller.
type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Session    *auth.Session
	Controller *services.Controller
	Policy     aggregate.PeriodPolicy

	cleanup backend.CleanupFunc
}

// NewApp opens the configured backend and starts a controller on it. The
// controller stays unauthenticated until SignIn.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	return newApp(ctx, cfg, logger, backend.NewFactory(logger))
}

func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger, factory backend.Factory) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	session := auth.NewSession(cfg.AuthJWTSecret)
	ctrl := services.NewController(cache.NewStore(), res.Gateway, session, notify.NewBus(), logger,
		services.Config{
			LoadTimeout:  cfg.LoadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Now:          time.Now,
		})
	if err := ctrl.Start(ctx); err != nil {
		_ = res.Cleanup()
		return nil, fmt.Errorf("start controller: %w", err)
	}

	logger.InfoContext(ctx, "Sync stack ready", log.FieldBackend, bcfg.Type.String())
	return &App{
		Config:     cfg,
		Logger:     logger,
		Session:    session,
		Controller: ctrl,
		Policy:     aggregate.NewCutoffPolicy(cfg.CutoffDay),
		cleanup:    res.Cleanup,
	}, nil
}

// SignIn makes the token's subject, or owner when no token is given, the
// active owner and waits for its rows to load.
func (a *App) SignIn(token, owner string) error {
	switch {
	case token != "":
		if _, err := a.Session.SignInToken(token); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	case owner != "":
		a.Session.SetOwner(owner)
	default:
		return ErrNoCredentials
	}
	if a.Controller.State() != services.Ready {
		return fmt.Errorf("sign in: owner data not loaded (state %s)", a.Controller.State())
	}
	return nil
}

// Close waits for pending remote writes, then releases the backend.
func (a *App) Close(ctx context.Context) error {
	err := a.Controller.Close(ctx)
	if cerr := a.cleanup(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled once cleanup has run after SIGINT or
// SIGTERM; done is closed right after.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}

		cancel()
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
