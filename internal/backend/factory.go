package backend

import (
	"context"
	"errors"
	"fmt"

	"sakinah/internal/amqp"
	"sakinah/internal/log"
	"sakinah/internal/remote"
	"sakinah/internal/remote/memory"
	"sakinah/internal/storage"
	"sakinah/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createSQLiteBackend publishes changes on AMQP when configured so several
// processes sharing the database file converge. Without AMQP, or when the
// broker is unreachable, changes stay in-process.
func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	var (
		broker     remote.Broker
		amqpBroker *amqp.Broker
	)
	if config.AMQPURL != "" {
		b, err := amqp.NewBroker(ctx, config.AMQPURL, config.AMQPExchange, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP broker, continuing with in-process changes", "error", err)
		} else {
			amqpBroker = b
			broker = b
			f.logger.Info("Initialized AMQP broker", "exchange", config.AMQPExchange)
		}
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, broker, f.logger)
	if err != nil {
		if amqpBroker != nil {
			amqpBroker.Close()
		}
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpBroker != nil)

	return &BackendResult{
		Gateway: repo,
		Cleanup: func() error {
			var errs []error
			if err := repo.Close(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
			if amqpBroker != nil {
				if err := amqpBroker.Close(); err != nil {
					errs = append(errs, fmt.Errorf("amqp: %w", err))
				}
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.New(ctx, config.DatabaseURL, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	f.logger.Info("Initialized postgres backend")

	return &BackendResult{
		Gateway: repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store := memory.New()

	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Gateway: store,
		Cleanup: store.Close,
	}, nil
}
