package backend

import (
	"context"
	"fmt"

	"reina/internal/log"
	"reina/internal/session"
	"reina/internal/storage"
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

	sealer, err := storage.NewSealer(config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token sealing: %w", err)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config, sealer)
	case RedisBackend:
		return f.createRedisBackend(ctx, config, sealer)
	case MemoryBackend:
		f.logger.Debug("Using in-memory session only")
		return &BackendResult{}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config, sealer *storage.Sealer) (*BackendResult, error) {
	repo, err := storage.NewSQLiteSessionRepository(config.SQLiteDBPath, sealer, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite session store: %w", err)
	}

	f.logger.Debug("Initialized SQLite session backend",
		"db_path", config.SQLiteDBPath,
		"sealed", sealer.Enabled())

	return &BackendResult{
		Persister: repo,
		Cleanup:   repo.Close,
	}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config, sealer *storage.Sealer) (*BackendResult, error) {
	repo, err := storage.NewRedisSessionRepository(ctx, config.RedisAddr, config.RedisKey, sealer, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis session store: %w", err)
	}

	f.logger.Debug("Initialized Redis session backend",
		"addr", config.RedisAddr,
		"sealed", sealer.Enabled())

	return &BackendResult{
		Persister: repo,
		Cleanup:   repo.Close,
	}, nil
}

// OpenSession builds the process session store and binds it to the
// configured persistence backend. The returned cleanup stops the
// write-through and releases the backend.
func OpenSession(ctx context.Context, factory Factory, config Config, logger *log.Logger) (*session.MemoryStore, CleanupFunc, error) {
	if logger == nil {
		logger = log.Discard()
	}

	result, err := factory.CreateBackend(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	store := session.NewMemoryStore()
	if result.Persister == nil {
		return store, func() error { return nil }, nil
	}

	unbind, err := session.Bind(ctx, store, result.Persister, logger)
	if err != nil {
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
		return nil, nil, err
	}

	return store, func() error {
		unbind()
		if result.Cleanup != nil {
			return result.Cleanup()
		}
		return nil
	}, nil
}
