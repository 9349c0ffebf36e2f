package backend

import (
	"context"
	"fmt"

	"xarajat/internal/cache"
	"xarajat/internal/core"
	applog "xarajat/internal/log"
	"xarajat/internal/storage"
	"xarajat/internal/storage/memory"
)

type DefaultFactory struct {
	logger *applog.Logger
	caches *cache.Manager
}

// NewFactory returns a factory that registers any cache it creates with caches.
// caches may be nil, in which case expired entries are only dropped on read.
func NewFactory(logger *applog.Logger, caches *cache.Manager) *DefaultFactory {
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentStorage})
	}
	return &DefaultFactory{logger: logger, caches: caches}
}

// CreateBackend opens the configured store and wraps it with the totals cache.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var result *BackendResult
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		result = &BackendResult{Store: repo, Cleanup: repo.Close}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		result = &BackendResult{Store: memory.New()}
		f.logger.WarnContext(ctx, "Initialized memory backend, expenses will not survive a restart")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if config.TotalsCacheSize > 0 {
		totals := cache.NewLRUCache[int64, core.Totals](config.TotalsCacheSize, config.TotalsCacheTTL)
		if f.caches != nil {
			f.caches.Register(totals)
		}
		result.Store = storage.NewCachedStore(result.Store, totals)
		f.logger.InfoContext(ctx, "Totals cache enabled",
			"size", config.TotalsCacheSize, "ttl", config.TotalsCacheTTL)
	}

	return result, nil
}
