package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"stockchat/backend/internal/config"
	"stockchat/backend/internal/database"
	app_errors "stockchat/backend/internal/errors"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var noopCloser = closerFunc(func() error { return nil })

// NewThreadRepository builds the backend selected by cfg.CheckpointBackend.
// The returned io.Closer releases the underlying connection.
func NewThreadRepository(ctx context.Context, cfg *config.Config) (ThreadRepository, io.Closer, error) {
	switch cfg.CheckpointBackend {
	case config.BackendMemory, "":
		return NewMemoryRepository(), noopCloser, nil

	case config.BackendSQLite:
		db, err := database.InitDB(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)
		return NewSQLiteRepository(db), db, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		slog.Info("Successfully connected to Redis.", "addr", cfg.RedisAddr)
		return NewRedisRepository(rdb, cfg.RedisThreadTTL), rdb, nil

	case config.BackendBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create bolt directory: %w", err)
		}
		db, err := OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Opened bolt thread store.", "path", cfg.BoltPath)
		return NewBoltRepository(db), db, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown checkpoint backend %q", app_errors.ErrValidation, cfg.CheckpointBackend)
	}
}
