// Package bootstrap connects the process-level dependencies shared by the
// server and the command-line tools.
package bootstrap

import (
	"context"
	"fmt"

	"circle/internal/cache"
	"circle/internal/config"
	"circle/internal/database"
	"circle/internal/mail"
	"circle/internal/middleware"
	"circle/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipStorage leaves Store nil, for tools that never touch media.
	SkipStorage bool
}

// Runtime holds the connected dependencies.
type Runtime struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Store  storage.BlobStore
	Mailer mail.Sender
}

// InitRuntime connects to the database, Redis and the blob store. Redis is
// optional: Runtime.Redis is nil when it cannot be reached.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rt := &Runtime{
		DB:     db,
		Redis:  cache.InitRedis(cfg.RedisURL),
		Mailer: mail.NewSMTPSender(cfg),
	}
	if rt.Redis == nil {
		middleware.Logger.Warn("redis unavailable; realtime fan-out, caching and token revocation are disabled")
	}

	if !opts.SkipStorage {
		store, err := storage.New(ctx, cfg)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("blob storage init failed: %w", err)
		}
		rt.Store = store
	}

	return rt, nil
}

// Close releases the database and Redis connections.
func (r *Runtime) Close() {
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", "error", cerr)
			}
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", "error", err)
		}
	}
}
