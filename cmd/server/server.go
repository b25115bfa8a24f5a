package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"codeberg.org/storefront/server/internal/config"
	"codeberg.org/storefront/server/internal/db"
	"codeberg.org/storefront/server/internal/logger"
	"codeberg.org/storefront/server/storefront/sessions"
)

const (
	// how often the sweeper checks for expired sessions
	sweepInterval = time.Hour

	// max expired-session delete batches per second
	sweepBatchesPerSecond = 10
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// session traffic is many short point queries, keep the pool modest
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := db.NewMigrator()
	if err := migrator.Run(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	cache, err := sessions.NewRedisCacheFromURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize session cache: %w", err)
	}

	logger.Info("connected to redis")

	store := sessions.NewRepository(pool)

	sweeper := sessions.NewSweeper(store, cache, sessions.SweeperOptions{
		CheckInterval:    sweepInterval,
		BatchesPerSecond: sweepBatchesPerSecond,
		Ready:            migrator.Ready,
	})

	server := &Server{
		db:       pool,
		config:   cfg,
		codec:    sessions.NewCodec([]byte(cfg.SessionSecret)),
		store:    store,
		cache:    cache,
		sweeper:  sweeper,
		migrator: migrator,
	}

	router, err := NewRouter(server)
	if err != nil {
		cache.Close() //nolint:errcheck,gosec // best-effort cleanup on init failure
		pool.Close()
		return nil, err
	}

	server.router = router
	return server, nil
}
