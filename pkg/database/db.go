package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/laala/laala-api/internal/reliability/retry"
)

// Config holds database configuration. Zero values fall back to the pool
// defaults below.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectRetry    *retry.Config
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = min(5, c.MaxOpenConns)
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnectRetry == nil {
		c.ConnectRetry = retry.Startup()
	}
	return c
}

// ConnectionPool owns the *sql.DB shared by every Postgres repository
type ConnectionPool struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConnectionPool opens the pool and waits for the database to answer.
func NewConnectionPool(ctx context.Context, config *Config, logger *slog.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := config.withDefaults()

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	_, err = retry.Do(ctx, cfg.ConnectRetry, logger, "database ping", func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connected", slog.Int("max_open_conns", cfg.MaxOpenConns))
	return &ConnectionPool{db: db, logger: logger}, nil
}

// GetDB returns the underlying pool
func (cp *ConnectionPool) GetDB() *sql.DB {
	return cp.db
}

// Close closes the pool
func (cp *ConnectionPool) Close() error {
	if cp.db == nil {
		return nil
	}
	return cp.db.Close()
}

// Health pings the database with a short deadline; it backs /readyz.
func (cp *ConnectionPool) Health(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return cp.db.PingContext(pingCtx)
}
