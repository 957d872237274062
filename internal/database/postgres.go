package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"usermgmt/console/internal/config"
)

const (
	applicationName   = "user-console"
	connectTimeout    = 10 * time.Second
	healthCheckPeriod = 30 * time.Second
)

// NewPostgresPool opens the pool backing the postgres session store. The
// connections show up as user-console in pg_stat_activity.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	applyPoolLimits(poolConfig, cfg)
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// applyPoolLimits copies the configured limits over pgx's defaults. Zero
// values keep the default; idle connections never exceed the maximum.
func applyPoolLimits(pc *pgxpool.Config, cfg config.PostgresConfig) {
	if cfg.MaxOpen > 0 {
		pc.MaxConns = int32(cfg.MaxOpen)
	}
	idle := cfg.MaxIdle
	if cfg.MaxOpen > 0 && idle > cfg.MaxOpen {
		idle = cfg.MaxOpen
	}
	if idle > 0 {
		pc.MinConns = int32(idle)
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pc.HealthCheckPeriod = healthCheckPeriod
}
