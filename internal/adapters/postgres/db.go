// Package postgres is the account backend for multi-instance deployments.
// Units of work run as SERIALIZABLE transactions; a serialization failure is
// reported as ports.ErrConflict so the host can rerun the unit.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"breachx/internal/migrations"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Migrate applies pending schema migrations through a database/sql view of
// the pool.
func (db *DB) Migrate(ctx context.Context, log *zap.Logger) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()
	return migrations.Up(ctx, sqlDB, "postgres", log)
}

func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}
