// Package app assembles the registry from configuration.
package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"breachx/internal/adapters/bolt"
	"breachx/internal/adapters/memory"
	"breachx/internal/adapters/postgres"
	"breachx/internal/adapters/redis"
	"breachx/internal/adapters/sqlite"
	"breachx/internal/config"
	"breachx/internal/domain"
	"breachx/internal/host"
	"breachx/internal/ports"
	"breachx/internal/services/badges"
	"breachx/internal/services/registry"
	"breachx/internal/services/reports"
)

// OpenBackend opens the account backend named by cfg.Backend. SQL backends
// are migrated before they are returned.
func OpenBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (ports.AccountBackend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendBolt:
		s, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt %s: %w", cfg.BoltPath, err)
		}
		return s, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return s, nil
	case config.BackendRedis:
		s, err := redis.Open(ctx, redis.Options{URL: cfg.RedisURL, Prefix: cfg.RedisPrefix})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.Migrate(ctx, log); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Registry is the assembled service plus the backend it owns.
type Registry struct {
	*registry.Service
	Backend ports.AccountBackend
}

func (r *Registry) Close() error { return r.Backend.Close() }

// Telemetry carries the providers a registry reports to. Nil fields fall back
// to the global providers.
type Telemetry struct {
	Tracer trace.TracerProvider
	Meter  metric.MeterProvider
}

// NewRegistry wires a registry over an open backend.
func NewRegistry(backend ports.AccountBackend, cfg config.Config, log *zap.Logger, tel Telemetry) (*Registry, error) {
	program, err := domain.ParseAddress(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	opts := []host.Option{host.WithLogger(log)}
	if tel.Tracer != nil {
		opts = append(opts, host.WithTracerProvider(tel.Tracer))
	}
	svc, err := registry.New(host.New(backend, opts...), registry.Config{
		Program: program,
		Limits: reports.Limits{
			MaxRepositoryIDLen:   cfg.MaxRepositoryIDLen,
			MaxReportLocationLen: cfg.MaxReportLocationLen,
		},
		Defaults: badges.Defaults{
			Symbol:   cfg.BadgeSymbol,
			BaseURL:  cfg.PublicBaseURL,
			ImageURL: cfg.BadgeImageURL,
		},
		Meter: tel.Meter,
	}, log)
	if err != nil {
		return nil, err
	}
	return &Registry{Service: svc, Backend: backend}, nil
}

// Open is OpenBackend followed by NewRegistry.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger, tel Telemetry) (*Registry, error) {
	backend, err := OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(backend, cfg, log, tel)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return reg, nil
}
