// Package application wires the configured stores into a core.Service.
// Both the HTTP server and routectl start from Open.
package application

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/routeimport/internal/config"
	"github.com/JonMunkholm/routeimport/internal/core"
	"github.com/JonMunkholm/routeimport/internal/database"
	"github.com/JonMunkholm/routeimport/internal/memstore"
	"github.com/JonMunkholm/routeimport/internal/storage"
)

// App holds the opened stores and the service built on them.
type App struct {
	Service *core.Service
	Store   core.Store
	Objects core.ObjectStore

	// Pool is nil for the memory store driver.
	Pool *pgxpool.Pool
}

// Open connects the relational and object stores selected by cfg and,
// when enabled, applies the schema.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		app.Store = memstore.New()
	default:
		pool, err := OpenPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.Pool = pool
		if cfg.Database.Migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			slog.Info("schema applied")
		}
		app.Store = database.NewStore(pool)
	}

	switch cfg.ObjectStore.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory object store; archived files are lost on exit")
		app.Objects = storage.NewMemory()
	default:
		m, err := storage.NewMinIO(storage.MinIOConfig{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
			Region:    cfg.ObjectStore.Region,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			app.Close()
			return nil, err
		}
		slog.Info("object store ready", "endpoint", cfg.ObjectStore.Endpoint, "bucket", cfg.ObjectStore.Bucket)
		app.Objects = m
	}

	app.Service = core.NewService(app.Store, app.Objects, core.ServiceConfig{
		KeyPrefix:            cfg.ObjectStore.KeyPrefix,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		MaxImportWait:        cfg.Import.MaxWaitTime,
	})
	return app, nil
}

// OpenPool creates and pings a pgx pool from cfg.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database URL")
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
