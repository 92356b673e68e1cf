// Package app wires configuration, storage and the MSV3 client together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-msv3/internal/config"
	"github.com/sirosfoundation/go-msv3/internal/storage"
	"github.com/sirosfoundation/go-msv3/internal/storage/memory"
	"github.com/sirosfoundation/go-msv3/internal/storage/mongodb"
	"github.com/sirosfoundation/go-msv3/internal/storage/postgres"
	"github.com/sirosfoundation/go-msv3/internal/telemetry"
	"github.com/sirosfoundation/go-msv3/pkg/audit"
	"github.com/sirosfoundation/go-msv3/pkg/cache"
	"github.com/sirosfoundation/go-msv3/pkg/message"
	"github.com/sirosfoundation/go-msv3/pkg/msv3"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Store     storage.Store
	Cache     *cache.Cache
	Client    *msv3.Client
	Endpoints storage.Endpoints
	Logger    *slog.Logger

	closers []func(context.Context) error
}

// Options adjusts wiring. Zero values use the configuration.
type Options struct {
	Logger    *slog.Logger
	Telemetry *telemetry.Providers
	Store     storage.Store
	// HTTPS overrides the configured client settings
	HTTPS *transport.HTTPSConfig
}

// New opens storage, seeds the configured wholesalers and builds the client.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	a := &App{Config: cfg, Logger: opts.Logger}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = OpenStore(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
	}
	a.Store = store
	a.Endpoints = storage.Endpoints{Store: store}

	if err := seedWholesalers(ctx, store, cfg.Wholesalers); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	cacheOpts := []cache.Option{cache.WithTTL(cfg.Cache.TTL), cache.WithLogger(a.Logger)}
	if cfg.Cache.Persist {
		cacheOpts = append(cacheOpts, cache.WithStore(storage.CacheBackend{Store: store}))
	}
	a.Cache = cache.New(cacheOpts...)
	if cfg.Cache.Persist && cfg.Cache.Warm {
		n, err := a.Cache.Warm(ctx)
		if err != nil {
			a.Logger.Warn("warming availability cache failed", "error", err)
		} else {
			a.Logger.Debug("availability cache warmed", "entries", n)
		}
	}

	auditLogger, err := a.newAuditLogger(store)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	tc := transport.Config{
		HTTPS:  opts.HTTPS,
		Logger: a.Logger,
	}
	if tc.HTTPS == nil {
		tc.HTTPS = httpsConfig(cfg.Client)
	}
	if cfg.Client.RememberRoutes {
		tc.Routes = storage.RouteMemory{Store: store, Logger: a.Logger}
	}
	if opts.Telemetry != nil {
		tc.TracerProvider = opts.Telemetry.TracerProvider
		tc.MeterProvider = opts.Telemetry.MeterProvider
	}

	a.Client, err = msv3.NewClient(&msv3.Config{
		Transport:   tc,
		Cache:       a.Cache,
		Audit:       auditLogger,
		Endpoints:   a.Endpoints,
		Concurrency: cfg.Client.Concurrency,
		Logger:      a.Logger,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) newAuditLogger(store storage.Store) (*audit.Logger, error) {
	var sinks audit.MultiSink
	if a.Config.Audit.StoreEnabled() {
		sinks = append(sinks, storage.AuditSink{Store: store})
	}
	if f := a.Config.Audit.File; f.Path != "" {
		fs, err := audit.NewFileSink(audit.FileConfig{
			Path:       f.Path,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("opening audit file: %w", err)
		}
		sinks = append(sinks, fs)
		a.closers = append(a.closers, func(context.Context) error { return fs.Close() })
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return audit.NewLogger(sinks, audit.WithMaxBody(a.Config.Audit.MaxBody), audit.WithLogger(a.Logger)), nil
}

// Wholesaler resolves an endpoint by id.
func (a *App) Wholesaler(ctx context.Context, id string) (*message.Endpoint, error) {
	return a.Client.ResolveEndpoint(ctx, id)
}

// Wholesalers returns all active endpoints ordered by priority.
func (a *App) Wholesalers(ctx context.Context) ([]*message.Endpoint, error) {
	return a.Endpoints.Active(ctx)
}

// Close releases everything New opened, in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore connects the configured storage backend.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.NewStore(), nil
	case "mongodb":
		s, err := mongodb.NewStore(ctx, &mongodb.Config{
			URI:           cfg.MongoDB.URI,
			Database:      cfg.MongoDB.Database,
			RequestLogTTL: cfg.MongoDB.RequestLogTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("opening mongodb storage: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := postgres.NewStore(ctx, &postgres.Config{
			URL:      cfg.Postgres.URL,
			MaxConns: cfg.Postgres.MaxConns,
			Migrate:  cfg.Postgres.Migrate,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func seedWholesalers(ctx context.Context, store storage.WholesalerStore, list []config.WholesalerConfig) error {
	now := time.Now().UTC()
	for _, w := range list {
		rec := &storage.Wholesaler{
			ID:             w.ID,
			Name:           w.Name,
			Version:        w.Version,
			BaseURL:        w.BaseURL,
			ClientSystem:   w.ClientSystem,
			User:           w.User,
			Secret:         w.Secret,
			CustomerNumber: w.CustomerNumber,
			Branch:         w.Branch,
			Priority:       w.Priority,
			Active:         !w.Disabled,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		existing, err := store.GetWholesaler(ctx, w.ID)
		if err != nil {
			return fmt.Errorf("loading wholesaler %s: %w", w.ID, err)
		}
		if existing != nil {
			rec.CreatedAt = existing.CreatedAt
		}
		if err := store.SaveWholesaler(ctx, rec); err != nil {
			return fmt.Errorf("saving wholesaler %s: %w", w.ID, err)
		}
	}
	return nil
}

func httpsConfig(c config.ClientConfig) *transport.HTTPSConfig {
	h := transport.DefaultHTTPSConfig()
	h.Timeout = c.Timeout
	h.MaxResponseBytes = c.MaxResponseBytes
	if c.UserAgent != "" {
		h.UserAgent = c.UserAgent
	}
	if c.MinTLSVersion == "1.3" {
		h.MinTLSVersion = transport.TLS13
	}
	return h
}
