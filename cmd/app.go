package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/lepinkainen/libris/internal/cache"
	"github.com/lepinkainen/libris/internal/config"
	"github.com/lepinkainen/libris/internal/covers"
	"github.com/lepinkainen/libris/internal/datastore"
	"github.com/lepinkainen/libris/internal/enrichment"
	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/metadata/providers"
	"github.com/lepinkainen/libris/internal/observability"
	"github.com/lepinkainen/libris/internal/ratelimit"
)

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg     *config.Config
	store   *datastore.SQLiteStore
	cache   *cache.CacheDB
	fetcher *metadata.Fetcher
	svc     *enrichment.Service
	metrics *observability.Metrics
	covers  *covers.Downloader
}

// openApp is replaced in tests.
var openApp = newApp

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := datastore.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	var responseCache *cache.CacheDB
	if !cfg.Cache.Disabled {
		responseCache, err = cache.Open(cfg.Cache.DBFile, cfg.Cache.TTL)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	client := &http.Client{Timeout: cfg.Providers.Timeout}
	list := providers.New(cfg.Providers, providers.Deps{
		Client:   client,
		Limiters: ratelimit.NewRegistry(cfg.Providers.RateLimit),
		Cache:    responseCache,
	})
	fetcher := metadata.NewFetcher(metadata.Options{
		Timeout: cfg.Providers.Timeout,
		Cache:   responseCache,
	}, list...)

	metrics := observability.NewMetrics(otel.GetMeterProvider())
	svc := enrichment.NewService(store, fetcher,
		enrichment.WithTracer(observability.NewTracer(otel.GetTracerProvider())),
		enrichment.WithMetrics(metrics),
	)

	slog.Debug("Providers configured", "providers", fetcher.Providers(), "cache", responseCache != nil)
	return &app{
		cfg:     cfg,
		store:   store,
		cache:   responseCache,
		fetcher: fetcher,
		svc:     svc,
		metrics: metrics,
		covers:  covers.NewDownloader(cfg.Covers, nil),
	}, nil
}

func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// withApp opens the app, runs fn and closes the app again.
func (g *Globals) withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, g.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("Failed to close resources", "error", err)
		}
	}()
	return fn(ctx, a)
}
