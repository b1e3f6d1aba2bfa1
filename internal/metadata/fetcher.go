package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/libris/internal/cache"
	"github.com/lepinkainen/libris/internal/catalog"
	liberrors "github.com/lepinkainen/libris/internal/errors"
)

// DefaultTimeout bounds a single provider request when none is configured.
const DefaultTimeout = 10 * time.Second

// Fetcher queries every configured provider and merges their answers.
type Fetcher struct {
	providers []Provider
	timeout   time.Duration
	cache     *cache.CacheDB
}

// Options tunes a Fetcher.
type Options struct {
	// Timeout applies to each provider call independently.
	Timeout time.Duration
	// Cache stores search results. Nil disables search caching.
	Cache *cache.CacheDB
}

// NewFetcher creates a Fetcher. Providers are merged in the order given, so
// later providers win scalar conflicts.
func NewFetcher(opts Options, providers ...Provider) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Fetcher{
		providers: providers,
		timeout:   opts.Timeout,
		cache:     opts.Cache,
	}
}

// Providers returns the configured provider names in merge order.
func (f *Fetcher) Providers() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return names
}

// Fetch returns the merged metadata for identifier.
//
// Provider failures never surface here: each one is logged and the source is
// treated as empty. When no provider has data the error wraps ErrNoMetadata.
func (f *Fetcher) Fetch(ctx context.Context, identifier string) (Metadata, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, liberrors.NewValidationError("identifier must not be empty")
	}

	results := make([]Metadata, len(f.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range f.providers {
		g.Go(func() error {
			results[i] = f.fetchOne(gctx, p, identifier)
			return nil
		})
	}
	// fetchOne never returns an error to the group
	_ = g.Wait()

	found := make([]Metadata, 0, len(results))
	for _, r := range results {
		if !r.Empty() {
			found = append(found, r)
		}
	}
	if len(found) == 0 {
		slog.Warn("No metadata found from any source", "isbn", identifier)
		return nil, fmt.Errorf("%w for %s", ErrNoMetadata, identifier)
	}

	merged := Merge(found...)
	if cover := merged.String(catalog.FieldCoverURL); cover != "" {
		slog.Debug("Merged cover URL", "isbn", identifier, "cover_url", cover)
	}
	slog.Info("Merged metadata", "isbn", identifier, "sources", len(found), "fields", len(merged))
	return merged, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, p Provider, identifier string) (result Metadata) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err := liberrors.NewProviderFetchError(p.Name(), identifier, fmt.Errorf("panic: %v", r))
			slog.Error("Provider panicked", "provider", p.Name(), "isbn", identifier, "error", err)
			result = nil
		}
	}()

	data, err := p.Fetch(ctx, identifier)
	if err != nil {
		err = liberrors.NewProviderFetchError(p.Name(), identifier, err)
		slog.Warn("Provider fetch failed", "provider", p.Name(), "isbn", identifier, "error", err)
		return nil
	}
	if data.Empty() {
		slog.Debug("Provider returned no data", "provider", p.Name(), "isbn", identifier)
		return nil
	}

	slog.Debug("Provider returned metadata", "provider", p.Name(), "isbn", identifier, "fields", len(data))
	return data
}
