// Package providers implements metadata.Provider for the public book APIs
// libris knows about.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lepinkainen/libris/internal/cache"
	"github.com/lepinkainen/libris/internal/config"
	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/ratelimit"
)

// errNotFound marks a 404 from the upstream API.
var errNotFound = errors.New("not found")

// Deps are the shared collaborators every provider needs.
type Deps struct {
	Client   *http.Client
	Limiters *ratelimit.Registry
	// Cache is optional; nil disables response caching.
	Cache *cache.CacheDB
}

// New builds the configured providers in merge order. ISBNdb comes first so
// the free sources win scalar conflicts, and it is left out without an API key.
func New(cfg config.ProvidersConfig, deps Deps) []metadata.Provider {
	var list []metadata.Provider
	if cfg.ISBNdbAPIKey != "" {
		list = append(list, NewISBNdb(cfg, deps))
	}
	list = append(list, NewOpenLibrary(cfg, deps), NewGoogleBooks(cfg, deps))
	return list
}

// cachedResult wraps a normalized record for the response cache.
type cachedResult struct {
	Data     metadata.Metadata `json:"data"`
	NotFound bool              `json:"not_found"`
}

func isNotFound(r *cachedResult) bool {
	return r == nil || r.NotFound
}

// source holds the HTTP plumbing shared by all providers.
type source struct {
	name    string
	client  *http.Client
	limiter *ratelimit.Limiter
	cache   *cache.CacheDB
}

func newSource(name string, timeout time.Duration, deps Deps) source {
	client := deps.Client
	if client == nil {
		if timeout <= 0 {
			timeout = metadata.DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *ratelimit.Limiter
	if deps.Limiters != nil {
		limiter = deps.Limiters.For(name)
	}

	return source{
		name:    name,
		client:  client,
		limiter: limiter,
		cache:   deps.Cache,
	}
}

// Name returns the human-readable provider name.
func (s *source) Name() string {
	return s.name
}

// lookup runs fetch through the response cache and unwraps the result.
func (s *source) lookup(table, key string, fetch cache.FetchFunc[*cachedResult]) (metadata.Metadata, error) {
	cached, _, err := cache.GetOrFetch(s.cache, table, key, fetch, isNotFound)
	if err != nil {
		return nil, err
	}
	if isNotFound(cached) {
		return nil, nil
	}
	return cached.Data, nil
}

// getJSON performs a rate-limited GET and decodes a 200 response into out.
func (s *source) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return liberrors.NewRateLimitErrorWithRetry(
			fmt.Sprintf("%s rate limit exceeded", s.name),
			retryAfter(resp.Header.Get("Retry-After")),
		)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
