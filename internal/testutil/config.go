package testutil

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lepinkainen/libris/internal/config"
)

// ResetConfig isolates a test from the developer's configuration: the
// working directory moves into env (so no config.yaml is picked up) and
// every LIBRIS_ variable plus the provider key fallbacks are cleared until
// the test completes.
func ResetConfig(t *testing.T, env *TestEnv) {
	t.Helper()

	env.Chdir(".")
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "LIBRIS_") {
			t.Setenv(key, "")
		}
	}
	t.Setenv("GOOGLE_BOOKS_API_KEY", "")
	t.Setenv("ISBNDB_API_KEY", "")
}

// TestConfigOption adjusts a test configuration.
type TestConfigOption func(*config.Config)

// WithProviderBaseURL points every provider at baseURL using the same
// path layout as the public services.
func WithProviderBaseURL(baseURL string) TestConfigOption {
	return func(c *config.Config) {
		c.Providers.OpenLibraryBaseURL = baseURL
		c.Providers.GoogleBooksBaseURL = baseURL + "/books/v1/volumes"
		c.Providers.ISBNdbBaseURL = baseURL + "/isbndb"
	}
}

// WithISBNdbKey enables the ISBNdb provider.
func WithISBNdbKey(key string) TestConfigOption {
	return func(c *config.Config) {
		c.Providers.ISBNdbAPIKey = key
	}
}

// WithCacheDisabled turns off the provider response cache.
func WithCacheDisabled() TestConfigOption {
	return func(c *config.Config) {
		c.Cache.Disabled = true
	}
}

// NewTestConfig returns the default configuration with every file path
// inside env and no rate limiting worth noticing.
func NewTestConfig(t *testing.T, env *TestEnv, opts ...TestConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.DatabasePath = env.DatabasePath()
	cfg.Cache.DBFile = env.CachePath()
	cfg.Covers.Dir = env.Path("covers")
	cfg.Providers.Timeout = 2 * time.Second
	cfg.Providers.RateLimit = 1000

	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}
