// Package config loads libris settings through viper into a typed struct that
// is passed explicitly to the components that need it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds process-wide, read-only settings.
type Config struct {
	DatabasePath string
	LogLevel     string
	ServerAddr   string

	Cache     CacheConfig
	Providers ProvidersConfig
	Covers    CoversConfig
}

// CacheConfig controls the provider response cache.
type CacheConfig struct {
	DBFile string
	TTL    time.Duration
	// Disabled skips the response cache entirely.
	Disabled bool
}

// ProvidersConfig configures the external metadata sources.
type ProvidersConfig struct {
	// Timeout applies to every single outbound request.
	Timeout time.Duration
	// RateLimit is the per-provider request budget in requests per second.
	RateLimit int

	OpenLibraryBaseURL   string
	OpenLibraryCoversURL string
	GoogleBooksBaseURL   string
	GoogleBooksAPIKey    string
	ISBNdbBaseURL        string
	ISBNdbAPIKey         string
}

// CoversConfig controls local cover image downloads.
type CoversConfig struct {
	Dir      string
	MaxWidth int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "./libris.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("cache.dbfile", "./cache.db")
	v.SetDefault("cache.ttl", "720h") // 30 days
	v.SetDefault("cache.disabled", false)

	v.SetDefault("providers.timeout", "10s")
	v.SetDefault("providers.rate_limit", 1)
	v.SetDefault("providers.openlibrary.base_url", "https://openlibrary.org")
	v.SetDefault("providers.openlibrary.covers_url", "https://covers.openlibrary.org")
	v.SetDefault("providers.googlebooks.base_url", "https://www.googleapis.com/books/v1/volumes")
	v.SetDefault("providers.googlebooks.api_key", "")
	v.SetDefault("providers.isbndb.base_url", "https://api2.isbndb.com")
	v.SetDefault("providers.isbndb.api_key", "")

	v.SetDefault("covers.dir", "./covers")
	v.SetDefault("covers.max_width", 600)
}

// NewViper returns a viper instance with defaults, LIBRIS_ environment
// variables and an optional config.yaml from the working directory.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("libris")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("providers.googlebooks.api_key", "LIBRIS_PROVIDERS_GOOGLEBOOKS_API_KEY", "GOOGLE_BOOKS_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("providers.isbndb.api_key", "LIBRIS_PROVIDERS_ISBNDB_API_KEY", "ISBNDB_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load builds a Config from v.
func Load(v *viper.Viper) (*Config, error) {
	cacheTTL, err := parseDuration(v, "cache.ttl")
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration(v, "providers.timeout")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabasePath: v.GetString("database.path"),
		LogLevel:     v.GetString("log.level"),
		ServerAddr:   v.GetString("server.addr"),
		Cache: CacheConfig{
			DBFile:   v.GetString("cache.dbfile"),
			TTL:      cacheTTL,
			Disabled: v.GetBool("cache.disabled"),
		},
		Providers: ProvidersConfig{
			Timeout:              timeout,
			RateLimit:            v.GetInt("providers.rate_limit"),
			OpenLibraryBaseURL:   strings.TrimRight(v.GetString("providers.openlibrary.base_url"), "/"),
			OpenLibraryCoversURL: strings.TrimRight(v.GetString("providers.openlibrary.covers_url"), "/"),
			GoogleBooksBaseURL:   strings.TrimRight(v.GetString("providers.googlebooks.base_url"), "/"),
			GoogleBooksAPIKey:    v.GetString("providers.googlebooks.api_key"),
			ISBNdbBaseURL:        strings.TrimRight(v.GetString("providers.isbndb.base_url"), "/"),
			ISBNdbAPIKey:         v.GetString("providers.isbndb.api_key"),
		},
		Covers: CoversConfig{
			Dir:      v.GetString("covers.dir"),
			MaxWidth: v.GetInt("covers.max_width"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate checks settings that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("providers.timeout must be positive, got %s", c.Providers.Timeout)
	}
	if c.Providers.RateLimit <= 0 {
		return fmt.Errorf("providers.rate_limit must be positive, got %d", c.Providers.RateLimit)
	}
	if c.DatabasePath == "" {
		return errors.New("database.path is required")
	}
	return nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
