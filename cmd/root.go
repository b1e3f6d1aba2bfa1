// Package cmd implements the libris command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"

	"github.com/lepinkainen/libris/internal/config"
	liberrors "github.com/lepinkainen/libris/internal/errors"
)

// Globals are the flags shared by every command. Empty values fall back to
// the configuration file and LIBRIS_ environment variables.
type Globals struct {
	DB       string `name:"db" help:"Path to the book database (default from database.path)"`
	CacheDB  string `name:"cache-db" help:"Path to the provider response cache (default from cache.dbfile)"`
	CacheTTL string `name:"cache-ttl" help:"Provider cache time-to-live, e.g. 720h"`
	NoCache  bool   `name:"no-cache" help:"Bypass the provider response cache"`
	LogLevel string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	Output   string `short:"o" help:"Output format" enum:"table,json,yaml" default:"table"`

	cfg *config.Config `kong:"-"`
	out io.Writer      `kong:"-"`
}

// CLI represents the complete command structure for the libris application
type CLI struct {
	Globals

	Book      BookCmd      `cmd:"" help:"Manage book records"`
	Enrich    EnrichCmd    `cmd:"" help:"Queue and run metadata enrichment for a book"`
	Jobs      JobsCmd      `cmd:"" help:"Inspect and process enrichment jobs"`
	Candidate CandidateCmd `cmd:"" help:"Review staged metadata suggestions"`
	Search    SearchCmd    `cmd:"" help:"Search metadata providers by title or ISBN"`
	Preview   PreviewCmd   `cmd:"" help:"Show merged provider metadata for an identifier"`
	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API"`
	Cache     CacheCmd     `cmd:"" help:"Manage the provider response cache"`
}

const (
	appName        = "libris"
	appDescription = "Book metadata enrichment from OpenLibrary, Google Books and ISBNdb."
)

// Execute runs the Kong-based CLI
func Execute() {
	initLogging("info")

	v, err := config.NewViper()
	if err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(v)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name(appName),
		kong.Description(appDescription),
		kong.UsageOnError(),
	)

	if err := cli.Globals.apply(cfg); err != nil {
		ctx.FatalIfErrorf(err)
	}
	initLogging(cfg.LogLevel)

	if err := ctx.Run(&cli.Globals); err != nil {
		if liberrors.IsStopProcessingError(err) {
			slog.Info("Stopped", "reason", err.Error())
			return
		}
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// apply layers the global flags over cfg and keeps the result for commands.
func (g *Globals) apply(cfg *config.Config) error {
	if g.DB != "" {
		cfg.DatabasePath = g.DB
	}
	if g.CacheDB != "" {
		cfg.Cache.DBFile = g.CacheDB
	}
	if g.CacheTTL != "" {
		ttl, err := time.ParseDuration(g.CacheTTL)
		if err != nil {
			return fmt.Errorf("invalid --cache-ttl %q: %w", g.CacheTTL, err)
		}
		cfg.Cache.TTL = ttl
	}
	if g.NoCache {
		cfg.Cache.Disabled = true
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	g.cfg = cfg
	if g.out == nil {
		g.out = os.Stdout
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initLogging(level string) {
	// stdout carries command output
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: parseLogLevel(level),
	})

	slog.SetDefault(slog.New(handler))
}
