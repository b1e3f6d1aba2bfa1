package cmd

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lepinkainen/libris/internal/cache"
)

// CacheCmd groups the cache commands
type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" help:"Drop cached responses for a provider"`
}

// CacheClearCmd empties one provider table, or every table with "all".
type CacheClearCmd struct {
	Source string `arg:"" help:"Provider: openlibrary, googlebooks, isbndb, search or all"`
}

func (c *CacheClearCmd) Run(g *Globals) error {
	tables, err := cacheTables(c.Source)
	if err != nil {
		return err
	}

	db, err := cache.Open(g.cfg.Cache.DBFile, g.cfg.Cache.TTL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var total int64
	for _, table := range tables {
		n, err := db.InvalidateSource(table)
		if err != nil {
			return err
		}
		total += n
		slog.Info("Cleared cache", "table", table, "entries", n)
	}
	_, err = fmt.Fprintf(g.out, "Removed %d cached entries\n", total)
	return err
}

func cacheTables(source string) ([]string, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "all" {
		tables := make([]string, 0, len(cache.SourceTables))
		for _, table := range cache.SourceTables {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		return tables, nil
	}
	table, ok := cache.SourceTables[source]
	if !ok {
		known := make([]string, 0, len(cache.SourceTables))
		for name := range cache.SourceTables {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown cache source %q (known: %s, all)", source, strings.Join(known, ", "))
	}
	return []string{table}, nil
}
