package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/lepinkainen/libris/internal/cache"
	liberrors "github.com/lepinkainen/libris/internal/errors"
)

// SearchMode selects how a free-text query is interpreted.
type SearchMode string

const (
	ModeAuto  SearchMode = "auto"
	ModeTitle SearchMode = "title"
	ModeISBN  SearchMode = "isbn"
)

const (
	DefaultMaxResults = 10
	// MaxSearchResults is the largest page Google Books will return.
	MaxSearchResults = 40
)

// ParseSearchMode validates a mode name. An empty string means auto.
func ParseSearchMode(raw string) (SearchMode, error) {
	switch mode := SearchMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeTitle, ModeISBN:
		return mode, nil
	default:
		return "", liberrors.NewValidationError(fmt.Sprintf("unknown search type %q", raw))
	}
}

// DetectSearchMode treats a query of exactly 10 or 13 digits (ignoring
// hyphens and spaces) as an ISBN and anything else as a title.
func DetectSearchMode(query string) SearchMode {
	clean := NormalizeISBN(query)
	if len(clean) != 10 && len(clean) != 13 {
		return ModeTitle
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return ModeTitle
		}
	}
	return ModeISBN
}

// SearchResult is the light-weight shape shown when picking among matches.
type SearchResult struct {
	Title       string   `json:"title" yaml:"title"`
	Authors     []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Subjects    []string `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Publisher   string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Date        string   `json:"date,omitempty" yaml:"date,omitempty"`
	// Identifier is an ISBN when the source has one, else "<source>:<id>".
	Identifier string   `json:"identifier" yaml:"identifier"`
	Language   []string `json:"language,omitempty" yaml:"language,omitempty"`
	CoverURL   string   `json:"cover_url,omitempty" yaml:"cover_url,omitempty"`
	Source     string   `json:"source" yaml:"source"`
}

// Prefixes of source-scoped identifiers handed out for results without an ISBN.
const (
	GoogleVolumePrefix    = "google:"
	OpenLibraryWorkPrefix = "openlibrary:"
)

// SourceKey splits a source-scoped identifier such as "google:abc" into its
// prefix and key. ok is false for anything else, including plain ISBNs.
func SourceKey(identifier string) (prefix, key string, ok bool) {
	identifier = strings.TrimSpace(identifier)
	for _, prefix := range []string{GoogleVolumePrefix, OpenLibraryWorkPrefix} {
		if key, found := strings.CutPrefix(identifier, prefix); found && key != "" {
			return prefix, key, true
		}
	}
	return "", "", false
}

// SearchResults is a finite, single-pass sequence of search results.
// Each provider is queried only when the iterator reaches its batch.
// It is not safe for concurrent use and cannot be restarted.
type SearchResults struct {
	ctx       context.Context
	fetcher   *Fetcher
	searchers []Searcher
	query     string
	mode      SearchMode
	remaining int

	batch []SearchResult
}

// Next returns the next result, or false once the sequence is exhausted.
func (s *SearchResults) Next() (SearchResult, bool) {
	for {
		if s.remaining <= 0 {
			return SearchResult{}, false
		}
		if len(s.batch) > 0 {
			r := s.batch[0]
			s.batch = s.batch[1:]
			s.remaining--
			return r, true
		}
		if len(s.searchers) == 0 {
			return SearchResult{}, false
		}
		next := s.searchers[0]
		s.searchers = s.searchers[1:]
		s.batch = s.fetcher.searchOne(s.ctx, next, s.query, s.mode, s.remaining)
	}
}

// Collect drains the remaining results into a slice.
func (s *SearchResults) Collect() []SearchResult {
	var out []SearchResult
	for r, ok := s.Next(); ok; r, ok = s.Next() {
		out = append(out, r)
	}
	return out
}

// Search returns a lazy result sequence across all providers that support
// searching. Failing providers contribute nothing.
func (f *Fetcher) Search(ctx context.Context, query string, mode SearchMode, maxResults int) (*SearchResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, liberrors.NewValidationError("search query must not be empty")
	}
	if mode == "" || mode == ModeAuto {
		mode = DetectSearchMode(query)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	maxResults = min(maxResults, MaxSearchResults)

	var searchers []Searcher
	for _, p := range f.providers {
		if s, ok := p.(Searcher); ok {
			searchers = append(searchers, s)
		}
	}

	slog.Info("Searching for books", "query", query, "type", mode, "providers", len(searchers))
	return &SearchResults{
		ctx:       ctx,
		fetcher:   f,
		searchers: searchers,
		query:     query,
		mode:      mode,
		remaining: maxResults,
	}, nil
}

func (f *Fetcher) searchOne(ctx context.Context, s Searcher, query string, mode SearchMode, maxResults int) (results []SearchResult) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err := liberrors.NewProviderFetchError(s.Name(), query, fmt.Errorf("panic: %v", r))
			slog.Error("Provider search panicked", "provider", s.Name(), "query", query, "error", err)
			results = nil
		}
	}()

	key := searchCacheKey(s.Name(), query, mode, maxResults)
	results, _, err := cache.GetOrFetch(f.cache, cache.TableSearch, key, func() ([]SearchResult, error) {
		return s.Search(ctx, query, mode, maxResults)
	}, func(r []SearchResult) bool { return len(r) == 0 })
	if err != nil {
		err = liberrors.NewProviderFetchError(s.Name(), query, err)
		slog.Warn("Provider search failed", "provider", s.Name(), "query", query, "error", err)
		return nil
	}

	slog.Debug("Provider search results", "provider", s.Name(), "query", query, "count", len(results))
	return results
}

func searchCacheKey(provider, query string, mode SearchMode, maxResults int) string {
	raw := strings.Join([]string{provider, string(mode), strings.ToLower(query), strconv.Itoa(maxResults)}, "\x00")
	return strconv.FormatUint(xxhash.Sum64String(raw), 16)
}
