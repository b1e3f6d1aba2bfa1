package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/config"
	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/testutil"
	"github.com/lepinkainen/libris/internal/tui"
)

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name(appName),
		kong.Description(appDescription),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)
	require.NoError(t, err)

	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return cli, ctx
}

// runCLI parses args and runs the selected command against cfg.
func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	cli, ctx := parseCLI(t, args...)
	var out bytes.Buffer
	cli.Globals.out = &out
	require.NoError(t, cli.Globals.apply(cfg))

	err := ctx.Run(&cli.Globals)
	return out.String(), err
}

// providerStub serves one OpenLibrary edition, one Google Books volume by id
// and no Google Books ISBN matches.
func providerStub(t *testing.T) string {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/isbn/9780141439518.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"title": "Pride and Prejudice",
			"authors": [{"name": "Jane Austen"}],
			"publishers": ["Penguin Classics"],
			"publish_date": "2003",
			"number_of_pages": 480
		}`))
	})
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"docs": [
			{"key": "/works/OL1W", "title": "Pride and Prejudice", "author_name": ["Jane Austen"], "isbn": ["0141439513", "9780141439518"]}
		]}`))
	})
	mux.HandleFunc("/books/v1/volumes", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	})
	mux.HandleFunc("/books/v1/volumes/gvol1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "gvol1", "volumeInfo": {"title": "Lady Susan", "publisher": "Penguin"}}`))
	})

	return testutil.NewIPv4TestServer(t, mux).URL
}

func newCmdConfig(t *testing.T) *config.Config {
	t.Helper()

	env := testutil.NewTestEnv(t)
	testutil.ResetConfig(t, env)
	return testutil.NewTestConfig(t, env, testutil.WithProviderBaseURL(providerStub(t)))
}

func TestGlobalsApplyOverridesConfig(t *testing.T) {
	cfg := config.Default()
	g := &Globals{
		DB:       "/tmp/books.db",
		CacheDB:  "/tmp/cache.db",
		CacheTTL: "12h",
		NoCache:  true,
		LogLevel: "debug",
	}

	require.NoError(t, g.apply(cfg))

	assert.Equal(t, "/tmp/books.db", cfg.DatabasePath)
	assert.Equal(t, "/tmp/cache.db", cfg.Cache.DBFile)
	assert.Equal(t, 12*time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Disabled)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NotNil(t, g.out)
}

func TestGlobalsApplyRejectsBadTTL(t *testing.T) {
	g := &Globals{CacheTTL: "forever"}
	err := g.apply(config.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --cache-ttl")
}

func TestCommandParsing(t *testing.T) {
	cli, _ := parseCLI(t, "book", "add", "-t", "Emma", "-a", "Jane Austen", "-a", "Someone Else", "--isbn", "9780141439587")
	assert.Equal(t, "Emma", cli.Book.Add.Title)
	assert.Equal(t, []string{"Jane Austen", "Someone Else"}, cli.Book.Add.Author)
	assert.Equal(t, "table", cli.Output)

	cli, _ = parseCLI(t, "-o", "json", "candidate", "apply", "abc", "-f", "publisher", "-f", "series")
	assert.Equal(t, "json", cli.Output)
	assert.Equal(t, "abc", cli.Candidate.Apply.BookID)
	assert.Equal(t, []string{"publisher", "series"}, cli.Candidate.Apply.Field)

	cli, _ = parseCLI(t, "search", "pride", "--type", "title", "-n", "5")
	assert.Equal(t, "pride", cli.Search.Query)
	assert.Equal(t, 5, cli.Search.Max)
}

func TestLogLevelParsing(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "WARN", parseLogLevel("Warning").String())
	assert.Equal(t, "INFO", parseLogLevel("bogus").String())
}

func TestBookAddEnrichAndReview(t *testing.T) {
	cfg := newCmdConfig(t)

	out, err := runCLI(t, cfg, "-o", "json", "book", "add", "-t", "Pride and Prejudice", "--isbn", "9780141439518", "--publisher", "OldCo")
	require.NoError(t, err)
	var book catalog.Book
	require.NoError(t, json.Unmarshal([]byte(out), &book))
	require.Equal(t, catalog.StatusPending, book.MetadataStatus)

	out, err = runCLI(t, cfg, "-o", "json", "enrich", book.ID)
	require.NoError(t, err)
	var enriched enrichResult
	require.NoError(t, json.Unmarshal([]byte(out), &enriched))
	assert.Equal(t, catalog.StatusComplete, enriched.Job.Status)
	assert.Equal(t, catalog.StatusAwaitingReview, enriched.Book.MetadataStatus)
	assert.Equal(t, []string{"Jane Austen"}, enriched.Book.Authors)
	assert.Equal(t, "OldCo", enriched.Book.Publisher)

	out, err = runCLI(t, cfg, "candidate", "show", book.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Penguin Classics")
	assert.Contains(t, out, "awaiting_review")

	_, err = runCLI(t, cfg, "candidate", "apply", book.ID, "-f", "publisher")
	require.NoError(t, err)

	out, err = runCLI(t, cfg, "-o", "yaml", "book", "show", book.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "publisher: Penguin Classics")
	assert.Contains(t, out, "metadata_status: complete")

	out, err = runCLI(t, cfg, "jobs", "list", "--book", book.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "9780141439518")
	assert.Contains(t, out, "complete")
}

func TestEnrichWithoutIdentifierFails(t *testing.T) {
	cfg := newCmdConfig(t)

	out, err := runCLI(t, cfg, "-o", "json", "book", "add", "-t", "Untitled")
	require.NoError(t, err)
	var book catalog.Book
	require.NoError(t, json.Unmarshal([]byte(out), &book))

	_, err = runCLI(t, cfg, "enrich", book.ID)
	require.Error(t, err)
	assert.True(t, liberrors.IsValidation(err))
}

func TestPreviewAndSearch(t *testing.T) {
	cfg := newCmdConfig(t)

	out, err := runCLI(t, cfg, "preview", "978-0-14-143951-8")
	require.NoError(t, err)
	assert.Contains(t, out, "Penguin Classics")

	_, err = runCLI(t, cfg, "preview", "0000000000")
	require.ErrorIs(t, err, metadata.ErrNoMetadata)

	out, err = runCLI(t, cfg, "-o", "json", "search", "pride")
	require.NoError(t, err)
	var results []metadata.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "9780141439518", results[0].Identifier)
}

func TestSearchPickEnrichesBook(t *testing.T) {
	cfg := newCmdConfig(t)

	origTerminal, origSelect := isTerminal, selectResult
	t.Cleanup(func() { isTerminal, selectResult = origTerminal, origSelect })
	isTerminal = func() bool { return true }
	selectResult = func(_ string, results []metadata.SearchResult) (tui.SelectionResult, error) {
		return tui.SelectionResult{Action: tui.ActionSelected, Selection: &results[0]}, nil
	}

	out, err := runCLI(t, cfg, "-o", "json", "book", "add", "-t", "P&P")
	require.NoError(t, err)
	var book catalog.Book
	require.NoError(t, json.Unmarshal([]byte(out), &book))

	out, err = runCLI(t, cfg, "-o", "json", "search", "pride", "--book", book.ID)
	require.NoError(t, err)
	var enriched enrichResult
	require.NoError(t, json.Unmarshal([]byte(out), &enriched))
	assert.Equal(t, "9780141439518", enriched.Job.Identifier)
	assert.Equal(t, "Penguin Classics", enriched.Book.Publisher)
}

func TestSearchPickEnrichesFromGoogleVolume(t *testing.T) {
	cfg := newCmdConfig(t)

	origTerminal, origSelect := isTerminal, selectResult
	t.Cleanup(func() { isTerminal, selectResult = origTerminal, origSelect })
	isTerminal = func() bool { return true }
	selectResult = func(string, []metadata.SearchResult) (tui.SelectionResult, error) {
		return tui.SelectionResult{Action: tui.ActionSelected, Selection: &metadata.SearchResult{
			Title:      "Lady Susan",
			Identifier: "google:gvol1",
			Source:     "Google Books",
		}}, nil
	}

	out, err := runCLI(t, cfg, "-o", "json", "book", "add", "-t", "Lady Susan")
	require.NoError(t, err)
	var book catalog.Book
	require.NoError(t, json.Unmarshal([]byte(out), &book))

	out, err = runCLI(t, cfg, "-o", "json", "search", "susan", "--book", book.ID)
	require.NoError(t, err)
	var enriched enrichResult
	require.NoError(t, json.Unmarshal([]byte(out), &enriched))
	assert.Equal(t, "google:gvol1", enriched.Job.Identifier)
	assert.Equal(t, catalog.StatusComplete, enriched.Job.Status)
	assert.Equal(t, "Penguin", enriched.Book.Publisher)
	assert.Equal(t, catalog.StatusComplete, enriched.Book.MetadataStatus)
}

func TestSearchPickStopReturnsStopError(t *testing.T) {
	cfg := newCmdConfig(t)

	origTerminal, origSelect := isTerminal, selectResult
	t.Cleanup(func() { isTerminal, selectResult = origTerminal, origSelect })
	isTerminal = func() bool { return true }
	selectResult = func(string, []metadata.SearchResult) (tui.SelectionResult, error) {
		return tui.SelectionResult{Action: tui.ActionStopped}, nil
	}

	_, err := runCLI(t, cfg, "search", "pride", "--pick")
	require.True(t, liberrors.IsStopProcessingError(err))
}

func TestSearchPickNeedsTerminal(t *testing.T) {
	cfg := newCmdConfig(t)

	orig := isTerminal
	t.Cleanup(func() { isTerminal = orig })
	isTerminal = func() bool { return false }

	_, err := runCLI(t, cfg, "search", "pride", "--pick")
	require.ErrorContains(t, err, "interactive terminal")
}

func TestCacheClear(t *testing.T) {
	cfg := newCmdConfig(t)

	_, err := runCLI(t, cfg, "preview", "9780141439518")
	require.NoError(t, err)

	out, err := runCLI(t, cfg, "cache", "clear", "openlibrary")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 cached entries\n", out)

	out, err = runCLI(t, cfg, "cache", "clear", "all")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Removed "))

	_, err = runCLI(t, cfg, "cache", "clear", "goodreads")
	require.ErrorContains(t, err, "unknown cache source")
}
