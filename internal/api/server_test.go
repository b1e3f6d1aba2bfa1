package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/datastore"
	"github.com/lepinkainen/libris/internal/enrichment"
	"github.com/lepinkainen/libris/internal/metadata"
)

type staticProvider struct {
	data    metadata.Metadata
	results []metadata.SearchResult
}

func (p staticProvider) Name() string { return "static" }

func (p staticProvider) Fetch(_ context.Context, id string) (metadata.Metadata, error) {
	if id != "9780141439518" {
		return nil, nil
	}
	return p.data, nil
}

func (p staticProvider) Search(_ context.Context, _ string, _ metadata.SearchMode, _ int) ([]metadata.SearchResult, error) {
	return p.results, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := datastore.Open(context.Background(), filepath.Join(t.TempDir(), "libris.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	provider := staticProvider{
		data: metadata.Metadata{
			catalog.FieldTitle:     "Pride and Prejudice",
			catalog.FieldAuthors:   []string{"Jane Austen"},
			catalog.FieldPublisher: "Penguin",
		},
		results: []metadata.SearchResult{
			{Title: "Pride and Prejudice", Identifier: "9780141439518", Source: "static"},
		},
	}
	fetcher := metadata.NewFetcher(metadata.Options{Timeout: time.Second}, provider)
	svc := enrichment.NewService(store, fetcher)

	server := httptest.NewServer(NewServer(svc, nil).Handler())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, body string, out any) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestEnrichFlow(t *testing.T) {
	server := newTestServer(t)

	var book catalog.Book
	resp := doJSON(t, http.MethodPost, server.URL+"/books",
		`{"title":"Pride and Prejudice","isbn":"9780141439518","publisher":"OldCo"}`, &book)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, book.ID)
	require.Equal(t, catalog.StatusPending, book.MetadataStatus)

	var enriched EnrichResponse
	resp = doJSON(t, http.MethodPost, server.URL+"/books/"+book.ID+"/enrich", "", &enriched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Server-Timing"))
	require.Equal(t, catalog.StatusComplete, enriched.Job.Status)
	require.Equal(t, catalog.StatusAwaitingReview, enriched.Book.MetadataStatus)
	require.Equal(t, []string{"Jane Austen"}, enriched.Book.Authors)

	var view enrichment.CandidateView
	resp = doJSON(t, http.MethodGet, server.URL+"/books/"+book.ID+"/candidate", "", &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Penguin", view.MetadataCandidate[catalog.FieldPublisher].Suggested)

	var applied catalog.Book
	resp = doJSON(t, http.MethodPost, server.URL+"/books/"+book.ID+"/candidate/apply", `{"fields":[]}`, &applied)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Penguin", applied.Publisher)
	require.Equal(t, catalog.StatusComplete, applied.MetadataStatus)
	require.Empty(t, applied.MetadataCandidate)

	var jobs []catalog.Job
	resp = doJSON(t, http.MethodGet, server.URL+"/jobs?book_id="+book.ID, "", &jobs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, jobs, 1)
}

func TestEnrichWithoutIdentifierIsBadRequest(t *testing.T) {
	server := newTestServer(t)

	var book catalog.Book
	doJSON(t, http.MethodPost, server.URL+"/books", `{"title":"Untitled"}`, &book)

	var body map[string]string
	resp := doJSON(t, http.MethodPost, server.URL+"/books/"+book.ID+"/enrich", "", &body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "cannot queue without an identifier")
}

func TestUnknownBookIsNotFound(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/books/nope", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/books/nope/candidate/reject", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFailedEnrichmentIsData(t *testing.T) {
	server := newTestServer(t)

	var book catalog.Book
	doJSON(t, http.MethodPost, server.URL+"/books", `{"title":"Obscure","isbn":"0000000000"}`, &book)

	var enriched EnrichResponse
	resp := doJSON(t, http.MethodPost, server.URL+"/books/"+book.ID+"/enrich", "", &enriched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, catalog.StatusFailed, enriched.Job.Status)
	require.Equal(t, catalog.StatusFailed, enriched.Book.MetadataStatus)
}

func TestProcessEndpoint(t *testing.T) {
	server := newTestServer(t)

	var book catalog.Book
	doJSON(t, http.MethodPost, server.URL+"/books", `{"title":"P&P","isbn":"9780141439518"}`, &book)
	var first EnrichResponse
	doJSON(t, http.MethodPost, server.URL+"/books/"+book.ID+"/enrich", "", &first)

	resp := doJSON(t, http.MethodPost, server.URL+"/jobs/abc/process", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/jobs/999/process", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// terminal jobs cannot be processed again
	resp = doJSON(t, http.MethodPost, server.URL+"/jobs/"+strconv.FormatInt(first.Job.ID, 10)+"/process", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchEndpoint(t *testing.T) {
	server := newTestServer(t)

	var out SearchResponse
	resp := doJSON(t, http.MethodGet, server.URL+"/search?query=pride&search_type=title&max_results=5", "", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Results, 1)
	require.Equal(t, "9780141439518", out.Results[0].Identifier)

	resp = doJSON(t, http.MethodGet, server.URL+"/search?query=pride&max_results=41", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/search?query=pride&search_type=author", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/search?query=", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreviewEndpoint(t *testing.T) {
	server := newTestServer(t)

	var md map[string]any
	resp := doJSON(t, http.MethodGet, server.URL+"/preview/9780141439518", "", &md)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Penguin", md["publisher"])

	resp = doJSON(t, http.MethodGet, server.URL+"/preview/0000000000", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidBodyIsBadRequest(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/books", `{"title":`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
