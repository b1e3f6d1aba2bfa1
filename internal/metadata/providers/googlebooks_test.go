package providers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/libris/internal/catalog"
	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
)

func TestGoogleBooksFetchUsesSelfLink(t *testing.T) {
	mux := http.NewServeMux()
	var selfLink string
	mux.HandleFunc("/books/v1/volumes", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "isbn:9780141439518", r.URL.Query().Get("q"))
		require.Equal(t, "full", r.URL.Query().Get("projection"))
		_, _ = w.Write([]byte(`{"totalItems": 1, "items": [{
			"id": "abc",
			"selfLink": "` + selfLink + `",
			"volumeInfo": {"title": "Pride and Prejudice"},
			"searchInfo": {"textSnippet": "snippet"}
		}]}`))
	})
	mux.HandleFunc("/books/v1/volumes/abc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "abc", "volumeInfo": {
			"title": "Pride and Prejudice",
			"subtitle": "Penguin Classics Series",
			"authors": ["Jane Austen"],
			"publisher": "Penguin",
			"publishedDate": "2003-01-30",
			"pageCount": 480,
			"categories": ["Fiction"],
			"language": "en",
			"imageLinks": {"thumbnail": "http://books.google.com/books/content?id=abc&zoom=1"}
		}}`))
	})
	server := newIPv4TestServer(t, mux)
	selfLink = server.URL + "/books/v1/volumes/abc"

	p := NewGoogleBooks(testProvidersConfig(server), Deps{})
	data, err := p.Fetch(context.Background(), "9780141439518")
	require.NoError(t, err)

	require.Equal(t, []string{"Jane Austen"}, data.Strings(catalog.FieldAuthors))
	require.Equal(t, "Penguin", data.String(catalog.FieldPublisher))
	require.Equal(t, "snippet", data.String(catalog.FieldDescription))
	require.Equal(t, "Penguin Classics Series", data.String(catalog.FieldSeries))
	require.Equal(t, []string{"Fiction"}, data.Strings(catalog.FieldSubjects))
	require.Equal(t, 480, data.Get(catalog.FieldPageCount))
	require.Equal(t, "https://books.google.com/books/content?id=abc&zoom=0", data.String(catalog.FieldCoverURL))
}

func TestGoogleBooksNoItemsIsNoData(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	}))

	p := NewGoogleBooks(testProvidersConfig(server), Deps{})
	data, err := p.Fetch(context.Background(), "0000000000")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestGoogleBooksSynthesizesCover(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [{"id": "x", "volumeInfo": {"title": "Emma", "seriesInfo": {"series": "Austen"}}}]}`))
	}))

	p := NewGoogleBooks(testProvidersConfig(server), Deps{})
	data, err := p.Fetch(context.Background(), "9780141439587")
	require.NoError(t, err)
	require.Equal(t, "Austen", data.String(catalog.FieldSeries))
	require.Equal(t,
		"https://books.google.com/books/content?vid=ISBN9780141439587&printsec=frontcover&img=1&zoom=1",
		data.String(catalog.FieldCoverURL))
}

func TestGoogleBooksRateLimited(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	p := NewGoogleBooks(testProvidersConfig(server), Deps{})
	_, err := p.Fetch(context.Background(), "9780141439587")
	require.True(t, liberrors.IsRateLimitError(err))
}

func TestGoogleBooksSearch(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "intitle:Emma", r.URL.Query().Get("q"))
		require.Equal(t, "3", r.URL.Query().Get("maxResults"))
		require.Equal(t, "k", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"items": [
			{"id": "g1", "volumeInfo": {"title": "Emma", "authors": ["Jane Austen"],
			 "industryIdentifiers": [{"type": "OTHER", "identifier": "x"}, {"type": "ISBN_13", "identifier": "9780141439587"}]}},
			{"id": "g2", "volumeInfo": {"title": "Emma: A Modern Retelling"}}
		]}`))
	}))

	cfg := testProvidersConfig(server)
	cfg.GoogleBooksAPIKey = "k"
	p := NewGoogleBooks(cfg, Deps{})

	results, err := p.Search(context.Background(), "Emma", metadata.ModeTitle, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "9780141439587", results[0].Identifier)
	require.Equal(t, []string{"Jane Austen"}, results[0].Authors)
	require.Equal(t, "google:g2", results[1].Identifier)
	require.Equal(t, "Google Books", results[1].Source)
}

func TestGoogleBooksFetchVolumeID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/books/v1/volumes/vol123", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "full", r.URL.Query().Get("projection"))
		_, _ = w.Write([]byte(`{"id": "vol123", "volumeInfo": {
			"title": "Lady Susan",
			"authors": ["Jane Austen"],
			"industryIdentifiers": [
				{"type": "ISBN_10", "identifier": "0141439785"},
				{"type": "ISBN_13", "identifier": "9780141439785"}
			]
		}}`))
	})
	server := newIPv4TestServer(t, mux)

	p := NewGoogleBooks(testProvidersConfig(server), Deps{})
	data, err := p.Fetch(context.Background(), "google:vol123")
	require.NoError(t, err)
	require.Equal(t, "Lady Susan", data.String(catalog.FieldTitle))
	require.Equal(t, "9780141439785", data.String(catalog.FieldISBN))
	require.Equal(t, []string{"Jane Austen"}, data.Strings(catalog.FieldAuthors))
}

func TestGoogleBooksIgnoresOtherSourceIDs(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))

	p := NewGoogleBooks(testProvidersConfig(server), Deps{})
	data, err := p.Fetch(context.Background(), "openlibrary:/works/OL66554W")
	require.NoError(t, err)
	require.Nil(t, data)
}
