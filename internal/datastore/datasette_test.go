package datastore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/libris/internal/catalog"
)

func TestDatasetteExportBooks(t *testing.T) {
	var payload struct {
		Rows []map[string]any `json:"rows"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/-/insert/libris/books", r.URL.Path)
		require.Equal(t, "id", r.URL.Query().Get("pk"))
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	book := catalog.NewBook("Emma")
	book.Authors = []string{"Jane Austen", "J. Austen"}

	client := NewDatasetteClient(server.URL, "", "token")
	require.NoError(t, client.ExportBooks(context.Background(), "books", []*catalog.Book{book}))

	require.Len(t, payload.Rows, 1)
	require.Equal(t, "Jane Austen; J. Austen", payload.Rows[0]["authors"])
}

func TestDatasetteExportReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "permission denied"}`))
	}))
	defer server.Close()

	client := NewDatasetteClient(server.URL, "libris", "")
	err := client.ExportBooks(context.Background(), "books", []*catalog.Book{catalog.NewBook("x")})
	require.ErrorContains(t, err, "permission denied")
}
