package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lepinkainen/libris/internal/config"
	"github.com/lepinkainen/libris/internal/testutil"
)

func newIPv4TestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	return testutil.NewIPv4TestServer(t, handler)
}

// testProvidersConfig points every provider at server.
func testProvidersConfig(server *httptest.Server) config.ProvidersConfig {
	return config.ProvidersConfig{
		Timeout:              2 * time.Second,
		OpenLibraryBaseURL:   server.URL,
		OpenLibraryCoversURL: "https://covers.example.org",
		GoogleBooksBaseURL:   server.URL + "/books/v1/volumes",
		ISBNdbBaseURL:        server.URL + "/isbndb",
		ISBNdbAPIKey:         "secret",
	}
}
