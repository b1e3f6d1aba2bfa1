package cache

// All cache tables share one layout: the provider-specific lookup key, the
// JSON-encoded response and an absolute expiry so positive and negative
// entries can live side by side with different lifetimes.
const tableSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_expires_at ON %[1]s(expires_at);
`

const (
	TableOpenLibrary = "openlibrary_cache"
	TableGoogleBooks = "googlebooks_cache"
	TableISBNdb      = "isbndb_cache"
	TableSearch      = "search_cache"
)

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	TableOpenLibrary: true,
	TableGoogleBooks: true,
	TableISBNdb:      true,
	TableSearch:      true,
}

// SourceTables maps the user-facing source names accepted by
// `libris cache clear` to their tables.
var SourceTables = map[string]string{
	"openlibrary": TableOpenLibrary,
	"googlebooks": TableGoogleBooks,
	"isbndb":      TableISBNdb,
	"search":      TableSearch,
}
