package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

type TestData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func setupTestCache(t *testing.T, ttl time.Duration) *CacheDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_cache.db")
	cache, err := Open(dbPath, ttl)
	if err != nil {
		t.Fatalf("Failed to open cache database: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	return cache
}

// advance moves the cache clock forward by d.
func advance(cache *CacheDB, d time.Duration) {
	base := cache.now()
	cache.now = func() time.Time { return base.Add(d) }
}

func TestGetOrFetch_CacheHit(t *testing.T) {
	cache := setupTestCache(t, time.Hour)

	calls := 0
	fetch := func() (*TestData, error) {
		calls++
		return &TestData{ID: 1, Name: "Pride and Prejudice"}, nil
	}

	first, fromCache, err := GetOrFetch(cache, TableOpenLibrary, "9780141439518", fetch, nil)
	if err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}
	if fromCache {
		t.Fatalf("first lookup should not come from cache")
	}

	second, fromCache, err := GetOrFetch(cache, TableOpenLibrary, "9780141439518", fetch, nil)
	if err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}
	if !fromCache {
		t.Fatalf("second lookup should come from cache")
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
	if second.Name != first.Name || second.ID != first.ID {
		t.Fatalf("cached value = %+v, want %+v", second, first)
	}
}

func TestGetOrFetch_RespectsTTLExpiration(t *testing.T) {
	cache := setupTestCache(t, time.Hour)

	calls := 0
	fetch := func() (TestData, error) {
		calls++
		return TestData{ID: calls}, nil
	}

	if _, _, err := GetOrFetch(cache, TableGoogleBooks, "key", fetch, nil); err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}

	advance(cache, 2*time.Hour)

	got, fromCache, err := GetOrFetch(cache, TableGoogleBooks, "key", fetch, nil)
	if err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}
	if fromCache {
		t.Fatalf("expired entry should be refetched")
	}
	if got.ID != 2 || calls != 2 {
		t.Fatalf("got ID %d after %d calls, want 2 after 2", got.ID, calls)
	}
}

func TestGetOrFetch_FetchErrorNotCached(t *testing.T) {
	cache := setupTestCache(t, time.Hour)

	boom := errors.New("upstream unavailable")
	_, _, err := GetOrFetch(cache, TableISBNdb, "key", func() (*TestData, error) {
		return nil, boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	if _, found, _ := cache.Get(TableISBNdb, "key"); found {
		t.Fatalf("failed fetch should not be cached")
	}
}

func TestGetOrFetch_NegativeCaching(t *testing.T) {
	cache := setupTestCache(t, 30*24*time.Hour)

	isNotFound := func(d *TestData) bool { return d == nil }
	calls := 0
	fetch := func() (*TestData, error) {
		calls++
		return nil, nil
	}

	if _, _, err := GetOrFetch(cache, TableOpenLibrary, "missing", fetch, isNotFound); err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}

	// still inside the negative window
	advance(cache, 24*time.Hour)
	if _, fromCache, _ := GetOrFetch(cache, TableOpenLibrary, "missing", fetch, isNotFound); !fromCache {
		t.Fatalf("negative entry should be served from cache within a day")
	}

	advance(cache, 8*24*time.Hour)
	if _, fromCache, _ := GetOrFetch(cache, TableOpenLibrary, "missing", fetch, isNotFound); fromCache {
		t.Fatalf("negative entry should expire after a week")
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
}

func TestGetOrFetch_NilCacheFetchesDirectly(t *testing.T) {
	calls := 0
	got, fromCache, err := GetOrFetch(nil, TableSearch, "key", func() (string, error) {
		calls++
		return "value", nil
	}, nil)
	if err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}
	if fromCache || got != "value" || calls != 1 {
		t.Fatalf("got (%q, %v) after %d calls", got, fromCache, calls)
	}
}

func TestNegativeTTLCappedByTTL(t *testing.T) {
	short := setupTestCache(t, time.Hour)
	if short.NegativeTTL() != time.Hour {
		t.Fatalf("NegativeTTL = %v, want 1h", short.NegativeTTL())
	}

	long := setupTestCache(t, 0)
	if long.TTL() != DefaultCacheTTL {
		t.Fatalf("TTL = %v, want default %v", long.TTL(), DefaultCacheTTL)
	}
	if long.NegativeTTL() != NegativeCacheTTL {
		t.Fatalf("NegativeTTL = %v, want %v", long.NegativeTTL(), NegativeCacheTTL)
	}
}

func TestCacheDB_InvalidateSource(t *testing.T) {
	cache := setupTestCache(t, time.Hour)

	for _, key := range []string{"a", "b", "c"} {
		if err := cache.Set(TableOpenLibrary, key, `{}`, time.Hour); err != nil {
			t.Fatalf("Set returned error: %v", err)
		}
	}
	if err := cache.Set(TableGoogleBooks, "a", `{}`, time.Hour); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	deleted, err := cache.InvalidateSource(TableOpenLibrary)
	if err != nil {
		t.Fatalf("InvalidateSource returned error: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("deleted = %d, want 3", deleted)
	}

	if _, found, _ := cache.Get(TableGoogleBooks, "a"); !found {
		t.Fatalf("other tables should be untouched")
	}
}

func TestCacheDB_InvalidTableName(t *testing.T) {
	cache := setupTestCache(t, time.Hour)

	if _, err := cache.InvalidateSource("books; DROP TABLE books"); err == nil {
		t.Fatalf("expected error for invalid table name")
	}
	if _, _, err := cache.Get("nope", "key"); err == nil {
		t.Fatalf("expected error for invalid table name")
	}
	if err := cache.Set("nope", "key", "{}", time.Hour); err == nil {
		t.Fatalf("expected error for invalid table name")
	}
}
