// Package metadata fetches bibliographic data from external providers,
// normalizes it into a canonical field set and merges the results.
package metadata

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/lepinkainen/libris/internal/catalog"
)

// ErrNoMetadata is returned when no provider had anything for an identifier.
var ErrNoMetadata = errors.New("no metadata found")

// Provider is a single external bibliographic source.
//
// Fetch returns (nil, nil) when the source has no record for identifier.
// Errors are reserved for transport or decoding failures; the Fetcher logs
// them and treats the source as empty.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, identifier string) (Metadata, error)
}

// Searcher is implemented by providers that support multi-result lookups.
type Searcher interface {
	Provider
	Search(ctx context.Context, query string, mode SearchMode, maxResults int) ([]SearchResult, error)
}

// Metadata is a normalized record keyed by enrichable field. Values are
// always in canonical form (string, []string or int) and never empty.
type Metadata map[catalog.Field]any

// Set stores v under f after coercion. Unknown fields, empty values and
// values of the wrong shape are dropped.
func (m Metadata) Set(f catalog.Field, v any) {
	canonical, err := catalog.Coerce(f, v)
	if err != nil || canonical == nil {
		return
	}
	m[f] = canonical
}

// Get returns the value for f, or nil.
func (m Metadata) Get(f catalog.Field) any {
	return m[f]
}

// String returns a scalar text field, or "" when absent.
func (m Metadata) String(f catalog.Field) string {
	s, _ := m[f].(string)
	return s
}

// Strings returns a list field, or nil when absent.
func (m Metadata) Strings(f catalog.Field) []string {
	s, _ := m[f].([]string)
	return s
}

// Fields returns the populated fields in sorted order.
func (m Metadata) Fields() []catalog.Field {
	fields := make([]catalog.Field, 0, len(m))
	for _, f := range catalog.AllFields() {
		if _, ok := m[f]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// Empty reports whether the record carries no data.
func (m Metadata) Empty() bool {
	return len(m) == 0
}

// UnmarshalJSON restores canonical value types after a JSON round trip,
// which matters for records read back from the response cache.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(Metadata, len(raw))
	for key, value := range raw {
		f, ok := catalog.ParseField(key)
		if !ok {
			continue
		}
		out.Set(f, value)
	}
	*m = out
	return nil
}

// Merge combines records left to right. A later non-empty scalar overwrites an
// earlier one; two lists are unioned in first-seen order without duplicates.
// Empty values never overwrite. Nil records are skipped.
func Merge(records ...Metadata) Metadata {
	merged := make(Metadata)
	for _, record := range records {
		for f, value := range record {
			if catalog.IsEmpty(value) {
				continue
			}
			existing, ok := merged[f].([]string)
			incoming, isList := value.([]string)
			if ok && isList {
				merged[f] = unionStrings(existing, incoming)
				continue
			}
			merged.Set(f, value)
		}
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
