package catalog

import "sort"

// CandidateEntry is a staged suggestion for a field whose fetched value
// conflicts with an existing non-empty value.
type CandidateEntry struct {
	Current   any `json:"current" yaml:"current"`
	Suggested any `json:"suggested" yaml:"suggested"`
}

// Candidate maps field names to staged suggestions awaiting review.
type Candidate map[Field]CandidateEntry

// Empty reports whether nothing is staged.
func (c Candidate) Empty() bool {
	return len(c) == 0
}

// Fields returns the staged field names in sorted order.
func (c Candidate) Fields() []Field {
	fields := make([]Field, 0, len(c))
	for f := range c {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Normalize coerces every entry back to canonical value types and drops
// entries for unknown fields. Use it after decoding a candidate from JSON.
func (c Candidate) Normalize() Candidate {
	if len(c) == 0 {
		return nil
	}
	out := make(Candidate, len(c))
	for f, entry := range c {
		if _, ok := ParseField(string(f)); !ok {
			continue
		}
		current, err := Coerce(f, entry.Current)
		if err != nil {
			current = entry.Current
		}
		suggested, err := Coerce(f, entry.Suggested)
		if err != nil {
			suggested = entry.Suggested
		}
		out[f] = CandidateEntry{Current: current, Suggested: suggested}
	}
	return out
}
