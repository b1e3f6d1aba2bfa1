package enrichment

import (
	"fmt"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/metadata"
)

// Reconcile merges fetched metadata into book.
//
// Empty book fields are filled directly. Fields whose non-empty value differs
// from the fetched one are staged as a candidate and left untouched. Equal
// fields are ignored. The book's candidate and status are then re-derived
// from the staged set, replacing any earlier candidate.
func Reconcile(book *catalog.Book, md metadata.Metadata) (catalog.Candidate, error) {
	staged := catalog.Candidate{}
	for _, f := range md.Fields() {
		suggested := md.Get(f)
		if catalog.IsEmpty(suggested) {
			continue
		}

		current := book.Value(f)
		switch {
		case catalog.IsEmpty(current):
			if err := book.SetValue(f, suggested); err != nil {
				return nil, fmt.Errorf("auto-fill %s: %w", f, err)
			}
		case !sameValue(f, current, suggested):
			staged[f] = catalog.CandidateEntry{Current: current, Suggested: suggested}
		}
	}

	deriveStatus(book, staged)
	return book.MetadataCandidate, nil
}

// sameValue compares canonical forms. ISBNs are compared without hyphens or
// spaces so a formatted ISBN does not conflict with the lookup key.
func sameValue(f catalog.Field, current, suggested any) bool {
	if f == catalog.FieldISBN {
		a, _ := current.(string)
		b, _ := suggested.(string)
		return metadata.NormalizeISBN(a) == metadata.NormalizeISBN(b)
	}
	return catalog.Equal(f, current, suggested)
}

// ApplyCandidate writes the suggested values of the named fields into book.
// With all set, every staged field is applied. Names that are not staged are
// skipped; unselected fields stay staged. A book without a candidate is left
// unchanged and applied reports false.
func ApplyCandidate(book *catalog.Book, fields []string, all bool) (applied bool, err error) {
	if book.MetadataCandidate.Empty() {
		return false, nil
	}

	selected := book.MetadataCandidate.Fields()
	if !all {
		selected = selected[:0:0]
		for _, name := range fields {
			f, ok := catalog.ParseField(name)
			if !ok {
				continue
			}
			if _, staged := book.MetadataCandidate[f]; staged {
				selected = append(selected, f)
			}
		}
	}

	remaining := make(catalog.Candidate, len(book.MetadataCandidate))
	for f, entry := range book.MetadataCandidate {
		remaining[f] = entry
	}
	for _, f := range selected {
		entry, ok := remaining[f]
		if !ok {
			continue
		}
		if err := book.SetValue(f, entry.Suggested); err != nil {
			return false, fmt.Errorf("apply %s: %w", f, err)
		}
		delete(remaining, f)
	}

	deriveStatus(book, remaining)
	return true, nil
}

// RejectCandidate discards every staged field.
func RejectCandidate(book *catalog.Book) {
	deriveStatus(book, nil)
}

// deriveStatus keeps the candidate/status invariant: a non-empty candidate
// means awaiting_review, anything else means complete. A previous failed
// status does not survive a successful reconciliation, apply or reject.
func deriveStatus(book *catalog.Book, candidate catalog.Candidate) {
	if !candidate.Empty() {
		book.MetadataCandidate = candidate
		book.MetadataStatus = catalog.StatusAwaitingReview
	} else {
		book.MetadataCandidate = nil
		book.MetadataStatus = catalog.StatusComplete
	}
	book.Touch()
}
