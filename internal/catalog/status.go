// Package catalog defines the book record and enrichment job entities shared by
// the enrichment workflow, the datastore and the HTTP layer.
package catalog

import "fmt"

// Status is the enrichment state of a book or of a single enrichment job.
type Status string

const (
	StatusPending        Status = "pending"
	StatusInProgress     Status = "in_progress"
	StatusComplete       Status = "complete"
	StatusFailed         Status = "failed"
	StatusAwaitingReview Status = "awaiting_review"
)

// AllStatuses lists every known status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusComplete,
	StatusFailed,
	StatusAwaitingReview,
}

// ActiveJobStatuses are the job states that block a new job for the same book.
var ActiveJobStatuses = []Status{StatusPending, StatusInProgress}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	for _, s := range AllStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Active reports whether a job in this state is still pending work.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusInProgress
}

// Terminal reports whether a job in this state has finished.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// canTransition encodes the forward-only job lifecycle:
// pending -> in_progress -> complete | failed.
func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusComplete || to == StatusFailed
	default:
		return false
	}
}
