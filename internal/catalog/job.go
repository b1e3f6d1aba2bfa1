package catalog

import (
	"fmt"
	"time"

	liberrors "github.com/lepinkainen/libris/internal/errors"
)

// DefaultProvider is recorded on jobs created without an explicit provider.
const DefaultProvider = "openlibrary"

// Job records one attempt to enrich a single book.
type Job struct {
	ID          int64     `json:"id" yaml:"id"`
	BookID      string    `json:"book_id" yaml:"book_id"`
	Identifier  string    `json:"identifier" yaml:"identifier"`
	Provider    string    `json:"provider" yaml:"provider"`
	Status      Status    `json:"status" yaml:"status"`
	Attempts    int       `json:"attempts" yaml:"attempts"`
	LastError   string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at" yaml:"scheduled_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewJob creates a pending job for bookID looked up by identifier.
func NewJob(bookID, identifier string) *Job {
	now := time.Now().UTC()
	return &Job{
		BookID:      bookID,
		Identifier:  identifier,
		Provider:    DefaultProvider,
		Status:      StatusPending,
		ScheduledAt: now,
		UpdatedAt:   now,
	}
}

// Transition moves the job forward in its lifecycle. Backward moves and
// moves out of a terminal state are rejected.
func (j *Job) Transition(to Status) error {
	if !j.Status.canTransition(to) {
		return liberrors.NewValidationError(
			fmt.Sprintf("job %d cannot move from %s to %s", j.ID, j.Status, to))
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	return nil
}
