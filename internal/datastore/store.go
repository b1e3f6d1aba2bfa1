package datastore

import (
	"context"

	"github.com/lepinkainen/libris/internal/catalog"
)

// Store defines persistence for books and enrichment jobs.
type Store interface {
	CreateBook(ctx context.Context, book *catalog.Book) error
	GetBook(ctx context.Context, id string) (*catalog.Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]*catalog.Book, error)
	UpdateBook(ctx context.Context, book *catalog.Book) error

	// CreateJob inserts job unless the book already has an active job, in
	// which case the existing job is returned and created is false.
	CreateJob(ctx context.Context, job *catalog.Job) (stored *catalog.Job, created bool, err error)
	GetJob(ctx context.Context, id int64) (*catalog.Job, error)
	// ActiveJobForBook returns the pending or in-progress job, or nil.
	ActiveJobForBook(ctx context.Context, bookID string) (*catalog.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*catalog.Job, error)
	UpdateJob(ctx context.Context, job *catalog.Job) error

	// WithTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error

	Close() error
}

// BookFilter narrows ListBooks. Zero values match everything.
type BookFilter struct {
	Status catalog.Status
	Limit  int
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	BookID string
	Status catalog.Status
	Limit  int
}
