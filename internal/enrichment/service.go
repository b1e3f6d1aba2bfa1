// Package enrichment tracks enrichment jobs per book and reconciles fetched
// metadata against the stored record.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/datastore"
	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/observability"
)

// MetadataSource is the provider adapter as seen by the service.
// *metadata.Fetcher implements it.
type MetadataSource interface {
	Fetch(ctx context.Context, identifier string) (metadata.Metadata, error)
	Search(ctx context.Context, query string, mode metadata.SearchMode, maxResults int) (*metadata.SearchResults, error)
}

// Service runs enrichment operations against a Store.
type Service struct {
	store   datastore.Store
	source  MetadataSource
	tracer  *observability.Tracer
	metrics *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithTracer sets the tracer used for operation spans.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service.
func NewService(store datastore.Store, source MetadataSource, opts ...Option) *Service {
	s := &Service{
		store:   store,
		source:  source,
		tracer:  observability.NewNoopTracer(),
		metrics: observability.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookInput carries the caller-supplied fields of a new book.
type BookInput struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	ISBN        string   `json:"isbn"`
	Publisher   string   `json:"publisher"`
	Description string   `json:"description"`
	PublishDate string   `json:"publish_date"`
	Subjects    []string `json:"subjects"`
	Language    []string `json:"language"`
	PageCount   *int     `json:"page_count"`
	CoverURL    string   `json:"cover_url"`
	Series      string   `json:"series"`
}

// CreateBook stores a new pending book.
func (s *Service) CreateBook(ctx context.Context, in BookInput) (*catalog.Book, error) {
	if in.PageCount != nil && *in.PageCount < 0 {
		return nil, liberrors.NewValidationError("page_count must not be negative")
	}

	book := catalog.NewBook(strings.TrimSpace(in.Title))
	book.Authors = in.Authors
	book.ISBN = strings.TrimSpace(in.ISBN)
	book.Publisher = in.Publisher
	book.Description = in.Description
	book.PublishDate = in.PublishDate
	book.Subjects = in.Subjects
	book.Language = in.Language
	book.PageCount = in.PageCount
	book.CoverURL = in.CoverURL
	book.Series = in.Series

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, err
	}
	slog.Info("Book created", "book_id", book.ID, "title", book.Title)
	return book, nil
}

// Book returns a stored book.
func (s *Service) Book(ctx context.Context, bookID string) (*catalog.Book, error) {
	return s.store.GetBook(ctx, bookID)
}

// Books lists stored books.
func (s *Service) Books(ctx context.Context, filter datastore.BookFilter) ([]*catalog.Book, error) {
	return s.store.ListBooks(ctx, filter)
}

// Queue schedules enrichment for a book. The identifier overrides the book's
// ISBN. If the book already has a pending or in-progress job, that job is
// returned and nothing new is scheduled.
func (s *Service) Queue(ctx context.Context, bookID, identifier string) (*catalog.Job, error) {
	ctx, span := s.tracer.StartOperation(ctx, observability.OpQueue, bookID)
	defer span.End()

	job, err := s.queue(ctx, bookID, identifier)
	observability.RecordError(span, err)
	return job, err
}

func (s *Service) queue(ctx context.Context, bookID, identifier string) (*catalog.Job, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	lookup := strings.TrimSpace(identifier)
	if lookup == "" {
		lookup = strings.TrimSpace(book.ISBN)
	}
	if lookup == "" {
		return nil, liberrors.NewValidationError("cannot queue without an identifier")
	}

	job, created, err := s.store.CreateJob(ctx, catalog.NewJob(book.ID, lookup))
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("Enrichment job queued", "job_id", job.ID, "book_id", book.ID, "identifier", lookup)
	} else {
		slog.Debug("Reusing active enrichment job", "job_id", job.ID, "book_id", book.ID, "status", job.Status)
	}
	return job, nil
}

// Process runs one enrichment attempt for a job and returns the updated book.
//
// The job is marked in_progress and persisted before the fetch so observers
// can see the attempt. When no provider has data the job and the book are
// marked failed and the candidate is left alone. Otherwise the metadata is
// reconciled into the book as stored after the fetch and the job completes.
// Any other fetch error fails the job, leaves the book untouched and is
// returned. There is no retry.
func (s *Service) Process(ctx context.Context, jobID int64) (*catalog.Book, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.StartOperation(ctx, observability.OpProcess, job.BookID)
	span.SetAttributes(observability.JobIDAttr(job.ID), observability.IdentifierAttr(job.Identifier))
	defer span.End()

	book, err := s.process(ctx, job)
	observability.RecordError(span, err)
	return book, err
}

func (s *Service) process(ctx context.Context, job *catalog.Job) (*catalog.Book, error) {
	started := time.Now()

	if job.Status.Terminal() {
		return nil, liberrors.NewValidationError(
			fmt.Sprintf("job %d is already %s", job.ID, job.Status))
	}

	book, err := s.store.GetBook(ctx, job.BookID)
	if err != nil {
		return nil, err
	}

	// an in_progress job here is an interrupted earlier attempt
	if job.Status == catalog.StatusPending {
		if err := job.Transition(catalog.StatusInProgress); err != nil {
			return nil, err
		}
	}
	job.Attempts++
	job.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	slog.Info("Enrichment started", "job_id", job.ID, "book_id", book.ID, "identifier", job.Identifier, "attempt", job.Attempts)

	fetchTiming := observability.StartServerTiming(ctx, "fetch")
	md, fetchErr := s.source.Fetch(ctx, job.Identifier)
	fetchTiming.Stop()

	// the attempt is over once the fetch returns; its outcome is saved even
	// if the caller has gone away
	ctx = context.WithoutCancel(ctx)

	noData := errors.Is(fetchErr, metadata.ErrNoMetadata)
	if fetchErr != nil {
		if err := job.Transition(catalog.StatusFailed); err != nil {
			return nil, err
		}
		job.LastError = fetchErr.Error()
	} else {
		if err := job.Transition(catalog.StatusComplete); err != nil {
			return nil, err
		}
		job.LastError = ""
	}

	// reconcile against the row as it is now, not as it was before the fetch
	var candidates int
	err = s.store.WithTx(ctx, func(tx datastore.Store) error {
		current, err := tx.GetBook(ctx, job.BookID)
		if err != nil {
			return err
		}
		switch {
		case noData:
			current.MetadataStatus = catalog.StatusFailed
			current.Touch()
		case fetchErr == nil:
			candidate, err := Reconcile(current, md)
			if err != nil {
				return err
			}
			candidates = len(candidate)
		}
		if fetchErr == nil || noData {
			if err := tx.UpdateBook(ctx, current); err != nil {
				return err
			}
		}
		book = current
		return tx.UpdateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordJob(ctx, string(job.Status), time.Since(started))
	if fetchErr != nil && !noData {
		slog.Warn("Enrichment aborted", "job_id", job.ID, "book_id", book.ID, "error", fetchErr)
		return nil, fetchErr
	}
	if fetchErr == nil {
		s.metrics.RecordCandidates(ctx, candidates)
	}

	slog.Info("Enrichment finished",
		"job_id", job.ID,
		"book_id", book.ID,
		"status", job.Status,
		"book_status", book.MetadataStatus,
		"candidates", len(book.MetadataCandidate),
	)
	if job.Status == catalog.StatusFailed {
		slog.Warn("Enrichment failed", "job_id", job.ID, "book_id", book.ID, "error", job.LastError)
	}
	return book, nil
}

// Enrich queues a job for the book and processes it unless another attempt
// is already in progress, in which case the book is returned as stored.
func (s *Service) Enrich(ctx context.Context, bookID, identifier string) (*catalog.Book, *catalog.Job, error) {
	job, err := s.Queue(ctx, bookID, identifier)
	if err != nil {
		return nil, nil, err
	}

	if job.Status == catalog.StatusInProgress {
		book, err := s.store.GetBook(ctx, bookID)
		return book, job, err
	}

	book, err := s.Process(ctx, job.ID)
	if err != nil {
		return nil, job, err
	}

	// reload for the final job state
	if refreshed, err := s.store.GetJob(ctx, job.ID); err == nil {
		job = refreshed
	}
	return book, job, nil
}

// Job returns a single job.
func (s *Service) Job(ctx context.Context, jobID int64) (*catalog.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// Jobs lists jobs.
func (s *Service) Jobs(ctx context.Context, filter datastore.JobFilter) ([]*catalog.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// CandidateView is the staged review state of a book.
type CandidateView struct {
	BookID            string            `json:"book_id" yaml:"book_id"`
	MetadataCandidate catalog.Candidate `json:"metadata_candidate" yaml:"metadata_candidate"`
	MetadataStatus    catalog.Status    `json:"metadata_status" yaml:"metadata_status"`
}

// Candidate returns the book's staged candidate and status.
func (s *Service) Candidate(ctx context.Context, bookID string) (*CandidateView, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return &CandidateView{
		BookID:            book.ID,
		MetadataCandidate: book.MetadataCandidate,
		MetadataStatus:    book.MetadataStatus,
	}, nil
}

// Apply writes staged suggestions into the book. With all set, every staged
// field is applied; otherwise only the named ones. Applying is idempotent.
func (s *Service) Apply(ctx context.Context, bookID string, fields []string, all bool) (*catalog.Book, error) {
	ctx, span := s.tracer.StartOperation(ctx, observability.OpApply, bookID)
	defer span.End()

	var book *catalog.Book
	err := s.store.WithTx(ctx, func(tx datastore.Store) error {
		var err error
		book, err = tx.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		applied, err := ApplyCandidate(book, fields, all)
		if err != nil || !applied {
			return err
		}
		return tx.UpdateBook(ctx, book)
	})
	observability.RecordError(span, err)
	if err != nil {
		return nil, err
	}

	slog.Info("Candidate applied", "book_id", bookID, "status", book.MetadataStatus, "remaining", len(book.MetadataCandidate))
	return book, nil
}

// Reject discards the book's staged candidate.
func (s *Service) Reject(ctx context.Context, bookID string) (*catalog.Book, error) {
	ctx, span := s.tracer.StartOperation(ctx, observability.OpReject, bookID)
	defer span.End()

	var book *catalog.Book
	err := s.store.WithTx(ctx, func(tx datastore.Store) error {
		var err error
		book, err = tx.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		RejectCandidate(book)
		return tx.UpdateBook(ctx, book)
	})
	observability.RecordError(span, err)
	if err != nil {
		return nil, err
	}

	slog.Info("Candidate rejected", "book_id", bookID)
	return book, nil
}

// Preview fetches merged metadata without touching any book.
func (s *Service) Preview(ctx context.Context, identifier string) (metadata.Metadata, error) {
	ctx, span := s.tracer.StartSpan(ctx, "libris."+observability.OpPreview, observability.IdentifierAttr(identifier))
	defer span.End()

	md, err := s.source.Fetch(ctx, identifier)
	if err != nil && !errors.Is(err, metadata.ErrNoMetadata) {
		observability.RecordError(span, err)
	}
	return md, err
}

// Search runs a multi-result lookup across providers.
func (s *Service) Search(ctx context.Context, query string, mode metadata.SearchMode, maxResults int) (*metadata.SearchResults, error) {
	return s.source.Search(ctx, query, mode, maxResults)
}
