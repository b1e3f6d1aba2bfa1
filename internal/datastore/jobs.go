package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lepinkainen/libris/internal/catalog"
	liberrors "github.com/lepinkainen/libris/internal/errors"
)

const jobColumns = "id, book_id, identifier, provider, status, attempts, last_error, scheduled_at, updated_at"

// CreateJob inserts a pending job. The partial unique index on active jobs
// turns a concurrent duplicate into a no-op, after which the winner is read
// back and returned with created=false.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *catalog.Job) (*catalog.Job, bool, error) {
	provider := job.Provider
	if provider == "" {
		provider = catalog.DefaultProvider
	}
	status := job.Status
	if status == "" {
		status = catalog.StatusPending
	}

	res, err := s.q.ExecContext(ctx, `INSERT INTO enrichment_jobs
		(book_id, identifier, provider, status, attempts, last_error, scheduled_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		job.BookID, job.Identifier, provider, string(status), job.Attempts,
		nullableString(job.LastError), formatTime(job.ScheduledAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert job rows affected: %w", err)
	}
	if affected == 0 {
		existing, err := s.ActiveJobForBook(ctx, job.BookID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("insert job for book %s: conflict without an active job", job.BookID)
		}
		return existing, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("insert job id: %w", err)
	}
	stored := *job
	stored.ID = id
	stored.Provider = provider
	stored.Status = status
	return &stored, true, nil
}

// GetJob loads a job by id.
func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*catalog.Job, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM enrichment_jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, liberrors.NewNotFoundError("job", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// ActiveJobForBook returns the book's pending or in-progress job, or nil.
func (s *SQLiteStore) ActiveJobForBook(ctx context.Context, bookID string) (*catalog.Job, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM enrichment_jobs WHERE book_id = ? AND status IN (?, ?) ORDER BY id DESC LIMIT 1",
		bookID, string(catalog.StatusPending), string(catalog.StatusInProgress),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for book %s: %w", bookID, err)
	}
	return job, nil
}

// ListJobs returns jobs newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]*catalog.Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.BookID != "" {
		where = append(where, "book_id = ?")
		args = append(args, filter.BookID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + jobColumns + " FROM enrichment_jobs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*catalog.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob persists status, attempt count and error fields.
func (s *SQLiteStore) UpdateJob(ctx context.Context, job *catalog.Job) error {
	res, err := s.q.ExecContext(ctx, `UPDATE enrichment_jobs SET
		identifier = ?, provider = ?, status = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		job.Identifier, job.Provider, string(job.Status), job.Attempts,
		nullableString(job.LastError), formatTime(job.UpdatedAt), job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return liberrors.NewNotFoundError("job", strconv.FormatInt(job.ID, 10))
	}
	return nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*catalog.Job, error) {
	var (
		job          catalog.Job
		status       string
		lastError    sql.NullString
		scheduledRaw string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&job.ID, &job.BookID, &job.Identifier, &job.Provider, &status,
		&job.Attempts, &lastError, &scheduledRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = catalog.Status(status)
	job.LastError = lastError.String
	if scheduled, err := parseTimeString(scheduledRaw); err == nil {
		job.ScheduledAt = scheduled
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return &job, nil
}
