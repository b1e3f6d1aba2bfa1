package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lepinkainen/libris/internal/catalog"
	liberrors "github.com/lepinkainen/libris/internal/errors"
)

const bookColumns = "id, title, authors_json, isbn, publisher, description, publish_date, subjects_json, language_json, page_count, cover_url, series, metadata_status, metadata_candidate_json, created_at, updated_at"

// CreateBook inserts a new book record.
func (s *SQLiteStore) CreateBook(ctx context.Context, book *catalog.Book) error {
	args, err := bookArgs(book)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("INSERT INTO books (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", bookColumns)
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook loads a book by id.
func (s *SQLiteStore) GetBook(ctx context.Context, id string) (*catalog.Book, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE id = ?", id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, liberrors.NewNotFoundError("book", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}
	return book, nil
}

// ListBooks returns books ordered by creation time.
func (s *SQLiteStore) ListBooks(ctx context.Context, filter BookFilter) ([]*catalog.Book, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "metadata_status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + bookColumns + " FROM books"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var books []*catalog.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// UpdateBook overwrites every stored column of an existing book.
func (s *SQLiteStore) UpdateBook(ctx context.Context, book *catalog.Book) error {
	args, err := bookArgs(book)
	if err != nil {
		return err
	}
	// id goes last for the WHERE clause
	args = append(args[1:], args[0])

	res, err := s.q.ExecContext(ctx, `UPDATE books SET
		title = ?, authors_json = ?, isbn = ?, publisher = ?, description = ?, publish_date = ?,
		subjects_json = ?, language_json = ?, page_count = ?, cover_url = ?, series = ?,
		metadata_status = ?, metadata_candidate_json = ?, created_at = ?, updated_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update book %s: %w", book.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return liberrors.NewNotFoundError("book", book.ID)
	}
	return nil
}

func bookArgs(book *catalog.Book) ([]any, error) {
	authors, err := encodeList(book.Authors)
	if err != nil {
		return nil, err
	}
	subjects, err := encodeList(book.Subjects)
	if err != nil {
		return nil, err
	}
	language, err := encodeList(book.Language)
	if err != nil {
		return nil, err
	}

	var candidate any
	if !book.MetadataCandidate.Empty() {
		data, err := json.Marshal(book.MetadataCandidate)
		if err != nil {
			return nil, fmt.Errorf("encode candidate: %w", err)
		}
		candidate = string(data)
	}

	status := book.MetadataStatus
	if status == "" {
		status = catalog.StatusPending
	}

	return []any{
		book.ID,
		book.Title,
		authors,
		nullableString(book.ISBN),
		nullableString(book.Publisher),
		nullableString(book.Description),
		nullableString(book.PublishDate),
		subjects,
		language,
		nullableInt(book.PageCount),
		nullableString(book.CoverURL),
		nullableString(book.Series),
		string(status),
		candidate,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	}, nil
}

func scanBook(scanner interface{ Scan(dest ...any) error }) (*catalog.Book, error) {
	var (
		id          string
		title       string
		authors     sql.NullString
		isbn        sql.NullString
		publisher   sql.NullString
		description sql.NullString
		publishDate sql.NullString
		subjects    sql.NullString
		language    sql.NullString
		pageCount   sql.NullInt64
		coverURL    sql.NullString
		series      sql.NullString
		status      string
		candidate   sql.NullString
		createdRaw  string
		updatedRaw  string
	)

	if err := scanner.Scan(
		&id, &title, &authors, &isbn, &publisher, &description, &publishDate,
		&subjects, &language, &pageCount, &coverURL, &series, &status, &candidate,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	book := &catalog.Book{
		ID:             id,
		Title:          title,
		ISBN:           isbn.String,
		Publisher:      publisher.String,
		Description:    description.String,
		PublishDate:    publishDate.String,
		CoverURL:       coverURL.String,
		Series:         series.String,
		MetadataStatus: catalog.Status(status),
	}

	var err error
	if book.Authors, err = decodeList(authors.String); err != nil {
		return nil, err
	}
	if book.Subjects, err = decodeList(subjects.String); err != nil {
		return nil, err
	}
	if book.Language, err = decodeList(language.String); err != nil {
		return nil, err
	}
	if pageCount.Valid {
		n := int(pageCount.Int64)
		book.PageCount = &n
	}
	if candidate.Valid && candidate.String != "" {
		var c catalog.Candidate
		if err := json.Unmarshal([]byte(candidate.String), &c); err != nil {
			return nil, fmt.Errorf("decode candidate: %w", err)
		}
		book.MetadataCandidate = c.Normalize()
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		book.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		book.UpdatedAt = updated
	}
	return book, nil
}
