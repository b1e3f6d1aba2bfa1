package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/datastore"
	"github.com/lepinkainen/libris/internal/enrichment"
	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
)

const maxBodyBytes = 1 << 20

// EnrichRequest is the optional body of POST /books/{id}/enrich.
type EnrichRequest struct {
	Identifier string `json:"identifier"`
}

// ApplyRequest is the body of POST /books/{id}/candidate/apply. An empty
// field list applies every staged field.
type ApplyRequest struct {
	Fields []string `json:"fields"`
}

// EnrichResponse pairs the updated book with the job that produced it.
type EnrichResponse struct {
	Book *catalog.Book `json:"book"`
	Job  *catalog.Job  `json:"job"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Query   string                  `json:"query"`
	Results []metadata.SearchResult `json:"results"`
}

// decodeBody reads an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return liberrors.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, liberrors.NewValidationError("limit must be a non-negative integer")
	}
	return n, nil
}

func parseStatus(r *http.Request) (catalog.Status, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return "", nil
	}
	status, err := catalog.ParseStatus(raw)
	if err != nil {
		return "", liberrors.NewValidationError(err.Error())
	}
	return status, nil
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var in enrichment.BookInput
	if err := decodeBody(r, &in); err != nil {
		s.writeServiceError(w, err)
		return
	}
	book, err := s.svc.CreateBook(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatus(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	books, err := s.svc.Books(r.Context(), datastore.BookFilter{Status: status, Limit: limit})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if books == nil {
		books = []*catalog.Book{}
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.svc.Book(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	book, job, err := s.svc.Enrich(r.Context(), r.PathValue("id"), req.Identifier)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, EnrichResponse{Book: book, Job: job})
}

func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Candidate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	book, err := s.svc.Apply(r.Context(), r.PathValue("id"), req.Fields, len(req.Fields) == 0)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	book, err := s.svc.Reject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatus(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	jobs, err := s.svc.Jobs(r.Context(), datastore.JobFilter{
		BookID: strings.TrimSpace(r.URL.Query().Get("book_id")),
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*catalog.Job{}
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.svc.Job(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	book, err := s.svc.Process(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	job, err := s.svc.Job(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, EnrichResponse{Book: book, Job: job})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := metadata.ParseSearchMode(q.Get("search_type"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	maxResults := metadata.DefaultMaxResults
	if raw := strings.TrimSpace(q.Get("max_results")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > metadata.MaxSearchResults {
			s.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("max_results must be between 1 and %d", metadata.MaxSearchResults))
			return
		}
		maxResults = n
	}

	query := q.Get("query")
	results, err := s.svc.Search(r.Context(), query, mode, maxResults)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	collected := results.Collect()
	if collected == nil {
		collected = []metadata.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, SearchResponse{Query: strings.TrimSpace(query), Results: collected})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")
	md, err := s.svc.Preview(r.Context(), identifier)
	if errors.Is(err, metadata.ErrNoMetadata) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, md)
}
