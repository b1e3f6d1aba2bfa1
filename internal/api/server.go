// Package api exposes the enrichment operations as a JSON HTTP endpoint layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lepinkainen/libris/internal/enrichment"
	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/observability"
)

// Server serves the enrichment API.
type Server struct {
	svc     *enrichment.Service
	metrics *observability.Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewServer builds the route table for svc. A nil metrics value records nothing.
func NewServer(svc *enrichment.Service, metrics *observability.Metrics) *Server {
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	s := &Server{
		svc:     svc,
		metrics: metrics,
		logger:  slog.Default().With("component", "api"),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /books", s.handleCreateBook)
	s.mux.HandleFunc("GET /books", s.handleListBooks)
	s.mux.HandleFunc("GET /books/{id}", s.handleGetBook)
	s.mux.HandleFunc("POST /books/{id}/enrich", s.handleEnrich)
	s.mux.HandleFunc("GET /books/{id}/candidate", s.handleCandidate)
	s.mux.HandleFunc("POST /books/{id}/candidate/apply", s.handleApply)
	s.mux.HandleFunc("POST /books/{id}/candidate/reject", s.handleReject)
	s.mux.HandleFunc("GET /jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /jobs/{id}/process", s.handleProcess)
	s.mux.HandleFunc("GET /search", s.handleSearch)
	s.mux.HandleFunc("GET /preview/{identifier}", s.handlePreview)
	return s
}

// Handler returns the instrumented handler.
func (s *Server) Handler() http.Handler {
	return observability.ServerTimingMiddleware(s.instrument(s.mux))
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// enrichment waits on external providers
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("API server listening", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		s.logger.Info("API server stopped")
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(started)
		s.metrics.RecordRequest(r.Context(), route, rec.status, elapsed)
		s.logger.Debug("Request handled", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", elapsed)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the error taxonomy onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case liberrors.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case liberrors.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("Request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
