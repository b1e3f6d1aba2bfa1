package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestNoopInstrumentsAreSafe(t *testing.T) {
	ctx := context.Background()

	tracer := NewTracer(nil)
	ctx, span := tracer.StartOperation(ctx, OpProcess, "book-1")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	m := NewMetrics(nil)
	m.RecordJob(ctx, "complete", 15*time.Millisecond)
	m.RecordCandidates(ctx, 2)
	m.RecordRequest(ctx, "GET /books/{id}", http.StatusOK, time.Millisecond)
}

func TestServerTimingHeader(t *testing.T) {
	handler := ServerTimingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := StartServerTiming(r.Context(), "fetch")
		time.Sleep(time.Millisecond)
		m.Stop()
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Server-Timing"), "fetch")
}

func TestServerTimingWithoutMiddlewareIsNoop(t *testing.T) {
	m := StartServerTiming(context.Background(), "fetch")
	m.Stop()

	var nilMetric *ServerTimingMetric
	nilMetric.Stop()
}
