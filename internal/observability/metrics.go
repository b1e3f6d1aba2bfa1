package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the enrichment metric instruments.
type Metrics struct {
	jobCount        metric.Int64Counter
	jobDuration     metric.Float64Histogram
	candidateCount  metric.Int64Histogram
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewMetrics creates instruments from mp. A nil provider yields no-op metrics.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	// instrument creation only fails on invalid names; fall back to the bare
	// instrument so recording never has to nil-check
	var err error

	m.jobCount, err = meter.Int64Counter(
		"libris.enrichment.jobs",
		metric.WithDescription("Enrichment jobs finished, by final status"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.jobCount, _ = meter.Int64Counter("libris.enrichment.jobs")
	}

	m.jobDuration, err = meter.Float64Histogram(
		"libris.enrichment.duration",
		metric.WithDescription("Duration of enrichment job processing in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.jobDuration, _ = meter.Float64Histogram("libris.enrichment.duration")
	}

	m.candidateCount, err = meter.Int64Histogram(
		"libris.enrichment.candidates",
		metric.WithDescription("Conflicting fields staged for review per reconciliation"),
		metric.WithUnit("{field}"),
	)
	if err != nil {
		m.candidateCount, _ = meter.Int64Histogram("libris.enrichment.candidates")
	}

	m.requestCount, err = meter.Int64Counter(
		"libris.http.request.count",
		metric.WithDescription("Total number of API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.requestCount, _ = meter.Int64Counter("libris.http.request.count")
	}

	m.requestDuration, err = meter.Float64Histogram(
		"libris.http.request.duration",
		metric.WithDescription("Duration of API requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.requestDuration, _ = meter.Float64Histogram("libris.http.request.duration")
	}

	return m
}

// NewNoopMetrics creates metrics that do nothing.
func NewNoopMetrics() *Metrics {
	return NewMetrics(nil)
}

// RecordJob records a finished enrichment job.
func (m *Metrics) RecordJob(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(StatusAttr(status))
	m.jobCount.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordCandidates records how many fields a reconciliation staged.
func (m *Metrics) RecordCandidates(ctx context.Context, count int) {
	m.candidateCount.Record(ctx, int64(count))
}

// RecordRequest records a completed API request.
func (m *Metrics) RecordRequest(ctx context.Context, route string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.requestCount.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}
