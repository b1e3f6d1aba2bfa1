// Package observability provides OpenTelemetry tracing and metrics for
// enrichment work, plus Server-Timing helpers for the HTTP layer.
//
// Everything is opt-in: without configured providers the no-op
// implementations are used.
package observability

import "go.opentelemetry.io/otel/attribute"

// Instrumentation identity constants
const (
	TracerName = "github.com/lepinkainen/libris"
	MeterName  = "github.com/lepinkainen/libris"
)

// Attribute keys.
const (
	AttrBookID     = "libris.book_id"
	AttrJobID      = "libris.job_id"
	AttrIdentifier = "libris.identifier"
	AttrOperation  = "libris.operation"
	AttrStatus     = "libris.status"
	AttrCandidates = "libris.candidates"
)

// Operation names.
const (
	OpQueue     = "queue"
	OpProcess   = "process"
	OpReconcile = "reconcile"
	OpApply     = "apply"
	OpReject    = "reject"
	OpSearch    = "search"
	OpPreview   = "preview"
)

func BookIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrBookID, id)
}

func JobIDAttr(id int64) attribute.KeyValue {
	return attribute.Int64(AttrJobID, id)
}

func IdentifierAttr(identifier string) attribute.KeyValue {
	return attribute.String(AttrIdentifier, identifier)
}

func OperationAttr(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

func StatusAttr(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}
