package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrEntryName   = "entry.name"
	AttrEntryKind   = "entry.kind"
	AttrSourcePath  = "entry.source_path"
	AttrVersionKey  = "version.key"
	AttrSteps       = "rollback.steps"
	AttrUndoDepth   = "history.undo_depth"
	AttrRedoDepth   = "history.redo_depth"
	AttrStoreKey    = "store.key"
	AttrErrorType   = "error.type"
	SpanPrefixOp    = "registry."
	SpanPrefixStore = "store."
)

// Event names.
const (
	EventModuleLoaded     = "module.loaded"
	EventArtifactArchived = "artifact.archived"
	EventFileRestored     = "file.restored"
	EventInstalled        = "implementation.installed"
)

// StartOp opens a span for a registry operation on name. End it with Finish.
func StartOp(ctx context.Context, tracer trace.Tracer, op, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanPrefixOp+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(AttrEntryName, name)),
	)
}

// Finish records the outcome of err on span and ends it.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
