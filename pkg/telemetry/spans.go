package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used for heapsnap spans.
const InstrumentationName = "github.com/heap-snapshot"

// Span attribute keys.
const (
	AttrDumpKey  = attribute.Key("heapsnap.dump.key")
	AttrIDSize   = attribute.Key("heapsnap.dump.id_size")
	AttrObjects  = attribute.Key("heapsnap.objects")
	AttrClasses  = attribute.Key("heapsnap.classes")
	AttrRoots    = attribute.Key("heapsnap.roots")
	AttrBaseline = attribute.Key("heapsnap.baseline")
)

// Tracer returns the tracer from the global provider, so spans follow
// whatever Init installed.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts an internal span with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return Tracer().Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithAttributes(attrs...),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
