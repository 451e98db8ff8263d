package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dejobratic/orderflow/internal/telemetry"

func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

func AddSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

func AddSpanEvent(span trace.Span, eventName string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.AddEvent(eventName, trace.WithAttributes(attrs...))
}

// RecordSpanError marks the span as failed.
func RecordSpanError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSpanRejection notes a request refused for a business reason, such as
// an invalid cart or missing stock. The span status stays unset.
func RecordSpanRejection(span trace.Span, kind string, err error) {
	if span == nil || err == nil {
		return
	}
	span.SetAttributes(attribute.String("error.kind", kind))
	span.AddEvent("rejected", trace.WithAttributes(
		attribute.String("rejection.kind", kind),
		attribute.String("rejection.message", err.Error()),
	))
}

func SetSpanSuccess(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

func TraceID(ctx context.Context) string {
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.HasTraceID() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func SpanID(ctx context.Context) string {
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.HasSpanID() {
		return spanCtx.SpanID().String()
	}
	return ""
}
