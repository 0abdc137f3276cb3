package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOptions configures a telemetry span.
type SpanOptions struct {
	Name       string
	Attributes []attribute.KeyValue
	// EndWhenDone ends the span automatically on success. Error paths
	// always end the span, since there is nothing further to record.
	EndWhenDone bool
}

// RecordSpan runs fn inside a span named opts.Name, recording any error
// returned and ending the span according to opts.EndWhenDone.
func RecordSpan[T any](
	ctx context.Context,
	tracer trace.Tracer,
	opts SpanOptions,
	fn func(context.Context, trace.Span) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name, trace.WithAttributes(opts.Attributes...))

	result, err := fn(ctx, span)
	if err != nil {
		RecordErrorOnSpan(span, err)
		span.End()
		var zero T
		return zero, err
	}

	if opts.EndWhenDone {
		span.End()
	}

	return result, nil
}

// RecordErrorOnSpan records err on span and marks the span as errored.
func RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RequestAttributes returns the base set of attributes every request span
// carries: routed model, wire API, and whether the call streams.
func RequestAttributes(routedModel, wireAPI string, streaming bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("bridge.model", routedModel),
		attribute.String("bridge.wire_api", wireAPI),
		attribute.Bool("bridge.streaming", streaming),
	}
}
