package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing for the core's two traced
// operations: tenant resolution and audit flushes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartResolve starts a span for a tenant resolution.
	StartResolve(ctx context.Context, tenant string) (context.Context, trace.Span)

	// StartFlush starts a span for a per-tenant audit flush.
	StartFlush(ctx context.Context, tenant string, entries int) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartResolve(ctx context.Context, tenant string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tenant.resolve",
		trace.WithAttributes(attribute.String("tenant", tenant)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) StartFlush(ctx context.Context, tenant string, entries int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "audit.flush",
		trace.WithAttributes(
			attribute.String("tenant", tenant),
			attribute.Int("entries", entries),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
