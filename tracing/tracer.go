// Package tracing provides a lightweight parent/child span tracker used for
// diagnostic logging of agent operations. It is not a distributed tracing
// system: spans are logged at debug level when they end and carry no
// correctness responsibilities.
package tracing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span represents a single logical operation.
type Span struct {
	traceID   string
	spanID    string
	name      string
	startTime time.Time
	parent    *Span
	metadata  map[string]any
}

// TraceID returns the trace this span belongs to.
func (s *Span) TraceID() string { return s.traceID }

// SpanID returns the span's unique identifier.
func (s *Span) SpanID() string { return s.spanID }

// Tracer creates spans and logs them on completion.
type Tracer struct {
	enabled bool
}

// NewTracer creates a new tracer. When disabled, all operations are no-ops.
func NewTracer(enabled bool) *Tracer {
	return &Tracer{enabled: enabled}
}

type spanKey struct{}

// StartSpan begins a new span. If the context already carries a span, the new
// span becomes its child and shares its trace ID. The returned context carries
// the new span.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if !t.enabled {
		return ctx, &Span{name: name}
	}

	span := &Span{
		spanID:    uuid.NewString(),
		name:      name,
		startTime: time.Now(),
		metadata:  make(map[string]any),
	}

	if parent := SpanFromContext(ctx); parent != nil {
		span.parent = parent
		span.traceID = parent.traceID
	} else {
		span.traceID = uuid.NewString()
	}

	return context.WithValue(ctx, spanKey{}, span), span
}

// End completes the span and logs it.
func (t *Tracer) End(span *Span) {
	if !t.enabled || span == nil || span.startTime.IsZero() {
		return
	}

	attrs := []any{
		"name", span.name,
		"trace_id", span.traceID,
		"span_id", span.spanID,
		"duration_ms", time.Since(span.startTime).Milliseconds(),
	}
	if span.parent != nil {
		attrs = append(attrs, "parent_span_id", span.parent.spanID)
	}
	if len(span.metadata) > 0 {
		attrs = append(attrs, "metadata", span.metadata)
	}
	slog.Debug("span completed", attrs...)
}

// SetMetadata attaches a key/value pair to the span.
func (t *Tracer) SetMetadata(span *Span, key string, value any) {
	if !t.enabled || span == nil || span.metadata == nil {
		return
	}
	span.metadata[key] = value
}

// RecordError records an error on the span.
func (t *Tracer) RecordError(span *Span, err error) {
	if !t.enabled || span == nil || span.metadata == nil || err == nil {
		return
	}
	span.metadata["error"] = err.Error()
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey{}).(*Span); ok {
		return span
	}
	return nil
}

// WithSpan wraps fn in a span, recording any returned error.
func WithSpan(ctx context.Context, tracer *Tracer, name string, fn func(context.Context) error) error {
	if !tracer.enabled {
		return fn(ctx)
	}

	ctx, span := tracer.StartSpan(ctx, name)
	defer tracer.End(span)

	err := fn(ctx)
	if err != nil {
		tracer.RecordError(span, err)
	}
	return err
}
