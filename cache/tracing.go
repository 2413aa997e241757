package cache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingTier wraps a tier and opens a span per operation.
//
// Spans are annotated with the namespace and the key's length, never the raw
// key: cache keys in this system are API key identifiers and must not leak
// into traces. Arguments and return values pass through unchanged, so a
// TracingTier composes with MetricsTier in either order.
type TracingTier struct {
	inner  Tier
	tracer trace.Tracer
}

// NewTracingTier wraps inner with span creation on the given tracer.
func NewTracingTier(inner Tier, tracer trace.Tracer) (*TracingTier, error) {
	if inner == nil {
		return nil, ErrNilTier
	}
	return &TracingTier{inner: inner, tracer: tracer}, nil
}

// Name implements Tier, forwarding the wrapped tier's name.
func (t *TracingTier) Name() string { return t.inner.Name() }

// Get forwards to the wrapped tier inside a span.
func (t *TracingTier) Get(ctx context.Context, namespace, key string) Result {
	ctx, span := t.startSpan(ctx, "cache.get", namespace, key)
	defer span.End()

	res := t.inner.Get(ctx, namespace, key)
	span.SetAttributes(attribute.String("cache.outcome", res.Status.String()))
	span.SetStatus(codes.Ok, "")
	return res
}

// Set forwards to the wrapped tier inside a span.
func (t *TracingTier) Set(ctx context.Context, namespace, key string, entry Entry) error {
	ctx, span := t.startSpan(ctx, "cache.set", namespace, key)
	defer span.End()

	err := t.inner.Set(ctx, namespace, key, entry)
	t.endStatus(span, err)
	return err
}

// Remove forwards to the wrapped tier inside a span.
func (t *TracingTier) Remove(ctx context.Context, namespace, key string) error {
	ctx, span := t.startSpan(ctx, "cache.remove", namespace, key)
	defer span.End()

	err := t.inner.Remove(ctx, namespace, key)
	t.endStatus(span, err)
	return err
}

func (t *TracingTier) startSpan(ctx context.Context, name, namespace, key string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.tier", t.inner.Name()),
			attribute.String("cache.namespace", namespace),
			attribute.Int("cache.key_length", len(key)),
		),
	)
}

func (t *TracingTier) endStatus(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return
	}
	span.SetStatus(codes.Ok, "")
}

// Ensure TracingTier implements Tier
var _ Tier = (*TracingTier)(nil)
