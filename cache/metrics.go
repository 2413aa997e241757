package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsTier wraps a tier and records operation counts and latency.
//
// Emission is in-process aggregation through the OpenTelemetry meter, so the
// wrapped call is never blocked on a metrics backend. Arguments and return
// values pass through unchanged.
type MetricsTier struct {
	inner        Tier
	opCount      metric.Int64Counter
	errCount     metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetricsTier wraps inner with metrics recording on the given meter.
func NewMetricsTier(inner Tier, meter metric.Meter) (*MetricsTier, error) {
	if inner == nil {
		return nil, ErrNilTier
	}

	opCount, err := meter.Int64Counter(
		"cache.tier.ops",
		metric.WithDescription("Total number of cache tier operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	errCount, err := meter.Int64Counter(
		"cache.tier.errors",
		metric.WithDescription("Total number of cache tier operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.tier.duration_ms",
		metric.WithDescription("Cache tier operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsTier{
		inner:        inner,
		opCount:      opCount,
		errCount:     errCount,
		durationHist: durationHist,
	}, nil
}

// Name implements Tier, forwarding the wrapped tier's name.
func (t *MetricsTier) Name() string { return t.inner.Name() }

// Get forwards to the wrapped tier and records the outcome.
func (t *MetricsTier) Get(ctx context.Context, namespace, key string) Result {
	start := time.Now()
	res := t.inner.Get(ctx, namespace, key)
	t.record(ctx, "get", namespace, res.Status.String(), time.Since(start), nil)
	return res
}

// Set forwards to the wrapped tier and records the outcome.
func (t *MetricsTier) Set(ctx context.Context, namespace, key string, entry Entry) error {
	start := time.Now()
	err := t.inner.Set(ctx, namespace, key, entry)
	t.record(ctx, "set", namespace, outcome(err), time.Since(start), err)
	return err
}

// Remove forwards to the wrapped tier and records the outcome.
func (t *MetricsTier) Remove(ctx context.Context, namespace, key string) error {
	start := time.Now()
	err := t.inner.Remove(ctx, namespace, key)
	t.record(ctx, "remove", namespace, outcome(err), time.Since(start), err)
	return err
}

func (t *MetricsTier) record(ctx context.Context, op, namespace, outcome string, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("cache.op", op),
		attribute.String("cache.tier", t.inner.Name()),
		attribute.String("cache.namespace", namespace),
		attribute.String("cache.outcome", outcome),
	)

	t.opCount.Add(ctx, 1, opt)
	if err != nil {
		t.errCount.Add(ctx, 1, opt)
	}
	t.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Ensure MetricsTier implements Tier
var _ Tier = (*MetricsTier)(nil)
