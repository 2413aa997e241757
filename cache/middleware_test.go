package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// runTierSequence drives a fixed sequence of operations against a tier and
// returns the observable results.
func runTierSequence(t *testing.T, tier Tier, clock *fakeClock) []Result {
	t.Helper()
	ctx := context.Background()

	if err := tier.Set(ctx, "key_by_id", "k1", Entry{Value: []byte("v1"), StoredAt: clock.Now()}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var results []Result
	results = append(results, tier.Get(ctx, "key_by_id", "k1"))
	results = append(results, tier.Get(ctx, "key_by_id", "missing"))

	if err := tier.Remove(ctx, "key_by_id", "k1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	results = append(results, tier.Get(ctx, "key_by_id", "k1"))
	return results
}

// TestDecorators_Transparency verifies that wrapping with metrics and tracing,
// in either order, produces identical results to the unwrapped tier.
func TestDecorators_Transparency(t *testing.T) {
	meter := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewManualReader()),
	).Meter("test")
	tracer := sdktrace.NewTracerProvider().Tracer("test")

	build := map[string]func(t *testing.T, clock *fakeClock) Tier{
		"bare": func(t *testing.T, clock *fakeClock) Tier {
			return newTestMemoryTier(t, DefaultWindows(), 10, clock)
		},
		"metrics": func(t *testing.T, clock *fakeClock) Tier {
			inner := newTestMemoryTier(t, DefaultWindows(), 10, clock)
			tier, err := NewMetricsTier(inner, meter)
			if err != nil {
				t.Fatalf("NewMetricsTier failed: %v", err)
			}
			return tier
		},
		"tracing": func(t *testing.T, clock *fakeClock) Tier {
			inner := newTestMemoryTier(t, DefaultWindows(), 10, clock)
			tier, err := NewTracingTier(inner, tracer)
			if err != nil {
				t.Fatalf("NewTracingTier failed: %v", err)
			}
			return tier
		},
		"metrics then tracing": func(t *testing.T, clock *fakeClock) Tier {
			inner := newTestMemoryTier(t, DefaultWindows(), 10, clock)
			m, err := NewMetricsTier(inner, meter)
			if err != nil {
				t.Fatalf("NewMetricsTier failed: %v", err)
			}
			tier, err := NewTracingTier(m, tracer)
			if err != nil {
				t.Fatalf("NewTracingTier failed: %v", err)
			}
			return tier
		},
		"tracing then metrics": func(t *testing.T, clock *fakeClock) Tier {
			inner := newTestMemoryTier(t, DefaultWindows(), 10, clock)
			tr, err := NewTracingTier(inner, tracer)
			if err != nil {
				t.Fatalf("NewTracingTier failed: %v", err)
			}
			tier, err := NewMetricsTier(tr, meter)
			if err != nil {
				t.Fatalf("NewMetricsTier failed: %v", err)
			}
			return tier
		},
	}

	clock := newFakeClock()
	want := runTierSequence(t, build["bare"](t, clock), clock)

	for name, builder := range build {
		if name == "bare" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			got := runTierSequence(t, builder(t, clock), clock)
			if len(got) != len(want) {
				t.Fatalf("result count = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].Status != want[i].Status {
					t.Errorf("result %d status = %v, want %v", i, got[i].Status, want[i].Status)
				}
				if !bytes.Equal(got[i].Entry.Value, want[i].Entry.Value) {
					t.Errorf("result %d value = %q, want %q", i, got[i].Entry.Value, want[i].Entry.Value)
				}
			}
		})
	}
}

func TestMetricsTier_RecordsOperations(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	clock := newFakeClock()
	inner := newTestMemoryTier(t, DefaultWindows(), 10, clock)
	tier, err := NewMetricsTier(inner, meter)
	if err != nil {
		t.Fatalf("NewMetricsTier failed: %v", err)
	}
	ctx := context.Background()

	_ = tier.Set(ctx, "key_by_id", "k1", Entry{Value: []byte("v"), StoredAt: clock.Now()})
	tier.Get(ctx, "key_by_id", "k1")
	tier.Get(ctx, "key_by_id", "missing")
	_ = tier.Remove(ctx, "key_by_id", "k1")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cache.tier.ops" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("cache.tier.ops has unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 4 {
		t.Errorf("cache.tier.ops total = %d, want 4", total)
	}
}

func TestTracingTier_RedactsKeys(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	clock := newFakeClock()
	inner := newTestMemoryTier(t, DefaultWindows(), 10, clock)
	tier, err := NewTracingTier(inner, tracer)
	if err != nil {
		t.Fatalf("NewTracingTier failed: %v", err)
	}

	secretKey := "sk-live-supersecret"
	tier.Get(context.Background(), "key_by_id", secretKey)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "cache.get" {
		t.Errorf("span name = %q, want cache.get", span.Name())
	}

	sawKeyLength := false
	for _, attr := range span.Attributes() {
		if attr.Value.AsString() == secretKey {
			t.Errorf("raw key leaked into span attribute %s", attr.Key)
		}
		if string(attr.Key) == "cache.key_length" {
			sawKeyLength = true
			if attr.Value.AsInt64() != int64(len(secretKey)) {
				t.Errorf("cache.key_length = %d, want %d", attr.Value.AsInt64(), len(secretKey))
			}
		}
	}
	if !sawKeyLength {
		t.Error("span should carry cache.key_length")
	}
}

func TestDecorators_NilInner(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("test")
	tracer := sdktrace.NewTracerProvider().Tracer("test")

	if _, err := NewMetricsTier(nil, meter); err != ErrNilTier {
		t.Error("NewMetricsTier(nil) should return ErrNilTier")
	}
	if _, err := NewTracingTier(nil, tracer); err != ErrNilTier {
		t.Error("NewTracingTier(nil) should return ErrNilTier")
	}
}

func TestDecorators_InsideTiered(t *testing.T) {
	// Decorated tiers behave identically inside the policy engine.
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	clock := newFakeClock()
	windows := Windows{Fresh: time.Minute, Stale: 24 * time.Hour}
	inner := newTestMemoryTier(t, windows, 10, clock)
	tier, err := NewMetricsTier(inner, meter)
	if err != nil {
		t.Fatalf("NewMetricsTier failed: %v", err)
	}
	c, err := NewTiered(nil, tier)
	if err != nil {
		t.Fatalf("NewTiered failed: %v", err)
	}
	c.now = clock.Now
	ctx := context.Background()

	_ = c.Set(ctx, "key_by_id", "k1", []byte("v"))
	if res := c.Get(ctx, "key_by_id", "k1", nil); res.Status != StatusFresh {
		t.Errorf("Get through decorated tier = %v, want fresh", res.Status)
	}
}
