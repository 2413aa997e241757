package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable clock shared across tiers in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestMemoryTier(t *testing.T, windows Windows, capacity int, clock *fakeClock) *MemoryTier {
	t.Helper()
	tier, err := NewMemoryTier(windows, capacity)
	if err != nil {
		t.Fatalf("NewMemoryTier failed: %v", err)
	}
	tier.now = clock.Now
	return tier
}

func TestNewMemoryTier_Validation(t *testing.T) {
	if _, err := NewMemoryTier(Windows{Fresh: time.Hour, Stale: time.Minute}, 10); err == nil {
		t.Error("expected error for fresh > stale")
	}
	if _, err := NewMemoryTier(DefaultWindows(), 0); err != ErrInvalidCapacity {
		t.Error("expected ErrInvalidCapacity for zero capacity")
	}
}

func TestMemoryTier_GetSetRemove(t *testing.T) {
	clock := newFakeClock()
	tier := newTestMemoryTier(t, DefaultWindows(), 10, clock)
	ctx := context.Background()

	// Miss on empty tier
	if res := tier.Get(ctx, "key_by_id", "k1"); res.Status != StatusMiss {
		t.Fatalf("Get on empty tier = %v, want miss", res.Status)
	}

	entry := Entry{Value: []byte(`{"id":"k1"}`), StoredAt: clock.Now()}
	if err := tier.Set(ctx, "key_by_id", "k1", entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	res := tier.Get(ctx, "key_by_id", "k1")
	if res.Status != StatusFresh {
		t.Errorf("Get after Set = %v, want fresh", res.Status)
	}
	if !bytes.Equal(res.Entry.Value, entry.Value) {
		t.Errorf("Get returned %q, want %q", res.Entry.Value, entry.Value)
	}
	if !res.Entry.StoredAt.Equal(entry.StoredAt) {
		t.Error("StoredAt should round-trip unchanged")
	}

	if err := tier.Remove(ctx, "key_by_id", "k1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if res := tier.Get(ctx, "key_by_id", "k1"); res.Status != StatusMiss {
		t.Errorf("Get after Remove = %v, want miss", res.Status)
	}

	// Remove is idempotent
	if err := tier.Remove(ctx, "key_by_id", "k1"); err != nil {
		t.Errorf("Remove on absent key should not error, got: %v", err)
	}
}

func TestMemoryTier_NamespaceIsolation(t *testing.T) {
	clock := newFakeClock()
	tier := newTestMemoryTier(t, DefaultWindows(), 10, clock)
	ctx := context.Background()

	_ = tier.Set(ctx, "key_by_id", "shared", Entry{Value: []byte("a"), StoredAt: clock.Now()})

	if res := tier.Get(ctx, "api_by_id", "shared"); res.Status != StatusMiss {
		t.Error("same key in a different namespace must miss")
	}
}

func TestMemoryTier_FreshStaleMiss(t *testing.T) {
	clock := newFakeClock()
	windows := Windows{Fresh: time.Minute, Stale: 24 * time.Hour}
	tier := newTestMemoryTier(t, windows, 10, clock)
	ctx := context.Background()

	_ = tier.Set(ctx, "key_by_id", "k1", Entry{Value: []byte("v"), StoredAt: clock.Now()})

	clock.Advance(30 * time.Second)
	if res := tier.Get(ctx, "key_by_id", "k1"); res.Status != StatusFresh {
		t.Errorf("at 30s: %v, want fresh", res.Status)
	}

	clock.Advance(time.Hour)
	if res := tier.Get(ctx, "key_by_id", "k1"); res.Status != StatusStale {
		t.Errorf("at ~1h: %v, want stale", res.Status)
	}

	clock.Advance(25 * time.Hour)
	if res := tier.Get(ctx, "key_by_id", "k1"); res.Status != StatusMiss {
		t.Errorf("beyond stale window: %v, want miss", res.Status)
	}
	if tier.Len() != 0 {
		t.Error("entry beyond the stale window should be dropped on read")
	}
}

func TestMemoryTier_NeverDowngrade(t *testing.T) {
	clock := newFakeClock()
	tier := newTestMemoryTier(t, DefaultWindows(), 10, clock)
	ctx := context.Background()

	t1 := clock.Now()
	t0 := t1.Add(-10 * time.Second)

	_ = tier.Set(ctx, "key_by_id", "k1", Entry{Value: []byte("v1"), StoredAt: t1})
	_ = tier.Set(ctx, "key_by_id", "k1", Entry{Value: []byte("v2"), StoredAt: t0})

	res := tier.Get(ctx, "key_by_id", "k1")
	if !bytes.Equal(res.Entry.Value, []byte("v1")) {
		t.Errorf("older write clobbered newer value: got %q", res.Entry.Value)
	}

	// Equal-or-newer timestamps do overwrite.
	_ = tier.Set(ctx, "key_by_id", "k1", Entry{Value: []byte("v3"), StoredAt: t1})
	res = tier.Get(ctx, "key_by_id", "k1")
	if !bytes.Equal(res.Entry.Value, []byte("v3")) {
		t.Errorf("same-age write should overwrite: got %q", res.Entry.Value)
	}
}

func TestMemoryTier_LRUEviction(t *testing.T) {
	clock := newFakeClock()
	tier := newTestMemoryTier(t, DefaultWindows(), 3, clock)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		key := fmt.Sprintf("k%d", i)
		_ = tier.Set(ctx, "key_by_id", key, Entry{Value: []byte(key), StoredAt: clock.Now()})
	}

	// Touch k1 so k2 becomes least recently used.
	_ = tier.Get(ctx, "key_by_id", "k1")

	_ = tier.Set(ctx, "key_by_id", "k4", Entry{Value: []byte("k4"), StoredAt: clock.Now()})

	if tier.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tier.Len())
	}
	if res := tier.Get(ctx, "key_by_id", "k2"); res.Status != StatusMiss {
		t.Error("k2 should have been evicted as least recently used")
	}
	for _, key := range []string{"k1", "k3", "k4"} {
		if res := tier.Get(ctx, "key_by_id", key); res.Status == StatusMiss {
			t.Errorf("%s should have survived eviction", key)
		}
	}
}

func TestMemoryTier_AbsentMarker(t *testing.T) {
	clock := newFakeClock()
	tier := newTestMemoryTier(t, DefaultWindows(), 10, clock)
	ctx := context.Background()

	_ = tier.Set(ctx, "key_by_id", "gone", Entry{Absent: true, StoredAt: clock.Now()})

	res := tier.Get(ctx, "key_by_id", "gone")
	if res.Status != StatusFresh {
		t.Errorf("absent marker status = %v, want fresh", res.Status)
	}
	if !res.Entry.Absent {
		t.Error("absent marker lost on round-trip")
	}
}

func TestMemoryTier_ConcurrentAccess(t *testing.T) {
	tier, err := NewMemoryTier(DefaultWindows(), 64)
	if err != nil {
		t.Fatalf("NewMemoryTier failed: %v", err)
	}
	ctx := context.Background()

	const goroutines = 50
	const ops = 500

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", id%8)
			for j := 0; j < ops; j++ {
				switch j % 3 {
				case 0:
					_ = tier.Set(ctx, "key_by_id", key, Entry{Value: []byte("v"), StoredAt: time.Now()})
				case 1:
					_ = tier.Get(ctx, "key_by_id", key)
				case 2:
					_ = tier.Remove(ctx, "key_by_id", key)
				}
			}
		}(i)
	}
	wg.Wait()
}
