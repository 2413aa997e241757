package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func BenchmarkMemoryTier_Get(b *testing.B) {
	tier, err := NewMemoryTier(DefaultWindows(), 1024)
	if err != nil {
		b.Fatalf("NewMemoryTier failed: %v", err)
	}
	ctx := context.Background()
	_ = tier.Set(ctx, "key_by_id", "k1", Entry{Value: []byte("v"), StoredAt: time.Now()})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tier.Get(ctx, "key_by_id", "k1")
	}
}

func BenchmarkMemoryTier_Set(b *testing.B) {
	tier, err := NewMemoryTier(DefaultWindows(), 1024)
	if err != nil {
		b.Fatalf("NewMemoryTier failed: %v", err)
	}
	ctx := context.Background()
	entry := Entry{Value: []byte("v"), StoredAt: time.Now()}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tier.Set(ctx, "key_by_id", fmt.Sprintf("k%d", i%2048), entry)
	}
}

func BenchmarkTiered_GetFresh(b *testing.B) {
	tier, err := NewMemoryTier(DefaultWindows(), 1024)
	if err != nil {
		b.Fatalf("NewMemoryTier failed: %v", err)
	}
	c, err := NewTiered(nil, tier)
	if err != nil {
		b.Fatalf("NewTiered failed: %v", err)
	}
	ctx := context.Background()
	_ = c.Set(ctx, "key_by_id", "k1", []byte("v"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(ctx, "key_by_id", "k1", nil)
	}
}

func BenchmarkTiered_GetParallel(b *testing.B) {
	tier, err := NewMemoryTier(DefaultWindows(), 1024)
	if err != nil {
		b.Fatalf("NewMemoryTier failed: %v", err)
	}
	c, err := NewTiered(nil, tier)
	if err != nil {
		b.Fatalf("NewTiered failed: %v", err)
	}
	ctx := context.Background()
	_ = c.Set(ctx, "key_by_id", "k1", []byte("v"))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Get(ctx, "key_by_id", "k1", nil)
		}
	})
}
