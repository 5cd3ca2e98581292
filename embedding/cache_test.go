package embedding

import (
	"context"
	"testing"
)

func TestMemoryCache_PutGet(t *testing.T) {
	cache := NewMemoryCache(10)
	ctx := context.Background()

	hash := ContentHash("some subtitle line")
	want := []float32{0.1, 0.2}

	if _, err := cache.Get(ctx, hash); err == nil {
		t.Fatal("expected cache miss")
	}

	if err := cache.Put(ctx, hash, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := cache.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("Get() = %v, want %v", got, want)
	}
}

func TestMemoryCache_ResetsWhenFull(t *testing.T) {
	cache := NewMemoryCache(2)
	ctx := context.Background()

	_ = cache.Put(ctx, "a", []float32{1})
	_ = cache.Put(ctx, "b", []float32{2})
	_ = cache.Put(ctx, "c", []float32{3})

	if cache.Len() != 1 {
		t.Errorf("expected reset to 1 entry, got %d", cache.Len())
	}
}

func TestContentHash_Stable(t *testing.T) {
	if ContentHash("hello") != ContentHash("hello") {
		t.Error("hash must be deterministic")
	}
	if ContentHash("hello") == ContentHash("world") {
		t.Error("different content must hash differently")
	}
}
