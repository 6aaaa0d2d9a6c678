package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBOMExportKeyIsTenantScoped(t *testing.T) {
	t.Parallel()

	if BOMExportKey(1, 7) == BOMExportKey(2, 7) {
		t.Fatal("keys for different owners must differ")
	}
	if got := BOMExportKey(3, 9); got != "platecost:bom:3:9:xlsx" {
		t.Fatalf("BOMExportKey = %q", got)
	}
}

func TestNoopAlwaysMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var store Store = Noop{}
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get error = %v, want ErrMiss", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestMemoryRoundTripAndExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemory()
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, "a", []byte("xlsx"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, "a")
	if err != nil || string(got) != "xlsx" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	got[0] = 'X'
	again, _ := store.Get(ctx, "a")
	if string(again) != "xlsx" {
		t.Fatal("cached bytes must not alias caller slices")
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired Get error = %v", err)
	}

	_ = store.Set(ctx, "b", []byte("1"), 0)
	_ = store.Delete(ctx, "b", "missing")
	if _, err := store.Get(ctx, "b"); !errors.Is(err, ErrMiss) {
		t.Fatalf("deleted Get error = %v", err)
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := Connect(context.Background(), "not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}
