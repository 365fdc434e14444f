package tiered

import (
	"context"
	"testing"
	"time"
)

// memCache is a minimal in-memory cache.Cache for tests.
type memCache struct {
	data map[string][]byte
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestGetL1Hit(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l1.data["k"] = []byte("v1")
	l2.data["k"] = []byte("v2")

	c := New(l1, l2, time.Minute)
	val, ok, err := c.Get(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(val) != "v1" {
		t.Errorf("expected L1 value, got %s", val)
	}
}

func TestGetL2HitBackfillsL1(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.data["k"] = []byte("v2")

	c := New(l1, l2, time.Minute)
	val, ok, _ := c.Get(context.Background(), "k")
	if !ok || string(val) != "v2" {
		t.Fatalf("expected L2 value, got ok=%v val=%s", ok, val)
	}
	if _, found := l1.data["k"]; !found {
		t.Error("expected L1 backfill")
	}
}

func TestSetAndDeleteBothLevels(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := New(l1, l2, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["k"]; !ok {
		t.Error("expected value in L1")
	}
	if _, ok := l2.data["k"]; !ok {
		t.Error("expected value in L2")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["k"]; ok {
		t.Error("expected L1 delete")
	}
	if _, ok := l2.data["k"]; ok {
		t.Error("expected L2 delete")
	}
}

func TestGetMissBothLevels(t *testing.T) {
	c := New(newMemCache(), newMemCache(), time.Minute)
	_, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected miss")
	}
}
