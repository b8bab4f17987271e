package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/alucardeht/membank/internal/model"
)

func testMemory(key string) *model.Memory {
	return &model.Memory{
		ID:        model.NewID(),
		ProjectID: "p1",
		Key:       key,
		Type:      model.TypeFeature,
		Content:   "content",
	}
}

func TestSetGet(t *testing.T) {
	c := New(10, time.Hour)

	mem := testMemory("k1")
	c.Set(Key("p1", "k1"), mem)

	got, ok := c.Get(Key("p1", "k1"))
	if !ok {
		t.Fatal("expected hit")
	}
	if got.ID != mem.ID {
		t.Errorf("wrong record: %+v", got)
	}
}

func TestGet_Miss(t *testing.T) {
	c := New(10, time.Hour)

	if _, ok := c.Get("p1:missing"); ok {
		t.Error("expected miss")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss recorded, got %d", stats.Misses)
	}
}

func TestLRUEviction(t *testing.T) {
	const n = 5
	c := New(n, time.Hour)

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("p1:k%d", i)
		c.Set(key, testMemory(key))
	}

	// Touch k0 so k1 becomes the least recently used.
	if _, ok := c.Get("p1:k0"); !ok {
		t.Fatal("k0 should be cached")
	}

	c.Set("p1:extra", testMemory("extra"))

	if _, ok := c.Get("p1:k1"); ok {
		t.Error("k1 should have been evicted as least recently used")
	}
	for _, key := range []string{"p1:k0", "p1:k2", "p1:k3", "p1:k4", "p1:extra"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, time.Minute)

	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.Set("p1:k1", testMemory("k1"))

	clock = clock.Add(2 * time.Minute)
	if _, ok := c.Get("p1:k1"); ok {
		t.Error("entry should have expired")
	}
	if c.Stats().Size != 0 {
		t.Error("expired entry should be removed on access")
	}
}

func TestTouchExtendsFreshness(t *testing.T) {
	c := New(10, time.Minute)

	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.Set("p1:k1", testMemory("k1"))

	// Keep touching just inside the TTL; each access must push expiry out.
	for i := 0; i < 4; i++ {
		clock = clock.Add(45 * time.Second)
		if !c.Has("p1:k1") {
			t.Fatalf("entry expired despite access %d inside the TTL", i)
		}
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New(10, time.Hour)

	c.Set("p1:k1", testMemory("k1"))
	c.Set("p1:k2", testMemory("k2"))

	c.Delete("p1:k1")
	if c.Has("p1:k1") {
		t.Error("deleted entry still present")
	}

	c.Clear()
	if c.Stats().Size != 0 {
		t.Error("clear should empty the cache")
	}
}

func TestStats(t *testing.T) {
	c := New(100, time.Hour)

	c.Set("p1:k1", testMemory("k1"))
	c.Get("p1:k1")
	c.Get("p1:nope")

	stats := c.Stats()
	if stats.Size != 1 || stats.MaxEntries != 100 {
		t.Errorf("unexpected size stats: %+v", stats)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected hit/miss stats: %+v", stats)
	}
	if stats.TTLMillis != time.Hour.Milliseconds() {
		t.Errorf("unexpected ttl: %d", stats.TTLMillis)
	}
}
