package cache

import (
	"testing"
	"time"
)

func TestSetGetDelete(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("empty cache returned a value")
	}

	c.Set("a", 1, 0)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("get a: %v %v", v, ok)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	c.Set("a", 1, 10*time.Millisecond)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry still served")
	}
}

func TestClear(t *testing.T) {
	c := NewInMemoryCache[int, string](time.Minute)
	c.Set(1, "a", 0)
	c.Set(2, "b", 0)
	if c.Size() != 2 {
		t.Fatalf("size: %d", c.Size())
	}
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("size after clear: %d", c.Size())
	}
}
