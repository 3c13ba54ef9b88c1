package cache

import (
	"testing"

	"daybook/internal"
)

func sheet(name string) *internal.Sheet {
	return &internal.Sheet{Name: name}
}

func TestSheetCacheEvictsOldest(t *testing.T) {
	c := New(2)
	c.Put("a", sheet("a"))
	c.Put("b", sheet("b"))
	c.Put("c", sheet("c"))

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry survived")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("b evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("len=%d", c.Len())
	}
}

func TestSheetCacheGetPromotes(t *testing.T) {
	c := New(2)
	c.Put("a", sheet("a"))
	c.Put("b", sheet("b"))
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Put("c", sheet("c"))

	if _, ok := c.Get("a"); !ok {
		t.Fatal("promoted entry evicted")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("stale entry survived")
	}
}

func TestSheetCachePutReplaces(t *testing.T) {
	c := New(2)
	c.Put("a", sheet("old"))
	c.Put("a", sheet("new"))
	got, ok := c.Get("a")
	if !ok || got.Name != "new" {
		t.Fatalf("got=%+v ok=%v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d", c.Len())
	}
}

func TestSheetCacheKeysOrder(t *testing.T) {
	c := New(3)
	c.Put("a", sheet("a"))
	c.Put("b", sheet("b"))
	c.Get("a")
	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("keys=%v", keys)
	}
}

func TestKey(t *testing.T) {
	if Key("주문서_0812", "Sheet1") != "주문서_0812_Sheet1" {
		t.Fatal("key format changed")
	}
}
