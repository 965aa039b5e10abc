package cache

import (
	"reflect"
	"testing"
)

func keysOf[K comparable, V any](items []Item[K, V]) []K {
	out := make([]K, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}

func TestLRUOrder(t *testing.T) {
	c := NewLRU[string, int](3, 2)

	c.Put("a", &Entry[int]{Value: 1})
	c.Put("b", &Entry[int]{Value: 2})
	c.Put("c", &Entry[int]{Value: 3})

	if got := c.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Expected insertion order, got %v", got)
	}

	// Get moves to the back, Peek does not
	if e, ok := c.Get("a"); !ok || e.Value != 1 {
		t.Fatalf("Expected a=1, got %v %v", e, ok)
	}
	if _, ok := c.Peek("b"); !ok {
		t.Fatalf("Expected b to be cached")
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Errorf("Expected [b c a] after Get(a), got %v", got)
	}

	// replacing an entry moves it to the back as well
	c.Put("b", &Entry[int]{Value: 20, Dirty: true})
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("Expected [c a b] after Put(b), got %v", got)
	}
	if e, _ := c.Peek("b"); e.Value != 20 || !e.Dirty {
		t.Errorf("Expected replaced entry, got %+v", e)
	}
}

func TestLRUEvictionCandidates(t *testing.T) {
	c := NewLRU[int, int](3, 2)
	for i := 0; i < 3; i++ {
		c.Put(i, &Entry[int]{Value: i})
	}
	if c.Overflowing() || c.EvictionCandidates() != nil {
		t.Fatalf("Expected no eviction at max size")
	}

	c.Put(3, &Entry[int]{Value: 3})
	if !c.Overflowing() {
		t.Fatalf("Expected cache to overflow")
	}
	if got := keysOf(c.EvictionCandidates()); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Expected candidates [0 1], got %v", got)
	}

	// candidates are not removed by the cache itself
	if c.Len() != 4 {
		t.Errorf("Expected 4 entries, got %d", c.Len())
	}

	if got := keysOf(c.Oldest(100)); len(got) != 4 {
		t.Errorf("Expected Oldest to be capped at Len, got %v", got)
	}
}

func TestLRUDirtyItems(t *testing.T) {
	c := NewLRU[string, string](10, 5)
	c.Put("clean", &Entry[string]{Value: "x", Persisted: true})
	c.Put("dirty-1", &Entry[string]{Value: "y", Dirty: true})
	c.Put("dirty-2", &Entry[string]{Value: "z", Dirty: true})

	if got := keysOf(c.DirtyItems()); !reflect.DeepEqual(got, []string{"dirty-1", "dirty-2"}) {
		t.Errorf("Expected dirty items [dirty-1 dirty-2], got %v", got)
	}

	if e, ok := c.Remove("dirty-1"); !ok || e.Value != "y" {
		t.Errorf("Expected Remove to return the entry, got %v %v", e, ok)
	}
	if c.Has("dirty-1") {
		t.Errorf("Expected dirty-1 to be removed")
	}
	if _, ok := c.Remove("dirty-1"); ok {
		t.Errorf("Expected second Remove to report false")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", c.Len())
	}
}

func TestLRUDisabled(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	if c.Enabled() {
		t.Errorf("Expected maxSize 0 to disable the cache")
	}
	if c.BatchSize() != 1 {
		t.Errorf("Expected default batch size 1, got %d", c.BatchSize())
	}
	c.Put("a", &Entry[int]{})
	if !c.Overflowing() {
		t.Errorf("Expected any entry to overflow a disabled cache")
	}
}
