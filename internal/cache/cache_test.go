package cache

import (
	"errors"
	"reflect"
	"testing"
)

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []int
	c := New[int, string](2, func(k int, _ string) { evicted = append(evicted, k) })

	c.Set(1, "a")
	c.Set(2, "b")
	if _, ok := c.Get(1); !ok {
		t.Fatal("key 1 missing")
	}
	c.Set(3, "c")

	if !reflect.DeepEqual(evicted, []int{2}) {
		t.Errorf("evicted = %v, want [2]", evicted)
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []int{3, 1}) {
		t.Errorf("Keys() = %v, want [3 1]", got)
	}
}

func TestCacheSetReplaces(t *testing.T) {
	var evicted []string
	c := New[string, string](4, func(_ string, v string) { evicted = append(evicted, v) })
	c.Set("k", "old")
	c.Set("k", "new")

	if v, _ := c.Get("k"); v != "new" {
		t.Errorf("Get = %q, want new", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if !reflect.DeepEqual(evicted, []string{"old"}) {
		t.Errorf("evicted = %v", evicted)
	}
}

func TestCacheGetOrCreate(t *testing.T) {
	c := New[int, int](0, nil)
	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrCreate(7, create)
		if err != nil || v != 42 {
			t.Fatalf("GetOrCreate = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	errBoom := errors.New("boom")
	if _, err := c.GetOrCreate(8, func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want boom", err)
	}
	if c.Contains(8) {
		t.Error("failed create must not be cached")
	}
}

func TestCachePurgeAndDelete(t *testing.T) {
	var evicted []int
	c := New[int, int](0, func(k, _ int) { evicted = append(evicted, k) })
	for i := 1; i <= 3; i++ {
		c.Set(i, i)
	}
	if !c.Delete(2) || c.Delete(2) {
		t.Error("Delete should succeed once")
	}
	c.Purge()
	if !reflect.DeepEqual(evicted, []int{2, 1, 3}) {
		t.Errorf("evicted = %v, want [2 1 3]", evicted)
	}
	if c.Len() != 0 {
		t.Errorf("Len after Purge = %d", c.Len())
	}
}
