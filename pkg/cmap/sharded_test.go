package cmap

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	m := New[string, int]()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if len(m.shards) != DefaultShardCount {
		t.Errorf("shard count = %d, want %d", len(m.shards), DefaultShardCount)
	}
}

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},   // invalid → default
		{-1, DefaultShardCount},  // invalid → default
		{3, DefaultShardCount},   // not power of 2 → default
		{1, 1},                   // power of 2
		{2, 2},                   // power of 2
		{4, 4},                   // power of 2
		{8, 8},                   // power of 2
		{16, 16},                 // power of 2
		{32, 32},                 // power of 2
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if len(m.shards) != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, len(m.shards), tt.expected)
			}
		})
	}
}

func TestSetAndGet(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)
	m.Set("key2", 200)

	val, ok := m.Get("key1")
	if !ok || val != 100 {
		t.Errorf("Get(key1) = (%d, %v), want (100, true)", val, ok)
	}

	val, ok = m.Get("key2")
	if !ok || val != 200 {
		t.Errorf("Get(key2) = (%d, %v), want (200, true)", val, ok)
	}

	val, ok = m.Get("nonexistent")
	if ok {
		t.Errorf("Get(nonexistent) = (%d, %v), want (0, false)", val, ok)
	}
}

func TestDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)
	m.Delete("key1")

	_, ok := m.Get("key1")
	if ok {
		t.Error("key1 should not exist after deletion")
	}

	// Delete non-existent key should not panic
	m.Delete("nonexistent")
}

func TestHas(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)

	if !m.Has("key1") {
		t.Error("Has(key1) should return true")
	}

	if m.Has("nonexistent") {
		t.Error("Has(nonexistent) should return false")
	}
}

func TestCount(t *testing.T) {
	m := New[string, int]()

	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}

	m.Set("key1", 1)
	m.Set("key2", 2)
	m.Set("key3", 3)

	if m.Count() != 3 {
		t.Errorf("Count() = %d, want 3", m.Count())
	}

	m.Delete("key2")
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
}

func TestClear(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 1)
	m.Set("key2", 2)
	m.Clear()

	if m.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", m.Count())
	}
}

func TestOverwrite(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)
	m.Set("key1", 200)

	val, ok := m.Get("key1")
	if !ok || val != 200 {
		t.Errorf("Get(key1) = (%d, %v), want (200, true)", val, ok)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[string, int]()
	var wg sync.WaitGroup
	numGoroutines := 100
	numOps := 1000

	// Concurrent writes
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				m.Set(strconv.Itoa(base*numOps+j), j)
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != numGoroutines*numOps {
		t.Errorf("Count() = %d, want %d", m.Count(), numGoroutines*numOps)
	}

	// Concurrent reads
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				m.Get(strconv.Itoa(base*numOps + j))
			}
		}(i)
	}
	wg.Wait()

	// Concurrent mixed operations
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := strconv.Itoa(base*numOps + j)
				m.Set(key, j*2)
				m.Get(key)
				m.Has(key)
			}
		}(i)
	}
	wg.Wait()
}

func TestShardCount(t *testing.T) {
	m := NewWithShards[string, int](8)
	if m.ShardCount() != 8 {
		t.Errorf("ShardCount() = %d, want 8", m.ShardCount())
	}
}

func TestStructValue(t *testing.T) {
	type Person struct {
		Name string
		Age  int
	}

	m := New[string, Person]()

	m.Set("person1", Person{Name: "Alice", Age: 30})
	m.Set("person2", Person{Name: "Bob", Age: 25})

	val, ok := m.Get("person1")
	if !ok || val.Name != "Alice" || val.Age != 30 {
		t.Errorf("Get(person1) = (%+v, %v), want ({Alice 30}, true)", val, ok)
	}
}

func TestPointerValue(t *testing.T) {
	type Item struct {
		ID   int
		Data string
	}

	m := New[string, *Item]()

	item := &Item{ID: 1, Data: "test"}
	m.Set("item1", item)

	retrieved, ok := m.Get("item1")
	if !ok || retrieved != item {
		t.Errorf("Retrieved pointer is different from original")
	}

	// Modify through pointer
	retrieved.Data = "modified"

	retrieved2, _ := m.Get("item1")
	if retrieved2.Data != "modified" {
		t.Error("Pointer modification not reflected")
	}
}

func TestSwap(t *testing.T) {
	m := New[string, int]()

	if _, ok := m.Swap("k", 1); ok {
		t.Error("Swap on a missing key should report no previous value")
	}
	prev, ok := m.Swap("k", 2)
	if !ok || prev != 1 {
		t.Errorf("Swap() = (%d, %v), want (1, true)", prev, ok)
	}
	if v, _ := m.Get("k"); v != 2 {
		t.Errorf("Get(k) = %d, want 2", v)
	}
}

func TestSetIfAbsent(t *testing.T) {
	m := New[string, int]()

	if !m.SetIfAbsent("k", 1) {
		t.Error("SetIfAbsent on a missing key should succeed")
	}
	if m.SetIfAbsent("k", 2) {
		t.Error("SetIfAbsent on an existing key should fail")
	}
	if v, _ := m.Get("k"); v != 1 {
		t.Errorf("Get(k) = %d, want 1", v)
	}
}

func TestPop(t *testing.T) {
	m := New[string, int]()
	m.Set("k", 7)

	v, ok := m.Pop("k")
	if !ok || v != 7 {
		t.Errorf("Pop() = (%d, %v), want (7, true)", v, ok)
	}
	if _, ok := m.Pop("k"); ok {
		t.Error("second Pop should report missing")
	}
}

func TestCompareAndDelete(t *testing.T) {
	m := New[string, int]()
	m.Set("k", 1)

	if m.CompareAndDelete("k", func(v int) bool { return v == 2 }) {
		t.Error("CompareAndDelete should not remove a non-matching value")
	}
	if !m.CompareAndDelete("k", func(v int) bool { return v == 1 }) {
		t.Error("CompareAndDelete should remove a matching value")
	}
	if m.Has("k") {
		t.Error("key should be gone")
	}
}

func TestRename(t *testing.T) {
	tests := []struct {
		name   string
		shards int
		setup  map[string]int
		from   string
		to     string
		want   bool
	}{
		{"move", 16, map[string]int{"a": 1}, "a", "b", true},
		{"single shard", 1, map[string]int{"a": 1}, "a", "b", true},
		{"missing source", 16, map[string]int{}, "a", "b", false},
		{"target taken", 16, map[string]int{"a": 1, "b": 2}, "a", "b", false},
		{"same key", 16, map[string]int{"a": 1}, "a", "a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWithShards[string, int](tt.shards)
			for k, v := range tt.setup {
				m.Set(k, v)
			}
			if got := m.Rename(tt.from, tt.to); got != tt.want {
				t.Fatalf("Rename(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
			if tt.want && tt.from != tt.to {
				if m.Has(tt.from) {
					t.Error("source key should be gone")
				}
				if v, _ := m.Get(tt.to); v != tt.setup[tt.from] {
					t.Errorf("Get(%q) = %d, want %d", tt.to, v, tt.setup[tt.from])
				}
			}
			if m.Count() != len(tt.setup) {
				t.Errorf("Count() = %d, want %d", m.Count(), len(tt.setup))
			}
		})
	}
}

func TestRenameConcurrent(t *testing.T) {
	m := New[string, int]()
	var wg sync.WaitGroup

	// Opposite renames between the same pairs must not deadlock.
	for i := 0; i < 50; i++ {
		a, b := "a"+strconv.Itoa(i), "b"+strconv.Itoa(i)
		m.Set(a, i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Rename(a, b)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Rename(b, a)
			}
		}()
	}
	wg.Wait()

	if m.Count() != 50 {
		t.Errorf("Count() = %d, want 50", m.Count())
	}
}
