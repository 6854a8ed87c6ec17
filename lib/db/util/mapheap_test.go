package util

import (
	"fmt"
	"sort"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[string]()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}

	if _, exists := mh.PopMin(); exists {
		t.Error("PopMin on empty heap should return exists=false")
	}
}

// TestAddItem tests adding items to the heap
func TestAddItem(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)
	mh.AddItem("c", 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	for _, key := range []string{"a", "b", "c"} {
		if !mh.Contains(key) {
			t.Errorf("Heap should contain key %s", key)
		}
	}

	// Check the order (min heap, so the lowest value should be first)
	item, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}

	if item.Key != "c" || item.Priority != 50 {
		t.Errorf("Expected min item to be (c,50), got %s", item)
	}
}

// TestUpdateItem tests updating existing items
func TestUpdateItem(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)

	// Move item a behind item b
	mh.AddItem("a", 300)

	item, exists := mh.GetByKey("a")
	if !exists {
		t.Fatal("Item with key a should exist")
	}
	if item.Priority != 300 {
		t.Errorf("Item with key a should have priority 300, got %d", item.Priority)
	}
	if mh.Len() != 2 {
		t.Errorf("Updating an item must not add a new one, heap has %d items", mh.Len())
	}

	min, _ := mh.Peek()
	if min.Key != "b" {
		t.Errorf("Min item should now be key b, got %s", min.Key)
	}

	// Update to lower value
	mh.AddItem("b", -50)

	min, _ = mh.Peek()
	if min.Key != "b" || min.Priority != -50 {
		t.Errorf("Min item should now be (b,-50), got %s", min)
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[int]()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 300)

	priority, exists := mh.RemoveByKey(2)
	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}
	if priority != 200 {
		t.Errorf("RemoveByKey should return priority 200, got %d", priority)
	}
	if mh.Len() != 2 {
		t.Errorf("Heap should have 2 items after removal, has %d", mh.Len())
	}
	if mh.Contains(2) {
		t.Error("Heap should not contain key 2 after removal")
	}

	if _, exists = mh.RemoveByKey(99); exists {
		t.Error("RemoveByKey should return false for non-existent key")
	}
}

// TestPopOrder tests if items are popped in correct order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[string]()

	items := []struct {
		key      string
		priority int64
	}{
		{"e", 50},
		{"c", 30},
		{"a", 10},
		{"d", 40},
		{"b", 20},
	}

	for _, item := range items {
		mh.AddItem(item.key, item.priority)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].priority < items[j].priority
	})

	for i, expected := range items {
		item, exists := mh.PopMin()
		if !exists {
			t.Fatalf("Heap empty after %d items, expected %d items", i, len(items))
		}
		if item.Key != expected.key || item.Priority != expected.priority {
			t.Errorf("Pop %d: expected (%s,%d), got %s", i, expected.key, expected.priority, item)
		}
		if mh.Contains(item.Key) {
			t.Errorf("Popped key %s must not be in the index anymore", item.Key)
		}
	}

	if mh.Len() != 0 {
		t.Errorf("Heap should be empty after popping all items, has %d items", mh.Len())
	}
}

// TestDrainDue tests the typical scheduler loop: pop everything that is due
func TestDrainDue(t *testing.T) {
	mh := NewMapHeap[string]()
	for i := 0; i < 100; i++ {
		mh.AddItem(fmt.Sprintf("key-%d", i), int64(i))
	}

	now := int64(49)
	var due []string
	for item, ok := mh.Peek(); ok && item.Priority <= now; item, ok = mh.Peek() {
		mh.PopMin()
		due = append(due, item.Key)
	}

	if len(due) != 50 {
		t.Errorf("Expected 50 due items, got %d", len(due))
	}
	if mh.Len() != 50 {
		t.Errorf("Expected 50 remaining items, got %d", mh.Len())
	}
	if next, _ := mh.Peek(); next.Priority != 50 {
		t.Errorf("Expected next item to have priority 50, got %d", next.Priority)
	}
}

// TestLargeNumberOfItems tests the heap with many random updates and removals
func TestLargeNumberOfItems(t *testing.T) {
	mh := NewMapHeap[int]()
	n := 10000

	for i := 0; i < n; i++ {
		mh.AddItem(i, int64((i*7919)%n))
	}
	// remove every third item
	for i := 0; i < n; i += 3 {
		mh.RemoveByKey(i)
	}

	last := int64(-1)
	count := 0
	for mh.Len() > 0 {
		item, _ := mh.PopMin()
		if item.Priority < last {
			t.Fatalf("Heap order violated: %d after %d", item.Priority, last)
		}
		if item.Key%3 == 0 {
			t.Fatalf("Removed key %d was popped", item.Key)
		}
		last = item.Priority
		count++
	}

	expected := n - (n+2)/3
	if count != expected {
		t.Errorf("Expected %d items, got %d", expected, count)
	}
}
