// Package util
//
// This file provides a keyed priority queue for scheduling purposes.
//
// The implementation combines a binary heap with a hash map: the heap orders the
// items by priority, the map gives direct access to an item by its key. The sorted-set
// store uses it to schedule expiring keys (priority = expiration time), where an
// expiration can be moved or cancelled at any time.
//
// Complexity:
//   - O(log n) for AddItem, RemoveByKey and PopMin
//   - O(1) for Peek, Contains and GetByKey
//
// The heap is not thread-safe. Callers synchronize access themselves, the garbage
// collector of the sorted-set store guards it with the mutex that serializes its passes.
//
// Example usage:
//
//	expiry := NewMapHeap[string]()
//	expiry.AddItem("key-a", deadlineA)
//	expiry.AddItem("key-b", deadlineB)
//
//	// the key with the earliest deadline
//	next, exists := expiry.Peek()
//
//	// cancel a deadline
//	expiry.RemoveByKey("key-a")
//
//	// process everything that is due
//	for item, ok := expiry.Peek(); ok && item.Priority <= now; item, ok = expiry.Peek() {
//	    expiry.PopMin()
//	}
package util

import (
	"container/heap"
	"fmt"
)

// Item is an entry of a MapHeap
type Item[K comparable] struct {
	Key      K     // Unique identifier for the item
	Priority int64 // Priority used for ordering in the heap (lowest first)
	index    int   // Index in the heap, maintained by heap package
}

func (i *Item[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// itemHeap implements heap.Interface and keeps the key index up to date
type itemHeap[K comparable] struct {
	items    []*Item[K]     // The actual heap slice
	itemsMap map[K]*Item[K] // Map for O(1) access by key
}

func (h *itemHeap[K]) Len() int { return len(h.items) }

func (h *itemHeap[K]) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

func (h *itemHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *itemHeap[K]) Push(x interface{}) {
	item := x.(*Item[K])
	item.index = len(h.items)
	h.items = append(h.items, item)
	h.itemsMap[item.Key] = item
}

func (h *itemHeap[K]) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	h.items = old[:n-1]
	delete(h.itemsMap, item.Key)
	return item
}

// MapHeap is a min-heap of items that can also be accessed by key
type MapHeap[K comparable] struct {
	h *itemHeap[K]
}

// NewMapHeap creates an empty queue
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{h: &itemHeap[K]{
		items:    make([]*Item[K], 0),
		itemsMap: make(map[K]*Item[K]),
	}}
}

// Len returns the number of items in the queue
func (mh *MapHeap[K]) Len() int { return mh.h.Len() }

// AddItem adds a new item to the queue or updates the priority of an existing one
func (mh *MapHeap[K]) AddItem(key K, priority int64) {
	// Check if item already exists
	if item, exists := mh.h.itemsMap[key]; exists {
		// Update priority and fix heap
		item.Priority = priority
		heap.Fix(mh.h, item.index)
		return
	}

	heap.Push(mh.h, &Item[K]{Key: key, Priority: priority})
}

// RemoveByKey removes an item by its key and returns its priority
func (mh *MapHeap[K]) RemoveByKey(key K) (int64, bool) {
	item, exists := mh.h.itemsMap[key]
	if !exists {
		return 0, false
	}

	heap.Remove(mh.h, item.index)
	return item.Priority, true
}

// Peek returns the item with the lowest priority without removing it
func (mh *MapHeap[K]) Peek() (*Item[K], bool) {
	if len(mh.h.items) == 0 {
		return nil, false
	}
	return mh.h.items[0], true
}

// PopMin removes and returns the item with the lowest priority
func (mh *MapHeap[K]) PopMin() (*Item[K], bool) {
	if len(mh.h.items) == 0 {
		return nil, false
	}
	return heap.Pop(mh.h).(*Item[K]), true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap[K]) Contains(key K) bool {
	_, exists := mh.h.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap[K]) GetByKey(key K) (*Item[K], bool) {
	item, exists := mh.h.itemsMap[key]
	return item, exists
}
