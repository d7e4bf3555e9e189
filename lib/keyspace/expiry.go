package keyspace

import (
	"container/heap"
	"strconv"
)

// expiryItem is one key scheduled for removal
type expiryItem struct {
	Key      string // The key of the entry
	Deadline int64  // Unix nano timestamp at which the entry expires
	index    int    // Index in the heap, maintained by heap package
}

func (i *expiryItem) String() string {
	return "{Key: " + i.Key + ", Deadline: " + strconv.FormatInt(i.Deadline, 10) + "}"
}

// expiryHeap is a min heap of deadlines with O(1) access by key.
// The entry with the earliest deadline is always at the top.
//
// Not thread-safe, the keyspace lock must be held.
type expiryHeap struct {
	items    []*expiryItem          // The actual heap slice
	itemsMap map[string]*expiryItem // Map for O(1) access by key
}

func newExpiryHeap() *expiryHeap {
	return &expiryHeap{
		items:    make([]*expiryItem, 0),
		itemsMap: make(map[string]*expiryItem),
	}
}

// Len returns the number of scheduled keys (part of heap.Interface)
func (h *expiryHeap) Len() int { return len(h.items) }

// Less orders by deadline (part of heap.Interface)
func (h *expiryHeap) Less(i, j int) bool {
	return h.items[i].Deadline < h.items[j].Deadline
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (h *expiryHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (h *expiryHeap) Push(x interface{}) {
	item := x.(*expiryItem)
	item.index = len(h.items)
	h.items = append(h.items, item)
	h.itemsMap[item.Key] = item
}

// Pop removes and returns the item with the earliest deadline (part of heap.Interface)
func (h *expiryHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, item.Key)
	return item
}

// Schedule adds key with the deadline or moves an already scheduled key
func (h *expiryHeap) Schedule(key string, deadline int64) {
	if item, exists := h.itemsMap[key]; exists {
		item.Deadline = deadline
		heap.Fix(h, item.index)
		return
	}
	heap.Push(h, &expiryItem{Key: key, Deadline: deadline})
}

// Unschedule removes key from the heap, it reports if the key was scheduled
func (h *expiryHeap) Unschedule(key string) bool {
	item, exists := h.itemsMap[key]
	if !exists {
		return false
	}
	heap.Remove(h, item.index)
	return true
}

// Peek returns the item with the earliest deadline without removing it
func (h *expiryHeap) Peek() (*expiryItem, bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}

// Deadline returns the deadline of key
func (h *expiryHeap) Deadline(key string) (int64, bool) {
	item, exists := h.itemsMap[key]
	if !exists {
		return 0, false
	}
	return item.Deadline, true
}

// PopExpired removes and returns all keys with a deadline <= now
func (h *expiryHeap) PopExpired(now int64) []string {
	var keys []string
	for {
		item, ok := h.Peek()
		if !ok || item.Deadline > now {
			return keys
		}
		heap.Pop(h)
		keys = append(keys, item.Key)
	}
}

// Reset removes all items
func (h *expiryHeap) Reset() {
	h.items = make([]*expiryItem, 0)
	h.itemsMap = make(map[string]*expiryItem)
}
