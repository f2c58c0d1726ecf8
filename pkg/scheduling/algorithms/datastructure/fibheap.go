package datastructure

import "container/heap"

// FibHeap is the priority queue the shortest-path solvers extract minimum
// tentative distances from. The name is inherited from the reference
// implementation this package tracks; the backing structure is a binary
// heap rather than an amortized-O(1)-decrease-key Fibonacci heap, which is
// a fine trade for the graph sizes a single cluster's flow network reaches.
type FibHeap struct {
	entries entryHeap
}

// Entry is the value returned by ExtractMin. Value is exactly what was
// passed to Insert, unwrapped.
type Entry struct {
	Priority int64
	Value    interface{}
}

type entryHeap []*Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Priority < h[j].Priority }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*Entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

func NewFibHeap() *FibHeap {
	fh := &FibHeap{entries: make(entryHeap, 0)}
	heap.Init(&fh.entries)
	return fh
}

// Insert pushes value into the heap ordered by priority (lower first).
func (fh *FibHeap) Insert(priority int64, value interface{}) {
	heap.Push(&fh.entries, &Entry{Priority: priority, Value: value})
}

func (fh *FibHeap) Len() int {
	return fh.entries.Len()
}

func (fh *FibHeap) ExtractMin() *Entry {
	if fh.entries.Len() == 0 {
		return nil
	}
	return heap.Pop(&fh.entries).(*Entry)
}
