package datastructure

// Distance pairs a node with a tentative shortest-path distance, the value
// type both the map-based and slice-based Dijkstra variants push onto a
// priority queue.
type Distance struct {
	NodeId   uint64
	Distance int64
}

// BinaryMinHeap is a container/heap.Interface over *Distance ordered by
// Distance, ascending: a plain min-heap without FibHeap's Entry wrapper. The
// shortest-path code in mcmf uses FibHeap, not this type.
type BinaryMinHeap []*Distance

func (pq BinaryMinHeap) Len() int { return len(pq) }

func (pq BinaryMinHeap) Less(i, j int) bool {
	return pq[i].Distance < pq[j].Distance
}

func (pq BinaryMinHeap) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *BinaryMinHeap) Push(x interface{}) {
	*pq = append(*pq, x.(*Distance))
}

func (pq *BinaryMinHeap) Pop() interface{} {
	old := *pq
	n := len(old)
	if n == 0 {
		return nil
	}
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
