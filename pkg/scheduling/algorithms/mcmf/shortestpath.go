package mcmf

import (
	"math"

	"github.com/flowsched/flowsched/pkg/scheduling/algorithms/datastructure"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

// DEsopoPapeWithSlice finds shortest paths from src using the D'Esopo-Pape
// algorithm, which unlike Dijkstra tolerates negative-cost arcs (though not
// negative-cost cycles). distance and parent are indexed by NodeID and sized
// for the whole graph, which is cheap here since node ids are dense small
// integers in a solver-private copy.
func DEsopoPapeWithSlice(graph *flowgraph.Graph, src, dst flowgraph.NodeID) ([]int64, []flowgraph.NodeID) {
	distance := make([]int64, len(graph.NodeMap)+1)
	parent := make([]flowgraph.NodeID, len(graph.NodeMap)+1)
	// state: 2 = never queued, 1 = currently queued, 0 = dequeued at least once.
	state := make([]int, len(graph.NodeMap)+1)
	for i := 1; i < len(parent); i++ {
		distance[i] = math.MaxInt64
		state[i] = 2
	}
	distance[src] = 0

	queue := datastructure.NewDeque(len(graph.NodeMap))
	queue.PushEnd(src)

	for !queue.IsEmpty() {
		current := queue.PopFront().(flowgraph.NodeID)
		state[current] = 0
		for nextID, arc := range graph.Node(current).OutgoingArcMap {
			if arc.CapUpperBound == 0 || distance[nextID] <= distance[current]+arc.Cost {
				continue
			}
			distance[nextID] = distance[current] + arc.Cost
			parent[nextID] = current
			switch state[nextID] {
			case 2:
				state[nextID] = 1
				queue.PushEnd(nextID)
			case 0:
				state[nextID] = 1
				queue.PushFront(nextID)
			}
		}
	}

	return distance, parent
}

// DijkstraWithSlice is Dijkstra addressed by dense NodeID-indexed slices
// instead of maps, for callers that already know the graph's node ids are
// small and contiguous (a solver-private copy).
func DijkstraWithSlice(graph *flowgraph.Graph, src, dst flowgraph.NodeID, visitCount uint32) ([]int64, []flowgraph.NodeID) {
	distance := make([]int64, len(graph.NodeMap)+1)
	parent := make([]flowgraph.NodeID, len(graph.NodeMap)+1)
	for i := 1; i < len(parent); i++ {
		distance[i] = math.MaxInt64
	}
	distance[src] = 0

	pq := datastructure.NewFibHeap()
	pq.Insert(0, &datastructure.Distance{NodeId: uint64(src), Distance: 0})

	for pq.Len() > 0 {
		current := pq.ExtractMin().Value.(*datastructure.Distance)
		currentNode := graph.Node(flowgraph.NodeID(current.NodeId))
		currentNode.Visited = visitCount

		if flowgraph.NodeID(current.NodeId) == dst {
			return distance, parent
		}

		for nextID, arc := range currentNode.OutgoingArcMap {
			nextNode := graph.Node(nextID)
			if nextNode.Visited >= visitCount || arc.CapUpperBound == 0 {
				continue
			}
			reducedCost := arc.Cost - currentNode.Potential + nextNode.Potential
			updated := current.Distance + reducedCost
			if updated < distance[nextID] {
				distance[nextID] = updated
				parent[nextID] = flowgraph.NodeID(current.NodeId)
				pq.Insert(updated, &datastructure.Distance{NodeId: uint64(nextID), Distance: updated})
			}
		}
	}

	return distance, parent
}

// Dijkstra is DijkstraWithSlice for graphs whose node ids are not assumed to
// be dense: distance and parent are maps rather than slices, at the cost of
// more allocation per call. The successive-shortest-path solvers in this
// package use DijkstraWithSlice instead.
func Dijkstra(graph *flowgraph.Graph, src, dst flowgraph.NodeID, visitCount uint32) (map[flowgraph.NodeID]int64, map[flowgraph.NodeID]flowgraph.NodeID) {
	distance := make(map[flowgraph.NodeID]int64, len(graph.NodeMap))
	parent := make(map[flowgraph.NodeID]flowgraph.NodeID, len(graph.NodeMap))

	for id := range graph.NodeMap {
		distance[id] = math.MaxInt64
	}
	distance[src] = 0

	pq := datastructure.NewFibHeap()
	pq.Insert(0, &datastructure.Distance{NodeId: uint64(src), Distance: 0})

	for pq.Len() > 0 {
		current := pq.ExtractMin().Value.(*datastructure.Distance)
		currentNode := graph.Node(flowgraph.NodeID(current.NodeId))
		currentNode.Visited = visitCount

		if flowgraph.NodeID(current.NodeId) == dst {
			return distance, parent
		}

		for nextID, arc := range currentNode.OutgoingArcMap {
			nextNode := graph.Node(nextID)
			if nextNode.Visited >= visitCount || arc.CapUpperBound == 0 {
				continue
			}
			reducedCost := arc.Cost - currentNode.Potential + nextNode.Potential
			updated := current.Distance + reducedCost
			if updated < distance[nextID] {
				distance[nextID] = updated
				parent[nextID] = flowgraph.NodeID(current.NodeId)
				pq.Insert(updated, &datastructure.Distance{NodeId: uint64(nextID), Distance: updated})
			}
		}
	}

	return distance, parent
}
