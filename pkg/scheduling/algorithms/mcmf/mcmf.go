package mcmf

import (
	"math"

	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

// SuccessiveShortestPathWithDEP augments along successive shortest paths
// found with the D'Esopo-Pape algorithm, which tolerates negative arc costs
// (but not negative cost cycles, which successive-shortest-path never
// introduces as long as it starts from a graph with none). Returns the total
// flow pushed and its total cost.
func SuccessiveShortestPathWithDEP(graph *flowgraph.Graph, src, dst flowgraph.NodeID) (uint64, int64) {
	var maxFlow uint64
	var minCost int64

	distance, parent := DEsopoPapeWithSlice(graph, src, dst)
	for distance[dst] != math.MaxInt64 {
		minFlow := retrieveMinflow(graph, parent, dst)

		maxFlow += minFlow
		minCost += distance[dst] * int64(minFlow)
		augmentPath(graph, parent, dst, minFlow)
		distance, parent = DEsopoPapeWithSlice(graph, src, dst)
	}

	return maxFlow, minCost
}

// SuccessiveShortestPathWithDijkstra is the same successive-shortest-path
// scheme, but uses Dijkstra with Johnson's reduced-cost potentials so each
// iteration runs on a graph with no negative arc weights. This is the solver
// the flow scheduler actually uses; SuccessiveShortestPathWithDEP exists as
// a simpler reference implementation and for cross-checking in tests.
func SuccessiveShortestPathWithDijkstra(graph *flowgraph.Graph, src, dst flowgraph.NodeID) (uint64, int64) {
	var maxFlow uint64
	var minCost int64
	var visitCount uint32 = 1

	distance, parent := DijkstraWithSlice(graph, src, dst, visitCount)
	for distance[dst] != math.MaxInt64 {
		minFlow, pathCost := retrieveMinflowAndPathCost(graph, parent, dst)

		maxFlow += minFlow
		minCost += pathCost * int64(minFlow)
		augmentPath(graph, parent, dst, minFlow)

		for id, node := range graph.NodeMap {
			if node.Visited == visitCount {
				node.Potential -= distance[int(id)]
			} else {
				node.Potential -= distance[int(dst)]
			}
		}
		visitCount++
		distance, parent = DijkstraWithSlice(graph, src, dst, visitCount)
	}

	return maxFlow, minCost
}

// augmentPath pushes minFlow units of flow back along the path parent
// traces from dst to the source, creating or growing the reverse arc needed
// to keep the residual graph consistent for the next iteration.
func augmentPath(graph *flowgraph.Graph, parent []flowgraph.NodeID, dst flowgraph.NodeID, minFlow uint64) {
	child := dst
	for father := parent[child]; father != 0; father = parent[child] {
		arc := graph.GetArcByIds(father, child)
		arc.CapUpperBound -= minFlow
		reverseArc := graph.GetArcByIds(child, father)
		if reverseArc == nil {
			reverseArc = graph.AddArc(graph.Node(child), graph.Node(father))
			reverseArc.CapUpperBound = minFlow
			reverseArc.Cost = -arc.Cost
		} else {
			reverseArc.CapUpperBound += minFlow
		}
		child = father
	}
}

// retrieveMinflowAndPathCost is retrieveMinflow plus the total cost of the
// same path, computed in one pass since both need the same walk back to the
// source.
func retrieveMinflowAndPathCost(graph *flowgraph.Graph, parent []flowgraph.NodeID,
	dst flowgraph.NodeID) (uint64, int64) {
	child := dst
	var minFlow uint64 = math.MaxUint64
	var pathCost int64

	for father := parent[child]; father != 0; father = parent[child] {
		arc := graph.GetArcByIds(father, child)
		if arc != nil && arc.CapUpperBound < minFlow {
			minFlow = arc.CapUpperBound
		}
		pathCost += arc.Cost
		child = father
	}
	return minFlow, pathCost
}
