package mcmf

import (
	"math"

	"github.com/golang/glog"

	"github.com/flowsched/flowsched/pkg/scheduling/algorithms/datastructure"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

// traverseAugmentingPath walks from src looking for an augmenting path to
// dst, in either depth-first or breadth-first order depending on dfs. It
// records the path taken in parent so the caller can retrace it and push
// flow along it. constraint is currently unused; it is reserved for a
// per-slot placement constraint (a task's request cannot be split across
// machines) that plain Edmonds-Karp cannot express, which is why the
// successive-shortest-path solvers below are used instead of this one in
// production.
func traverseAugmentingPath(graph *flowgraph.Graph, src, dst flowgraph.NodeID, parent []flowgraph.NodeID,
	visitCount uint32, dfs bool, constraint bool) bool {
	frontier := datastructure.NewDeque(10)
	srcNode := graph.Node(src)
	if srcNode == nil {
		glog.Fatalf("mcmf: source node %v does not exist", src)
	}

	frontier.PushEnd(srcNode)
	srcNode.Visited = visitCount
	parent[src] = 0

	var current *flowgraph.Node
	for !frontier.IsEmpty() {
		if dfs {
			current = frontier.PopEnd().(*flowgraph.Node)
		} else {
			current = frontier.PopFront().(*flowgraph.Node)
		}

		for id, arc := range current.OutgoingArcMap {
			dstNode := graph.Node(id)
			if dstNode == nil || dstNode.Visited == visitCount || arc.CapUpperBound == 0 {
				continue
			}
			dstNode.Visited = visitCount
			parent[id] = current.ID
			if id == dst {
				return true
			}
			frontier.PushEnd(dstNode)
		}
	}

	return false
}

// retrieveMinflow returns the smallest residual capacity along the path
// parent traces back from dst to the source.
func retrieveMinflow(graph *flowgraph.Graph, parent []flowgraph.NodeID,
	dst flowgraph.NodeID) uint64 {
	child := dst
	var minFlow uint64 = math.MaxUint64
	for father := parent[child]; father != 0; father = parent[child] {
		arc := graph.GetArcByIds(father, child)
		if arc != nil && arc.CapUpperBound < minFlow {
			minFlow = arc.CapUpperBound
		}
		child = father
	}
	return minFlow
}

// EdmondsKarp computes the maximum flow from src to dst, augmenting along
// paths found by BFS (shortest by hop count) or, with dfs set, by DFS (not
// necessarily shortest), rather than by cost. It
// ignores arc cost entirely, so it is only useful for feasibility checks
// (e.g. "can every task be scheduled at all") rather than for producing a
// minimum-cost solution.
func EdmondsKarp(graph *flowgraph.Graph, src, dst flowgraph.NodeID, dfs bool, constraint bool) uint64 {
	var flow uint64
	var visitCount uint32 = 1
	parent := make([]flowgraph.NodeID, len(graph.NodeMap)+1)
	for traverseAugmentingPath(graph, src, dst, parent, visitCount, dfs, constraint) {
		visitCount++
		minFlow := retrieveMinflow(graph, parent, dst)
		flow += minFlow

		child := dst
		for father := parent[child]; father != 0; father = parent[child] {
			arc := graph.GetArcByIds(father, child)
			arc.CapUpperBound -= minFlow
			reverseArc := graph.GetArcByIds(child, father)
			if reverseArc == nil {
				reverseArc = graph.AddArc(graph.Node(child), graph.Node(father))
				reverseArc.CapUpperBound = minFlow
			} else {
				reverseArc.CapUpperBound += minFlow
			}
			child = father
		}
	}

	return flow
}
