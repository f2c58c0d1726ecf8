package mcmf

import (
	"testing"

	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

// networkWithResidualArcs builds a small graph with both forward and
// residual (negative-cost reverse) arcs already present, the shape
// DEsopoPapeWithSlice must handle since it runs on residual graphs mid-flow.
func networkWithResidualArcs() *flowgraph.Graph {
	graph := flowgraph.NewGraph(false)
	for i := 0; i < 7; i++ {
		graph.AddNode()
	}

	graph.SourceID = 1
	graph.SinkID = 7

	graph.AddArcById(1, 2).Cost = 0
	graph.AddArcById(1, 3).Cost = 0
	graph.AddArcById(1, 4).Cost = 0
	graph.AddArcById(2, 5).Cost = 5
	graph.AddArcById(5, 2).Cost = -5
	graph.AddArcById(3, 5).Cost = 6
	graph.AddArcById(5, 3).Cost = -6
	graph.AddArcById(3, 6).Cost = 7
	graph.AddArcById(6, 3).Cost = -7
	graph.AddArcById(4, 6).Cost = 8
	graph.AddArcById(6, 4).Cost = -8
	graph.AddArcById(5, 7).Cost = 0
	graph.AddArcById(6, 7).Cost = 0
	for arc := range graph.ArcSet {
		arc.CapUpperBound = 1
	}

	return graph
}

// networkWithoutResidualArcs is the same shape, minus the negative-cost
// reverse arcs, since Dijkstra can only be run where all costs are
// non-negative.
func networkWithoutResidualArcs() *flowgraph.Graph {
	graph := flowgraph.NewGraph(false)
	for i := 0; i < 7; i++ {
		graph.AddNode()
	}

	graph.SourceID = 1
	graph.SinkID = 7

	graph.AddArcById(1, 2).Cost = 0
	graph.AddArcById(1, 3).Cost = 0
	graph.AddArcById(1, 4).Cost = 0
	graph.AddArcById(2, 5).Cost = 5
	graph.AddArcById(3, 5).Cost = 6
	graph.AddArcById(3, 6).Cost = 7
	graph.AddArcById(4, 6).Cost = 8
	graph.AddArcById(5, 7).Cost = 0
	graph.AddArcById(6, 7).Cost = 0
	for arc := range graph.ArcSet {
		arc.CapUpperBound = 1
	}

	return graph
}

func TestDEsopoPapeWithSliceFindsCheapestPath(t *testing.T) {
	graph := networkWithResidualArcs()
	distance, parent := DEsopoPapeWithSlice(graph, 1, 7)

	if distance[7] != 5 {
		t.Errorf("distance[sink] = %v, want 5", distance[7])
	}
	if parent[7] != 5 {
		t.Errorf("parent[sink] = %v, want node 5 (the last hop of the cheapest 1->2->5->7 path)", parent[7])
	}
}

func TestDijkstraFindsCheapestPath(t *testing.T) {
	graph := networkWithoutResidualArcs()
	distance, parent := Dijkstra(graph, 1, 7, 1)

	if distance[7] != 5 {
		t.Errorf("distance[sink] = %v, want 5", distance[7])
	}
	if parent[7] != 5 {
		t.Errorf("parent[sink] = %v, want node 5 (the last hop of the cheapest 1->2->5->7 path)", parent[7])
	}
}
