package mcmf

import (
	"testing"

	"github.com/flowsched/flowsched/pkg/scheduling/algorithms/utils"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

// textbookFlowNetwork is the classic six-node max-flow example (CLRS
// figure 26.1) used to check EdmondsKarp against a known answer.
func textbookFlowNetwork() *flowgraph.Graph {
	graph := flowgraph.NewGraph(false)
	for i := 0; i < 6; i++ {
		graph.AddNode()
	}
	graph.SourceID = 1
	graph.SinkID = 6

	graph.AddArcById(1, 2).CapUpperBound = 16
	graph.AddArcById(1, 3).CapUpperBound = 13
	graph.AddArcById(2, 3).CapUpperBound = 10
	graph.AddArcById(3, 2).CapUpperBound = 4
	graph.AddArcById(2, 4).CapUpperBound = 12
	graph.AddArcById(4, 3).CapUpperBound = 9
	graph.AddArcById(3, 5).CapUpperBound = 14
	graph.AddArcById(5, 4).CapUpperBound = 7
	graph.AddArcById(4, 6).CapUpperBound = 20
	graph.AddArcById(5, 6).CapUpperBound = 4

	return graph
}

func TestEdmondsKarpTextbookNetwork(t *testing.T) {
	for _, dfs := range []bool{true, false} {
		graph := textbookFlowNetwork()
		if got := EdmondsKarp(graph, graph.SourceID, graph.SinkID, dfs, false); got != 23 {
			t.Errorf("EdmondsKarp(dfs=%v) = %v, want 23", dfs, got)
		}
	}
}

// disjointPathNetwork builds pathCount vertex-disjoint two-hop paths from a
// shared source to a shared sink, each capped at capacityPerPath. Because
// the paths share no edges or intermediate vertices, the max flow is exactly
// pathCount*capacityPerPath regardless of solver internals, which makes it a
// convenient stand-in for a "large graph" fixture whose expected answer
// doesn't need a solver of its own to derive.
func disjointPathNetwork(pathCount int, capacityPerPath uint64) *flowgraph.Graph {
	graph := flowgraph.NewGraph(false)
	// node 1 is the source, node 2 is the sink, every path gets one relay node.
	graph.AddNode()
	graph.AddNode()
	for i := 0; i < pathCount; i++ {
		graph.AddNode()
	}
	graph.SourceID = 1
	graph.SinkID = 2

	for i := 0; i < pathCount; i++ {
		relay := flowgraph.NodeID(3 + i)
		graph.AddArcById(1, relay).CapUpperBound = capacityPerPath
		graph.AddArcById(relay, 2).CapUpperBound = capacityPerPath
	}
	return graph
}

func TestEdmondsKarpManyDisjointPaths(t *testing.T) {
	const pathCount = 500
	const capacityPerPath = 3
	want := uint64(pathCount * capacityPerPath)

	for _, dfs := range []bool{true, false} {
		graph := disjointPathNetwork(pathCount, capacityPerPath)
		if got := EdmondsKarp(graph, graph.SourceID, graph.SinkID, dfs, false); got != want {
			t.Errorf("EdmondsKarp(dfs=%v) over %d disjoint paths = %v, want %v", dfs, pathCount, got, want)
		}
	}
}

func taskMachineNetwork() *flowgraph.Graph {
	graph := flowgraph.NewGraph(false)
	nodes := make([]*flowgraph.Node, 7)
	for i := 0; i < 7; i++ {
		nodes[i] = graph.AddNode()
	}

	graph.SourceID = 1
	graph.SinkID = 7
	nodes[1].Excess = 5
	nodes[1].Type = flowgraph.NodeTypeUnscheduledTask
	graph.TaskSet[nodes[1]] = struct{}{}
	nodes[2].Excess = 5
	nodes[2].Type = flowgraph.NodeTypeUnscheduledTask
	graph.TaskSet[nodes[2]] = struct{}{}
	nodes[3].Excess = 5
	nodes[3].Type = flowgraph.NodeTypeUnscheduledTask
	graph.TaskSet[nodes[3]] = struct{}{}
	nodes[4].Type = flowgraph.NodeTypeMachine
	graph.ResourceSet[nodes[4]] = struct{}{}
	nodes[5].Type = flowgraph.NodeTypeMachine
	graph.ResourceSet[nodes[5]] = struct{}{}

	graph.AddArcById(1, 2).CapUpperBound = 5
	graph.AddArcById(1, 3).CapUpperBound = 5
	graph.AddArcById(1, 4).CapUpperBound = 5
	graph.AddArcById(2, 5).CapUpperBound = 5
	graph.AddArcById(2, 6).CapUpperBound = 5
	graph.AddArcById(3, 5).CapUpperBound = 5
	graph.AddArcById(3, 6).CapUpperBound = 5
	graph.AddArcById(4, 5).CapUpperBound = 5
	graph.AddArcById(4, 6).CapUpperBound = 5
	graph.AddArcById(5, 7).CapUpperBound = 8
	graph.AddArcById(6, 7).CapUpperBound = 8

	return graph
}

func lopsidedTaskMachineNetwork() *flowgraph.Graph {
	graph := flowgraph.NewGraph(false)
	nodes := make([]*flowgraph.Node, 7)
	for i := 0; i < 7; i++ {
		nodes[i] = graph.AddNode()
	}

	graph.SourceID = 1
	graph.SinkID = 7
	nodes[1].Excess = 5
	nodes[1].Type = flowgraph.NodeTypeUnscheduledTask
	graph.TaskSet[nodes[1]] = struct{}{}
	nodes[2].Excess = 5
	nodes[2].Type = flowgraph.NodeTypeUnscheduledTask
	graph.TaskSet[nodes[2]] = struct{}{}
	nodes[3].Excess = 4
	nodes[3].Type = flowgraph.NodeTypeUnscheduledTask
	graph.TaskSet[nodes[3]] = struct{}{}
	nodes[4].Type = flowgraph.NodeTypeMachine
	graph.ResourceSet[nodes[4]] = struct{}{}
	nodes[5].Type = flowgraph.NodeTypeMachine
	graph.ResourceSet[nodes[5]] = struct{}{}

	graph.AddArcById(1, 2).CapUpperBound = 5
	graph.AddArcById(1, 3).CapUpperBound = 5
	graph.AddArcById(1, 4).CapUpperBound = 4
	graph.AddArcById(2, 5).CapUpperBound = 5
	graph.AddArcById(2, 6).CapUpperBound = 5
	graph.AddArcById(3, 5).CapUpperBound = 5
	graph.AddArcById(3, 6).CapUpperBound = 5
	graph.AddArcById(4, 5).CapUpperBound = 4
	graph.AddArcById(4, 6).CapUpperBound = 4
	graph.AddArcById(5, 7).CapUpperBound = 8
	graph.AddArcById(6, 7).CapUpperBound = 9

	return graph
}

// TestEdmondsKarpScheduleExtraction checks that a scheduling-shaped network
// (tasks feeding two machines through a bottleneck sink) both produces the
// expected max flow and that the flow can be turned into a task->machine
// assignment plus repaired when a machine is oversubscribed.
func TestEdmondsKarpScheduleExtraction(t *testing.T) {
	cases := []struct {
		name    string
		build   func() *flowgraph.Graph
		dfs     bool
		want    uint64
	}{
		{"even-split/bfs", taskMachineNetwork, false, 15},
		{"even-split/dfs", taskMachineNetwork, true, 15},
		{"lopsided/bfs", lopsidedTaskMachineNetwork, false, 14},
		{"lopsided/dfs", lopsidedTaskMachineNetwork, true, 14},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			graph := tc.build()
			got := EdmondsKarp(graph, graph.SourceID, graph.SinkID, tc.dfs, false)
			if got != tc.want {
				t.Fatalf("EdmondsKarp = %v, want %v", got, tc.want)
			}

			result := utils.ExtractScheduleResult(graph, 1)
			repaired, repairCount := utils.GreedyRepairFlow(graph, result, 7)
			if repairCount < 0 {
				t.Errorf("GreedyRepairFlow reported a negative repair count: %v", repairCount)
			}
			if len(repaired) != len(result) {
				t.Errorf("GreedyRepairFlow changed the number of task mappings: got %d, want %d", len(repaired), len(result))
			}
		})
	}
}
