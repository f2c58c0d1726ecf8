package mcmf

import (
	"testing"

	"github.com/flowsched/flowsched/pkg/scheduling/algorithms/utils"
	"github.com/flowsched/flowsched/pkg/scheduling/flowgraph"
)

// clusterShapedGraph builds a bipartite task/machine network sized by
// taskCount and machineCount, where every task requests slotsPerTask units
// and every machine offers machineCapacity units. It mirrors the shape a
// real flow graph takes: one source feeding all tasks, all tasks able to
// reach all machines at a fixed cost, all machines draining into one sink.
func clusterShapedGraph(taskCount, machineCount int, slotsPerTask, machineCapacity uint64) *flowgraph.Graph {
	graph := flowgraph.NewGraph(false)
	total := taskCount + machineCount + 2
	for i := 0; i < total; i++ {
		graph.AddNode()
	}
	graph.SourceID = 1
	graph.SinkID = flowgraph.NodeID(total)

	firstMachine := 2 + taskCount
	for i := 2; i <= 1+taskCount; i++ {
		graph.AddArcWithCapAndCost(1, flowgraph.NodeID(i), slotsPerTask, 0)
		graph.Node(flowgraph.NodeID(i)).Excess = int64(slotsPerTask)
		graph.Node(flowgraph.NodeID(i)).Type = flowgraph.NodeTypeUnscheduledTask
		graph.TaskSet[graph.Node(flowgraph.NodeID(i))] = struct{}{}
	}
	for i := firstMachine; i < total; i++ {
		graph.AddArcWithCapAndCost(flowgraph.NodeID(i), graph.SinkID, machineCapacity, 0)
		graph.Node(flowgraph.NodeID(i)).Type = flowgraph.NodeTypeMachine
	}
	for i := 2; i <= 1+taskCount; i++ {
		for j := firstMachine; j < total; j++ {
			graph.AddArcWithCapAndCost(flowgraph.NodeID(i), flowgraph.NodeID(j), slotsPerTask, 5)
		}
	}

	return graph
}

func smallCostedNetwork() *flowgraph.Graph {
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

	graph.AddArcWithCapAndCost(1, 2, 5, 0)
	graph.AddArcWithCapAndCost(1, 3, 5, 0)
	graph.AddArcWithCapAndCost(1, 4, 5, 0)
	graph.AddArcWithCapAndCost(2, 5, 5, 5)
	graph.AddArcWithCapAndCost(2, 6, 5, 9)
	graph.AddArcWithCapAndCost(3, 5, 5, 7)
	graph.AddArcWithCapAndCost(3, 6, 5, 8)
	graph.AddArcWithCapAndCost(4, 5, 5, 9)
	graph.AddArcWithCapAndCost(4, 6, 5, 5)
	graph.AddArcWithCapAndCost(5, 7, 8, 0)
	graph.AddArcWithCapAndCost(6, 7, 8, 0)

	return graph
}

func TestSuccessiveShortestPathWithDEPKnownAnswer(t *testing.T) {
	graph := smallCostedNetwork()
	maxFlow, minCost := SuccessiveShortestPathWithDEP(graph, 1, 7)
	if maxFlow != 15 || minCost != 87 {
		t.Errorf("SuccessiveShortestPathWithDEP = (flow %v, cost %v), want (15, 87)", maxFlow, minCost)
	}
}

func TestSuccessiveShortestPathWithDijkstraKnownAnswer(t *testing.T) {
	graph := smallCostedNetwork()
	maxFlow, minCost := SuccessiveShortestPathWithDijkstra(graph, 1, 7)
	if maxFlow != 15 || minCost != 87 {
		t.Errorf("SuccessiveShortestPathWithDijkstra = (flow %v, cost %v), want (15, 87)", maxFlow, minCost)
	}

	result := utils.ExtractScheduleResult(graph, 1)
	repaired, _ := utils.GreedyRepairFlow(graph, result, 7)
	if len(repaired) != len(result) {
		t.Errorf("GreedyRepairFlow changed the number of task mappings: got %d, want %d", len(repaired), len(result))
	}
}

// TestSuccessiveShortestPathAgreeOnClusterGraph checks that the Dijkstra and
// D'Esopo-Pape successive-shortest-path variants agree on max flow and min
// cost for the same input, since both are supposed to compute the same
// minimum-cost flow, just via different shortest-path subroutines.
func TestSuccessiveShortestPathAgreeOnClusterGraph(t *testing.T) {
	build := func() *flowgraph.Graph { return clusterShapedGraph(20, 6, 5, 20) }

	dijkstraFlow, dijkstraCost := SuccessiveShortestPathWithDijkstra(build(), 1, 28)
	depFlow, depCost := SuccessiveShortestPathWithDEP(build(), 1, 28)

	if dijkstraFlow != depFlow {
		t.Errorf("max flow disagreement: dijkstra=%v dep=%v", dijkstraFlow, depFlow)
	}
	if dijkstraCost != depCost {
		t.Errorf("min cost disagreement: dijkstra=%v dep=%v", dijkstraCost, depCost)
	}
	if dijkstraFlow == 0 {
		t.Fatalf("expected a nonzero flow on a graph with spare machine capacity")
	}
}
